package sqlite

import (
	"time"
)

// Stats summarizes executed statements while query statistics are enabled.
type Stats struct {
	Count        int
	Total        time.Duration
	Longest      time.Duration
	LongestQuery string
}

// Average returns the mean statement duration.
func (s Stats) Average() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// EnableQueryStats turns statistics collection on or off. Turning it on
// starts from empty statistics.
func (db *DB) EnableQueryStats(on bool) {
	db.statsMu.Lock()
	defer db.statsMu.Unlock()
	if on && !db.statsOn {
		db.stats = Stats{}
	}
	db.statsOn = on
}

// QueryStats returns a snapshot of the collected statistics.
func (db *DB) QueryStats() Stats {
	db.statsMu.Lock()
	defer db.statsMu.Unlock()
	return db.stats
}

// LogQueryStats writes the collected statistics as one info line. Nothing
// is logged when collection is off or nothing ran.
func (db *DB) LogQueryStats() {
	db.statsMu.Lock()
	on, s := db.statsOn, db.stats
	db.statsMu.Unlock()
	if !on || s.Count == 0 {
		return
	}
	db.log.Info().
		Int("queries", s.Count).
		Dur("total", s.Total).
		Dur("average", s.Average()).
		Dur("longest", s.Longest).
		Str("longest_query", s.LongestQuery).
		Msg("query stats")
}

// observe logs one statement execution and feeds the statistics.
func (db *DB) observe(stmt string, args []any, start time.Time, err error) {
	elapsed := time.Since(start)

	db.statsMu.Lock()
	if db.statsOn {
		db.stats.Count++
		db.stats.Total += elapsed
		if elapsed >= db.stats.Longest {
			db.stats.Longest = elapsed
			db.stats.LongestQuery = stmt
		}
	}
	db.statsMu.Unlock()

	if err != nil {
		db.log.Warn().Err(err).Str("sql", stmt).Interface("args", args).Dur("duration", elapsed).Msg("statement failed")
		return
	}
	db.log.Debug().Str("sql", stmt).Interface("args", args).Dur("duration", elapsed).Msg("statement executed")
}
