package query

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// QuoteIdentifier double-quotes every dot separated segment of name.
// A "*" segment is left bare.
func QuoteIdentifier(name string) string {
	segs := strings.Split(name, ".")
	for i, s := range segs {
		if s == AllColumns {
			continue
		}
		segs[i] = `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return strings.Join(segs, ".")
}

// QuoteValue renders v as a SQL literal.
func QuoteValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if t {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(t)
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", t)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []byte:
		return "X'" + hex.EncodeToString(t) + "'"
	case time.Time:
		return quoteString(t.Format(time.RFC3339Nano))
	case string:
		return quoteString(t)
	case fmt.Stringer:
		return quoteString(t.String())
	default:
		return quoteString(fmt.Sprint(t))
	}
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// QuoteInto binds cond like Bind and then substitutes each value as a
// literal. The result is meant for display and logging; statements sent to
// the database use Bind.
func QuoteInto(cond string, args ...any) (string, error) {
	bound, vals, err := Bind(cond, args...)
	if err != nil {
		return "", err
	}
	return Interpolate(bound, vals)
}

// Interpolate substitutes each "?" marker of sql with the next value of args
// rendered by QuoteValue.
func Interpolate(sql string, args []any) (string, error) {
	i := 0
	return scanRewrite(sql, func(b *strings.Builder, key string) error {
		if key != "" {
			b.WriteByte(':')
			b.WriteString(key)
			return nil
		}
		if i >= len(args) {
			return fmt.Errorf("interpolate: %d arguments for more placeholders", len(args))
		}
		b.WriteString(QuoteValue(args[i]))
		i++
		return nil
	})
}
