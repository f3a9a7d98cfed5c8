package sqlite

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// DumpJSONL writes the Info of every record in l to path, one JSON object
// per line. The file is replaced atomically.
func DumpJSONL(ctx context.Context, l *List, path string) (int, error) {
	var records []json.RawMessage
	err := l.Each(ctx, func(item *Item) error {
		b, err := json.Marshal(item.Info())
		if err != nil {
			return fmt.Errorf("encoding %s record %v: %w", item.Table(), item.ID(), err)
		}
		records = append(records, b)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := writeJSONL(path, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// LoadJSONL inserts one record into table for every well-formed line of
// path and returns how many were saved. Malformed lines are skipped. Ids in
// the file are kept.
func LoadJSONL(ctx context.Context, db *DB, table string, path string) (int, error) {
	lines, err := readJSONL(path)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, line := range lines {
		row, ok := decodeRow(line.data)
		if !ok {
			continue
		}
		item, err := db.New(ctx, table, row)
		if err != nil {
			return n, err
		}
		item.exists = false
		if err := item.Save(ctx); err != nil {
			return n, fmt.Errorf("loading %s line %d: %w", table, line.num, err)
		}
		n++
	}
	return n, nil
}

// decodeRow parses one JSON object. Numbers become int64 when integral and
// float64 otherwise.
func decodeRow(rec json.RawMessage) (types.Row, bool) {
	dec := json.NewDecoder(bytes.NewReader(rec))
	dec.UseNumber()
	var row types.Row
	if err := dec.Decode(&row); err != nil || row == nil {
		return nil, false
	}
	for k, v := range row {
		num, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := num.Int64(); err == nil {
			row[k] = i
		} else if f, err := num.Float64(); err == nil {
			row[k] = f
		}
	}
	return row, true
}

// jsonLine is one well-formed line and its 1-based position in the file.
type jsonLine struct {
	num  int
	data json.RawMessage
}

// readJSONL returns each non-empty, well-formed line of path.
func readJSONL(path string) ([]jsonLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []jsonLine
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	num := 0
	for scanner.Scan() {
		num++
		line := scanner.Bytes()
		if len(line) == 0 || !json.Valid(line) {
			continue
		}
		records = append(records, jsonLine{num: num, data: bytes.Clone(line)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// writeJSONL writes records to path through a synced temp file renamed into
// place.
func writeJSONL(path string, records []json.RawMessage) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(step string, err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%s: %w", step, err)
	}

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			return fail("writing record", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fail("writing newline", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fail("flushing buffer", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("syncing temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
