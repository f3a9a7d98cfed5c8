package query

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// Bind rewrites a condition with placeholders into a condition using only
// positional "?" markers plus the ordered argument list. Supported forms:
//
//	Bind("a = 1")                          no arguments
//	Bind("a = ? OR b = ?", v)              one value fills every "?"
//	Bind("a = ? AND b = ?", v1, v2)        one value per "?"
//	Bind("a = :0 AND b = :1", v0, v1)      indexes into the arguments
//	Bind("a = :0", []any{v0})              indexes into one slice argument
//	Bind("a = :x", map[string]any{"x": v}) keys into one map argument
//
// Values are never interpolated into the SQL text. Markers inside single
// quoted string literals are left alone.
func Bind(cond string, args ...any) (string, []any, error) {
	if len(args) == 0 {
		return cond, nil, nil
	}

	if len(args) == 1 {
		switch v := args[0].(type) {
		case map[string]any:
			return rewrite(cond, func(_ int, key string) (any, error) {
				val, ok := v[key]
				if !ok {
					return nil, fmt.Errorf("%w: no value for placeholder :%s", types.ErrInvalidArgument, key)
				}
				return val, nil
			})
		case []byte:
		default:
			if vals, ok := asSlice(v); ok {
				args = vals
			}
		}
	}

	markers := countMarkers(cond)
	if markers > 0 && len(args) > 1 && markers != len(args) {
		return "", nil, fmt.Errorf("%w: %d values for %d placeholders in %q",
			types.ErrInvalidArgument, len(args), markers, cond)
	}

	return rewrite(cond, func(ordinal int, key string) (any, error) {
		if key == "" {
			if len(args) == 1 {
				return args[0], nil
			}
			return args[ordinal], nil
		}
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(args) {
			return nil, fmt.Errorf("%w: no value for placeholder :%s", types.ErrInvalidArgument, key)
		}
		return args[idx], nil
	})
}

// Values expands a single slice argument into its elements. Byte slices are
// kept whole.
func Values(args ...any) []any {
	if len(args) != 1 {
		return args
	}
	if _, ok := args[0].([]byte); ok {
		return args
	}
	if vals, ok := asSlice(args[0]); ok {
		return vals
	}
	return args
}

// asSlice reports whether v is a slice or array and returns its elements.
func asSlice(v any) ([]any, bool) {
	if vals, ok := v.([]any); ok {
		return vals, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	vals := make([]any, rv.Len())
	for i := range vals {
		vals[i] = rv.Index(i).Interface()
	}
	return vals, true
}

func countMarkers(cond string) int {
	n := 0
	_ = scan(cond, func(_ *strings.Builder, key string) error {
		if key == "" {
			n++
		}
		return nil
	})
	return n
}

// rewrite replaces each marker with "?" and collects the value lookup returns
// for it. ordinal counts "?" markers only.
func rewrite(cond string, lookup func(ordinal int, key string) (any, error)) (string, []any, error) {
	var args []any
	ordinal := 0
	out, err := scanRewrite(cond, func(b *strings.Builder, key string) error {
		val, err := lookup(ordinal, key)
		if err != nil {
			return err
		}
		if key == "" {
			ordinal++
		}
		b.WriteByte('?')
		args = append(args, val)
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return out, args, nil
}

func scan(cond string, fn func(b *strings.Builder, key string) error) error {
	_, err := scanRewrite(cond, fn)
	return err
}

// scanRewrite copies cond, calling fn in place of every "?" marker (key "")
// and every ":key" marker. Text inside single quotes and "::" casts are
// copied verbatim.
func scanRewrite(cond string, fn func(b *strings.Builder, key string) error) (string, error) {
	var b strings.Builder
	inQuote := false
	for i := 0; i < len(cond); i++ {
		c := cond[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case inQuote:
			b.WriteByte(c)
		case c == '?':
			if err := fn(&b, ""); err != nil {
				return "", err
			}
		case c == ':' && i+1 < len(cond) && isWordByte(cond[i+1]) && (i == 0 || (cond[i-1] != ':' && !isWordByte(cond[i-1]))):
			j := i + 1
			for j < len(cond) && isWordByte(cond[j]) {
				j++
			}
			if err := fn(&b, cond[i+1:j]); err != nil {
				return "", err
			}
			i = j - 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

func isWordByte(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
