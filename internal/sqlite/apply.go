package sqlite

import (
	"fmt"

	"github.com/spf13/cast"

	"github.com/mesh-intelligence/simpledb/internal/query"
	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// Apply runs the builder operation named op with args. It serves callers
// that hold operation names as data, such as the command line. The set of
// operations is closed:
//
//	where, orWhere               condition, placeholder values...
//	having, orHaving             condition, placeholder values...
//	order, group                 expressions...
//	limit                        count[, offset]
//	limitPage                    page, perPage
//	distinct                     [bool]
//	columns, fields              columns...
//	join, joinInner, joinLeft    target, condition[, columns...]
//	reset                        [part names...]
//	alias                        name
//
// Other names, including joinRight, joinFull, joinCross, joinNatural,
// union and forUpdate, fail with types.ErrUnsupportedOperation. A rejected
// argument is returned and does not poison the list.
func (l *List) Apply(op string, args ...any) error {
	prev := l.buildErr
	l.buildErr = nil
	err := l.apply(op, args)
	if err == nil {
		err = l.buildErr
	}
	l.buildErr = prev
	return err
}

func (l *List) apply(op string, args []any) error {
	switch op {
	case "where", "orWhere", "having", "orHaving":
		cond, err := stringArg(op, args, 0)
		if err != nil {
			return err
		}
		switch op {
		case "where":
			l.Where(cond, args[1:]...)
		case "orWhere":
			l.OrWhere(cond, args[1:]...)
		case "orHaving":
			l.OrHaving(cond, args[1:]...)
		default:
			l.Having(cond, args[1:]...)
		}
	case "order", "group":
		exprs, err := cast.ToStringSliceE(args)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", types.ErrInvalidArgument, op, err)
		}
		if op == "order" {
			l.Order(exprs...)
		} else {
			l.Group(exprs...)
		}
	case "limit":
		count, err := intArg(op, args, 0)
		if err != nil {
			return err
		}
		offset := 0
		if len(args) > 1 {
			if offset, err = intArg(op, args, 1); err != nil {
				return err
			}
		}
		l.Limit(count, offset)
	case "limitPage":
		page, err := intArg(op, args, 0)
		if err != nil {
			return err
		}
		perPage, err := intArg(op, args, 1)
		if err != nil {
			return err
		}
		l.LimitPage(page, perPage)
	case "distinct":
		on := true
		if len(args) > 0 {
			b, err := cast.ToBoolE(args[0])
			if err != nil {
				return fmt.Errorf("%w: %s: %w", types.ErrInvalidArgument, op, err)
			}
			on = b
		}
		l.Distinct(on)
	case "columns", "fields":
		cols, err := cast.ToStringSliceE(args)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", types.ErrInvalidArgument, op, err)
		}
		l.Fields(cols...)
	case "join", "joinInner", "joinLeft":
		target, err := stringArg(op, args, 0)
		if err != nil {
			return err
		}
		cond, err := stringArg(op, args, 1)
		if err != nil {
			return err
		}
		cols, err := cast.ToStringSliceE(args[2:])
		if err != nil {
			return fmt.Errorf("%w: %s: %w", types.ErrInvalidArgument, op, err)
		}
		l.join(query.JoinEntry{Kind: types.JoinKind(op), Target: target, Condition: cond, Columns: cols})
	case "reset":
		names, err := cast.ToStringSliceE(args)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", types.ErrInvalidArgument, op, err)
		}
		parts := make([]types.Part, 0, len(names))
		for _, n := range names {
			p, ok := types.ParsePart(n)
			if !ok {
				return fmt.Errorf("%w: reset: unknown clause %q", types.ErrInvalidArgument, n)
			}
			parts = append(parts, p)
		}
		l.Reset(parts...)
	case "alias":
		name, err := stringArg(op, args, 0)
		if err != nil {
			return err
		}
		l.Alias(name)
	default:
		return fmt.Errorf("%w: %s", types.ErrUnsupportedOperation, op)
	}
	return nil
}

func stringArg(op string, args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("%w: %s: missing argument %d", types.ErrInvalidArgument, op, i+1)
	}
	s, err := cast.ToStringE(args[i])
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", types.ErrInvalidArgument, op, err)
	}
	return s, nil
}

func intArg(op string, args []any, i int) (int, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("%w: %s: missing argument %d", types.ErrInvalidArgument, op, i+1)
	}
	n, err := cast.ToIntE(args[i])
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", types.ErrInvalidArgument, op, err)
	}
	return n, nil
}
