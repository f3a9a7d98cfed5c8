package sqlite

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// Count returns the number of records the query yields. The query is
// wrapped as a derived table so joins, grouping and limits count correctly.
// The result is cached until the list changes.
func (l *List) Count(ctx context.Context) (int, error) {
	if l.buildErr != nil {
		return 0, l.buildErr
	}
	if l.hasCount {
		return l.count, nil
	}

	stmt, args, err := l.sel.CountSQL()
	if err != nil {
		return 0, err
	}
	rows, err := l.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("%w: %w", types.ErrExecution, err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", types.ErrExecution, err)
	}
	l.count, l.hasCount = n, true
	return n, nil
}

// Paginate limits the list to one 1-based page and returns the number of
// pages. Count afterwards reports the records on that page without another
// query.
func (l *List) Paginate(ctx context.Context, page, perPage int) (int, error) {
	if perPage <= 0 {
		return 0, fmt.Errorf("%w: page size %d", types.ErrInvalidArgument, perPage)
	}
	if l.buildErr != nil {
		return 0, l.buildErr
	}

	l.Reset(types.PartLimitCount, types.PartLimitOffset)
	total, err := l.Count(ctx)
	if err != nil {
		return 0, err
	}
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * perPage
	l.LimitPage(page, perPage)

	l.count = max(0, min(perPage, total-offset))
	l.hasCount = true
	return (total + perPage - 1) / perPage, nil
}
