package rowpager

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// OffsetPaginator is the legacy LIMIT/OFFSET strategy. It is kept for
// clients that still send offsets; its cost grows with the offset, so prefer
// CursorPaginator or KeysetPaginator on large tables.
type OffsetPaginator struct {
	base
	idColumn      string
	defaultColumn string
	maxOffset     int
}

// NewOffsetPaginator creates an offset paginator ordered by
// (sort_by or defaultColumn, idColumn).
func NewOffsetPaginator(idColumn, defaultColumn string, opts ...Option) *OffsetPaginator {
	return &OffsetPaginator{
		base:          newBase(opts),
		idColumn:      lo.CoalesceOrEmpty(idColumn, "id"),
		defaultColumn: lo.CoalesceOrEmpty(defaultColumn, idColumn, "id"),
		maxOffset:     DefaultMaxStreamRows,
	}
}

// Paginate returns rows [offset, offset+limit) of q.
func (p *OffsetPaginator) Paginate(ctx context.Context, db *gorm.DB, q Query, params Params) (*OffsetPage[Row], error) {
	limit := p.limit(params.Limit)
	offset := min(max(params.Offset, 0), p.maxOffset)

	order, err := p.sortOrder(params.SortOrder)
	if err != nil {
		return nil, err
	}

	sortColumn := lo.CoalesceOrEmpty(params.SortBy, p.defaultColumn)
	orderings := orderingsFor(order, lo.Uniq([]string{sortColumn, p.idColumn})...)
	if err = orderings.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	tx := q.derivedTable(db.WithContext(ctx), "paged")
	// Same NULL placement as CursorPaginator, so boundary cursors of an
	// offset page continue it.
	if sortColumn != p.defaultColumn && sortColumn != p.idColumn {
		tx = tx.Order(nullPlacement(sortColumn, true))
	}
	tx = orderings.Apply(tx).Limit(limit + 1)
	if offset > 0 {
		tx = tx.Offset(offset)
	}

	resultSet, err := fetchRows(tx)
	if err != nil {
		return nil, fmt.Errorf("cannot fetch page: %w", err)
	}

	items, more := lookahead(resultSet, limit)
	page := &OffsetPage[Row]{
		Items:       lo.Ternary(items == nil, []Row{}, items),
		HasNext:     more,
		HasPrevious: offset > 0,
		Offset:      offset,
		Limit:       limit,
	}

	if params.IncludeTotal {
		total, countErr := countRows(ctx, db, q, nil)
		if countErr != nil {
			return nil, countErr
		}
		page.TotalCount = &total
	}

	return page, nil
}

// NextOffset returns the offset of the following page, or -1 on the last page.
func (p *OffsetPage[T]) NextOffset() int {
	if !p.HasNext {
		return -1
	}

	return p.Offset + len(p.Items)
}

// PreviousOffset returns the offset of the preceding page, or -1 on the first page.
func (p *OffsetPage[T]) PreviousOffset() int {
	if !p.HasPrevious {
		return -1
	}

	return max(p.Offset-p.Limit, 0)
}
