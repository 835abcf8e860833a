package rowpager

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"github.com/samber/lo/mutable"
	"gorm.io/gorm"
)

// CursorPaginator pages through a base query ordered by
// (sort column or timestamp column, id column) using opaque Cursor tokens.
//
// The paginator is stateless: every call is self-contained and safe for
// concurrent use.
type CursorPaginator struct {
	base
	idColumn        string
	timestampColumn string
	codec           CursorCodec
}

func NewCursorPaginator(cfg CursorConfig, opts ...Option) *CursorPaginator {
	return &CursorPaginator{
		base:            newBase(opts),
		idColumn:        lo.CoalesceOrEmpty(cfg.IDColumn, "id"),
		timestampColumn: lo.CoalesceOrEmpty(cfg.TimestampColumn, "created_at"),
		codec:           NewCursorCodec(cfg.SigningKey),
	}
}

// EncodeCursor returns the wire token for c, signed when a signing key is
// configured.
func (p *CursorPaginator) EncodeCursor(c *Cursor) string {
	if c == nil {
		return ""
	}

	return p.codec.Encode(*c)
}

// DecodeCursor parses a token produced by EncodeCursor.
func (p *CursorPaginator) DecodeCursor(token string) (*Cursor, error) {
	return p.codec.Decode(token)
}

// Paginate fetches one page of q.
//
// A cursor that cannot be decoded is ignored and the first page is returned
// (fail-open). For DirectionBackward the query order is reversed so that the
// rows adjacent to the cursor are fetched, and the page is flipped back into
// display order before it is returned.
//
// When params.IncludeTotal is set the total is computed with countQuery, or
// with SELECT count(*) over q when countQuery is nil.
func (p *CursorPaginator) Paginate(
	ctx context.Context,
	db *gorm.DB,
	q Query,
	params Params,
	countQuery *Query,
) (*CursorPage[Row], error) {
	limit := p.limit(params.Limit)
	sortColumn := lo.CoalesceOrEmpty(params.SortBy, p.timestampColumn)

	orderings, err := p.orderings(sortColumn, params.SortOrder)
	if err != nil {
		return nil, err
	}

	backward := params.isBackward()
	queryOrderings := lo.Ternary(backward, orderings.Reverse(), orderings)

	tx := q.derivedTable(db.WithContext(ctx), "paged")

	// Custom sort columns may be nullable. NULL rows are displayed last.
	nullable := p.nullableSort(sortColumn)

	cursor := p.decodeCursorFailOpen(params.Cursor, sortColumn)
	if cursor != nil {
		values := p.seekValues(cursor, sortColumn)
		predicate := lo.Ternary(nullable,
			newNullableSeekPredicate(queryOrderings, values, !backward),
			newSeekPredicate(queryOrderings, values),
		)
		if expr := predicate.Expression(); expr != nil {
			tx = tx.Where(expr)
		}
	}

	if nullable {
		tx = tx.Order(nullPlacement(sortColumn, !backward))
	}

	// Fetch one extra record to determine whether a further page exists.
	tx = queryOrderings.Apply(tx).Limit(limit + 1)

	resultSet, err := fetchRows(tx)
	if err != nil {
		return nil, fmt.Errorf("cannot fetch page: %w", err)
	}

	items, more := lookahead(resultSet, limit)
	if backward {
		mutable.Reverse(items)
	}

	// The presence of a cursor is taken as proof that the opposite side has
	// rows. It is not verified with an extra query.
	page := &CursorPage[Row]{
		Items:       lo.Ternary(items == nil, []Row{}, items),
		HasNext:     lo.Ternary(backward, cursor != nil, more),
		HasPrevious: lo.Ternary(backward, more, cursor != nil),
		Limit:       limit,
	}

	if len(items) > 0 {
		page.StartCursor, err = NewCursorFromRow(items[0], p.idColumn, p.timestampColumn, sortColumn)
		if err != nil {
			return nil, err
		}

		page.EndCursor, err = NewCursorFromRow(items[len(items)-1], p.idColumn, p.timestampColumn, sortColumn)
		if err != nil {
			return nil, err
		}
	}

	if params.IncludeTotal {
		total, countErr := countRows(ctx, db, q, countQuery)
		if countErr != nil {
			return nil, countErr
		}
		page.TotalCount = &total
	}

	return page, nil
}

// PaginateCursorAs is Paginate followed by MapCursorPage.
func PaginateCursorAs[T any](
	ctx context.Context,
	p *CursorPaginator,
	db *gorm.DB,
	q Query,
	params Params,
	countQuery *Query,
	mapper Mapper[T],
) (*CursorPage[T], error) {
	page, err := p.Paginate(ctx, db, q, params, countQuery)
	if err != nil {
		return nil, err
	}

	return MapCursorPage(page, mapper)
}

func (p *CursorPaginator) orderings(sortColumn, sortOrder string) (Orderings, error) {
	order, err := p.sortOrder(sortOrder)
	if err != nil {
		return nil, err
	}

	columns := lo.Uniq([]string{sortColumn, p.idColumn})
	orderings := orderingsFor(order, columns...)
	if err = orderings.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	return orderings, nil
}

func (p *CursorPaginator) nullableSort(sortColumn string) bool {
	return sortColumn != p.idColumn && sortColumn != p.timestampColumn
}

// seekValues returns the cursor values matching p.orderings(sortColumn, ...).
func (p *CursorPaginator) seekValues(c *Cursor, sortColumn string) []any {
	if sortColumn == p.idColumn {
		return []any{c.ItemID}
	}

	return []any{c.orderValue(sortColumn, p.timestampColumn), c.ItemID}
}

// decodeCursorFailOpen decodes token. Invalid tokens are logged and ignored.
func (p *CursorPaginator) decodeCursorFailOpen(token, sortColumn string) *Cursor {
	if token == "" {
		return nil
	}

	cursor, err := p.codec.Decode(token)
	if err != nil {
		p.logger.Warn().Err(err).Msg("ignoring malformed cursor, returning first page")
		return nil
	}

	if sortColumn != p.idColumn && cursor.orderValue(sortColumn, p.timestampColumn) == nil && !cursor.NullSortValue {
		p.logger.Warn().
			Str("sort_by", sortColumn).
			Msg("ignoring cursor without sort value, returning first page")
		return nil
	}

	return cursor
}

// countRows executes countQuery, or SELECT count(*) over q when it is nil.
func countRows(ctx context.Context, db *gorm.DB, q Query, countQuery *Query) (int64, error) {
	var total int64

	if countQuery != nil {
		err := db.WithContext(ctx).Raw(countQuery.SQL, countQuery.Args...).Row().Scan(&total)
		if err != nil {
			return 0, fmt.Errorf("cannot count rows: %w", err)
		}

		return total, nil
	}

	if err := q.derivedTable(db.WithContext(ctx), "counted").Count(&total).Error; err != nil {
		return 0, fmt.Errorf("cannot count rows: %w", err)
	}

	return total, nil
}
