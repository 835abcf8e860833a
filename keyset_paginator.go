package rowpager

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"github.com/samber/lo/mutable"
	"gorm.io/gorm"
)

// KeysetPaginator pages through a base query by seeking past the key column
// values of a boundary row.
//
// IMPORTANT:
// keyColumns is the single source of column priority. Both the seek
// predicate and the ORDER BY are derived from it, never from the order of
// a KeysetCursor.
type KeysetPaginator struct {
	base
	keyColumns []string
}

func NewKeysetPaginator(cfg KeysetConfig, opts ...Option) (*KeysetPaginator, error) {
	if len(cfg.KeyColumns) == 0 {
		return nil, fmt.Errorf("%w: empty key column list", ErrInvalidConfig)
	}

	for _, column := range cfg.KeyColumns {
		if err := validateColumnName(column); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	if len(lo.Uniq(cfg.KeyColumns)) != len(cfg.KeyColumns) {
		return nil, fmt.Errorf("%w: duplicated key column", ErrInvalidConfig)
	}

	return &KeysetPaginator{
		base:       newBase(opts),
		keyColumns: append([]string(nil), cfg.KeyColumns...),
	}, nil
}

// KeyColumns returns the declared key columns.
func (p *KeysetPaginator) KeyColumns() []string {
	return append([]string(nil), p.keyColumns...)
}

// Paginate fetches one page of q positioned after (forward) or before
// (backward) keyset. When keyset is nil, params.Cursor is decoded as a
// KeysetCursor token. An invalid keyset is ignored and the first page is
// returned.
func (p *KeysetPaginator) Paginate(
	ctx context.Context,
	db *gorm.DB,
	q Query,
	params Params,
	keyset *KeysetCursor,
) (*KeysetPage[Row], error) {
	limit := p.limit(params.Limit)

	order, err := p.sortOrder(params.SortOrder)
	if err != nil {
		return nil, err
	}

	orderings := orderingsFor(order, p.keyColumns...)
	backward := params.isBackward()
	queryOrderings := lo.Ternary(backward, orderings.Reverse(), orderings)

	keyset = p.keysetFailOpen(keyset, params.Cursor)

	tx := q.derivedTable(db.WithContext(ctx), "paged")
	if !keyset.IsEmpty() {
		tx = tx.Where(newSeekPredicate(queryOrderings, keyset.valuesFor(p.keyColumns)).Expression())
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

	hasKeyset := !keyset.IsEmpty()
	page := &KeysetPage[Row]{
		Items:       lo.Ternary(items == nil, []Row{}, items),
		HasNext:     lo.Ternary(backward, hasKeyset, more),
		HasPrevious: lo.Ternary(backward, more, hasKeyset),
		Limit:       limit,
	}

	if len(items) > 0 {
		page.FirstKeyset, err = NewKeysetCursorFromRow(items[0], p.keyColumns)
		if err != nil {
			return nil, err
		}

		page.LastKeyset, err = NewKeysetCursorFromRow(items[len(items)-1], p.keyColumns)
		if err != nil {
			return nil, err
		}
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

// PaginateKeysetAs is Paginate followed by MapKeysetPage.
func PaginateKeysetAs[T any](
	ctx context.Context,
	p *KeysetPaginator,
	db *gorm.DB,
	q Query,
	params Params,
	keyset *KeysetCursor,
	mapper Mapper[T],
) (*KeysetPage[T], error) {
	page, err := p.Paginate(ctx, db, q, params, keyset)
	if err != nil {
		return nil, err
	}

	return MapKeysetPage(page, mapper)
}

// anchorKeyset loads the key column values of the row whose idColumn equals
// id. It returns nil when the row does not exist.
func (p *KeysetPaginator) anchorKeyset(
	ctx context.Context,
	db *gorm.DB,
	q Query,
	idColumn string,
	id string,
) (*KeysetCursor, error) {
	tx := q.derivedTable(db.WithContext(ctx), "anchor").
		Select(p.keyColumns).
		Where(fmt.Sprintf("%s = ?", idColumn), id).
		Limit(1)

	rows, err := fetchRows(tx)
	if err != nil {
		return nil, fmt.Errorf("cannot fetch keyset anchor: %w", err)
	}

	if len(rows) == 0 {
		return nil, nil
	}

	return NewKeysetCursorFromRow(rows[0], p.keyColumns)
}

func (p *KeysetPaginator) keysetFailOpen(keyset *KeysetCursor, token string) *KeysetCursor {
	if keyset == nil && token != "" {
		decoded, err := DecodeKeysetCursor(token)
		if err != nil {
			p.logger.Warn().Err(err).Msg("ignoring malformed keyset token, returning first page")
			return nil
		}
		keyset = decoded
	}

	if err := keyset.validate(p.keyColumns); err != nil {
		p.logger.Warn().
			Err(err).
			Strs("key_columns", p.keyColumns).
			Msg("ignoring keyset not matching key columns, returning first page")
		return nil
	}

	return keyset
}
