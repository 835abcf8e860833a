package rowpager

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// Facade selects a pagination strategy from request Params and normalizes
// the result into a Response.
//
// Selection, in priority order:
//   - Params.Cursor holds a keyset token (the page_info cursors of keyset
//     pages): KeysetPaginator, continuing from that token;
//   - Params.Cursor set otherwise: CursorPaginator;
//   - Params.AfterID or Params.BeforeID set: KeysetPaginator, anchored at the
//     key column values of that row;
//   - otherwise: OffsetPaginator.
type Facade struct {
	base
	cursor    *CursorPaginator
	keyset    *KeysetPaginator
	offset    *OffsetPaginator
	nav       Navigator
	idColumn  string
	sortAlias ColumnMapping
	now       func() time.Time
}

// NewFacade creates a facade from cfg. cfg is validated first.
func NewFacade(cfg Config, opts ...Option) (*Facade, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts = append([]Option{WithLimits(cfg.Limits)}, opts...)

	keyset, err := NewKeysetPaginator(cfg.Keyset, opts...)
	if err != nil {
		return nil, err
	}

	nav, err := NewNavigator(cfg.Navigation.BaseURL)
	if err != nil {
		return nil, err
	}

	return &Facade{
		base:     newBase(opts),
		cursor:   NewCursorPaginator(cfg.Cursor, opts...),
		keyset:   keyset,
		offset:   NewOffsetPaginator(cfg.Cursor.IDColumn, cfg.Cursor.TimestampColumn, opts...),
		nav:      nav,
		idColumn: cfg.Cursor.IDColumn,
		now:      time.Now,
	}, nil
}

// WithSortColumns restricts sort_by to the aliases of mapping. Aliases are
// translated into column names before they reach SQL.
func (f *Facade) WithSortColumns(mapping ColumnMapping) *Facade {
	f.sortAlias = mapping
	return f
}

// Cursor returns the underlying cursor paginator.
func (f *Facade) Cursor() *CursorPaginator {
	return f.cursor
}

// Keyset returns the underlying keyset paginator.
func (f *Facade) Keyset() *KeysetPaginator {
	return f.keyset
}

// Paginate fetches one page of q. countQuery is optional and only used by
// cursor pagination with Params.IncludeTotal.
func (f *Facade) Paginate(
	ctx context.Context,
	db *gorm.DB,
	q Query,
	params Params,
	countQuery *Query,
) (*Response[Row], error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	resolved, err := f.resolveSort(params)
	if err != nil {
		return nil, err
	}

	start := f.now()

	switch {
	case isKeysetToken(params.Cursor):
		page, err := f.keyset.Paginate(ctx, db, q, resolved, nil)
		if err != nil {
			return nil, err
		}

		return &Response[Row]{
			Data:       page.Items,
			Pagination: NewKeysetMetadata(page, f.idColumn, f.nav, params, f.now().Sub(start)),
		}, nil

	case params.Cursor != "":
		page, err := f.cursor.Paginate(ctx, db, q, resolved, countQuery)
		if err != nil {
			return nil, err
		}

		return &Response[Row]{
			Data:       page.Items,
			Pagination: NewCursorMetadata(page, f.cursor.EncodeCursor, f.nav, params, f.now().Sub(start)),
		}, nil

	case params.AfterID != "" || params.BeforeID != "":
		page, err := f.paginateAnchored(ctx, db, q, resolved)
		if err != nil {
			return nil, err
		}

		return &Response[Row]{
			Data:       page.Items,
			Pagination: NewKeysetMetadata(page, f.idColumn, f.nav, params, f.now().Sub(start)),
		}, nil

	default:
		page, err := f.offset.Paginate(ctx, db, q, resolved)
		if err != nil {
			return nil, err
		}

		meta := NewOffsetMetadata(page, f.nav, params, f.now().Sub(start))
		// Boundary cursors let clients switch from offsets to cursors.
		meta.PageInfo.StartCursor, meta.PageInfo.EndCursor = f.boundaryCursors(page.Items, resolved.SortBy)

		return &Response[Row]{
			Data:       page.Items,
			Pagination: meta,
		}, nil
	}
}

// PaginateAs is Facade.Paginate followed by MapResponse.
func PaginateAs[T any](
	ctx context.Context,
	f *Facade,
	db *gorm.DB,
	q Query,
	params Params,
	countQuery *Query,
	mapper Mapper[T],
) (*Response[T], error) {
	resp, err := f.Paginate(ctx, db, q, params, countQuery)
	if err != nil {
		return nil, err
	}

	return MapResponse(resp, mapper)
}

func (f *Facade) paginateAnchored(ctx context.Context, db *gorm.DB, q Query, params Params) (*KeysetPage[Row], error) {
	anchorID := params.AfterID
	params.Direction = DirectionForward
	if params.BeforeID != "" {
		anchorID = params.BeforeID
		params.Direction = DirectionBackward
	}
	params.Cursor = ""

	keyset, err := f.keyset.anchorKeyset(ctx, db, q, f.idColumn, anchorID)
	if err != nil {
		return nil, err
	}

	if keyset == nil {
		f.logger.Warn().
			Str("anchor_id", anchorID).
			Msg("keyset anchor row not found, returning first page")
		params.Direction = DirectionForward
	}

	return f.keyset.Paginate(ctx, db, q, params, keyset)
}

// boundaryCursors returns cursor tokens for the first and last rows, or empty
// strings when the rows lack the cursor columns.
func (f *Facade) boundaryCursors(items []Row, sortBy string) (string, string) {
	if len(items) == 0 {
		return "", ""
	}

	sortColumn := lo.CoalesceOrEmpty(sortBy, f.cursor.timestampColumn)

	first, err := NewCursorFromRow(items[0], f.cursor.idColumn, f.cursor.timestampColumn, sortColumn)
	if err != nil {
		f.logger.Debug().Err(err).Msg("cannot build boundary cursor")
		return "", ""
	}

	last, err := NewCursorFromRow(items[len(items)-1], f.cursor.idColumn, f.cursor.timestampColumn, sortColumn)
	if err != nil {
		f.logger.Debug().Err(err).Msg("cannot build boundary cursor")
		return "", ""
	}

	return f.cursor.EncodeCursor(first), f.cursor.EncodeCursor(last)
}

func (f *Facade) resolveSort(params Params) (Params, error) {
	if params.SortBy == "" || f.sortAlias == nil {
		return params, nil
	}

	column, err := ResolveColumn(ColumnAlias(params.SortBy), f.sortAlias)
	if err != nil {
		return Params{}, fmt.Errorf("cannot resolve sort_by: %w", err)
	}
	params.SortBy = column

	return params, nil
}
