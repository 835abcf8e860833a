package rowpager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestFacade(t *testing.T) (*Facade, *gorm.DB) {
	t.Helper()

	db := newSQLiteDB(t)
	seedMemories(t, db, 7)

	cfg := DefaultConfig()
	cfg.Navigation.BaseURL = "/memories"

	f, err := NewFacade(cfg)
	require.NoError(t, err)

	return f, db
}

func Test_NewFacade_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Keyset.KeyColumns = []string{"id", "id"}
	_, err := NewFacade(cfg)
	require.ErrorIs(t, err, ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.Cursor.IDColumn = "id)"
	_, err = NewFacade(cfg)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func Test_Facade_Paginate_Offset(t *testing.T) {
	f, db := newTestFacade(t)
	ctx := context.Background()

	resp, err := f.Paginate(ctx, db, _memoriesQuery, Params{Limit: 3}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"m-07", "m-06", "m-05"}, rowIDs(resp.Data))
	assert.Equal(t, StrategyOffset, resp.Pagination.Strategy)
	assert.True(t, resp.Pagination.PageInfo.HasNextPage)
	assert.False(t, resp.Pagination.PageInfo.HasPreviousPage)
	assert.Equal(t, "/memories?limit=3&offset=3", resp.Pagination.NextPageURL)
	assert.Empty(t, resp.Pagination.PreviousPageURL)

	t.Run("end cursor continues with cursor pagination", func(t *testing.T) {
		require.NotEmpty(t, resp.Pagination.PageInfo.EndCursor)

		next, err := f.Paginate(ctx, db, _memoriesQuery, Params{Limit: 3, Cursor: resp.Pagination.PageInfo.EndCursor}, nil)
		require.NoError(t, err)
		assert.Equal(t, StrategyCursor, next.Pagination.Strategy)
		assert.Equal(t, []string{"m-04", "m-03", "m-02"}, rowIDs(next.Data))
		assert.True(t, next.Pagination.PageInfo.HasPreviousPage)
		assert.Contains(t, next.Pagination.NextPageURL, "direction=forward")
		assert.Contains(t, next.Pagination.PreviousPageURL, "direction=backward")
	})
}

func Test_Facade_Paginate_Cursor(t *testing.T) {
	f, db := newTestFacade(t)
	ctx := context.Background()

	first, err := f.Paginate(ctx, db, _memoriesQuery, Params{Limit: 3, IncludeTotal: true}, nil)
	require.NoError(t, err)

	var (
		got    []string
		params = Params{Limit: 3, Cursor: first.Pagination.PageInfo.EndCursor}
	)
	got = append(got, rowIDs(first.Data)...)
	for {
		resp, err := f.Paginate(ctx, db, _memoriesQuery, params, nil)
		require.NoError(t, err)
		require.Equal(t, StrategyCursor, resp.Pagination.Strategy)
		got = append(got, rowIDs(resp.Data)...)
		if !resp.Pagination.PageInfo.HasNextPage {
			assert.Empty(t, resp.Pagination.NextPageURL)
			break
		}
		params.Cursor = resp.Pagination.PageInfo.EndCursor
	}

	assert.Equal(t, []string{"m-07", "m-06", "m-05", "m-04", "m-03", "m-02", "m-01"}, got)
	require.NotNil(t, first.Pagination.TotalCount)
	assert.Equal(t, int64(7), *first.Pagination.TotalCount)
}

func Test_Facade_Paginate_Anchors(t *testing.T) {
	f, db := newTestFacade(t)
	ctx := context.Background()

	tests := []struct {
		name         string
		params       Params
		wantIDs      []string
		wantNext     bool
		wantPrevious bool
	}{
		{
			name:         "after id",
			params:       Params{Limit: 2, AfterID: "m-04"},
			wantIDs:      []string{"m-03", "m-02"},
			wantNext:     true,
			wantPrevious: true,
		},
		{
			name:         "before id",
			params:       Params{Limit: 2, BeforeID: "m-04"},
			wantIDs:      []string{"m-06", "m-05"},
			wantNext:     true,
			wantPrevious: true,
		},
		{
			name:         "before id near the start",
			params:       Params{Limit: 2, BeforeID: "m-06"},
			wantIDs:      []string{"m-07"},
			wantNext:     true,
			wantPrevious: false,
		},
		{
			name:         "missing anchor returns first page",
			params:       Params{Limit: 2, AfterID: "m-99"},
			wantIDs:      []string{"m-07", "m-06"},
			wantNext:     true,
			wantPrevious: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := f.Paginate(ctx, db, _memoriesQuery, tt.params, nil)
			require.NoError(t, err)

			assert.Equal(t, StrategyKeyset, resp.Pagination.Strategy)
			assert.Equal(t, tt.wantIDs, rowIDs(resp.Data))
			assert.Equal(t, tt.wantNext, resp.Pagination.PageInfo.HasNextPage)
			assert.Equal(t, tt.wantPrevious, resp.Pagination.PageInfo.HasPreviousPage)
		})
	}

	t.Run("navigation urls use anchors", func(t *testing.T) {
		resp, err := f.Paginate(ctx, db, _memoriesQuery, Params{Limit: 2, AfterID: "m-04"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "/memories?after_id=m-02&limit=2", resp.Pagination.NextPageURL)
		assert.Equal(t, "/memories?before_id=m-03&limit=2", resp.Pagination.PreviousPageURL)
	})
}

func Test_Facade_Paginate_KeysetCursor(t *testing.T) {
	f, db := newTestFacade(t)
	ctx := context.Background()

	anchored, err := f.Paginate(ctx, db, _memoriesQuery, Params{Limit: 2, AfterID: "m-06"}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"m-05", "m-04"}, rowIDs(anchored.Data))
	require.NotEmpty(t, anchored.Pagination.PageInfo.EndCursor)

	next, err := f.Paginate(ctx, db, _memoriesQuery, Params{Limit: 2, Cursor: anchored.Pagination.PageInfo.EndCursor}, nil)
	require.NoError(t, err)
	assert.Equal(t, StrategyKeyset, next.Pagination.Strategy)
	assert.Equal(t, []string{"m-03", "m-02"}, rowIDs(next.Data))
	assert.True(t, next.Pagination.PageInfo.HasNextPage)
	assert.True(t, next.Pagination.PageInfo.HasPreviousPage)

	back, err := f.Paginate(ctx, db, _memoriesQuery, Params{
		Limit:     2,
		Cursor:    next.Pagination.PageInfo.StartCursor,
		Direction: DirectionBackward,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, StrategyKeyset, back.Pagination.Strategy)
	assert.Equal(t, []string{"m-05", "m-04"}, rowIDs(back.Data))
	assert.True(t, back.Pagination.PageInfo.HasNextPage)
	assert.True(t, back.Pagination.PageInfo.HasPreviousPage)

	t.Run("malformed keyset token returns first page", func(t *testing.T) {
		resp, err := f.Paginate(ctx, db, _memoriesQuery, Params{Limit: 2, Cursor: keysetTokenPrefix + "!!!"}, nil)
		require.NoError(t, err)
		assert.Equal(t, StrategyKeyset, resp.Pagination.Strategy)
		assert.Equal(t, []string{"m-07", "m-06"}, rowIDs(resp.Data))
		assert.False(t, resp.Pagination.PageInfo.HasPreviousPage)
	})
}

func Test_Facade_Paginate_SortAliases(t *testing.T) {
	f, db := newTestFacade(t)
	f.WithSortColumns(ColumnMapping{"created": "created_at", "rank": "score"})
	ctx := context.Background()

	resp, err := f.Paginate(ctx, db, _memoriesQuery, Params{Limit: 3, SortBy: "rank", SortOrder: "asc"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"m-03", "m-06", "m-01"}, rowIDs(resp.Data))
	// URLs carry the public alias.
	assert.Contains(t, resp.Pagination.NextPageURL, "sort_by=rank")

	_, err = f.Paginate(ctx, db, _memoriesQuery, Params{SortBy: "score"}, nil)
	require.ErrorIs(t, err, ErrInvalidParams)
}

func Test_Facade_Paginate_InvalidParams(t *testing.T) {
	f, db := newTestFacade(t)

	_, err := f.Paginate(context.Background(), db, _memoriesQuery, Params{AfterID: "a", BeforeID: "b"}, nil)
	require.ErrorIs(t, err, ErrInvalidParams)

	_, err = f.Paginate(context.Background(), db, _memoriesQuery, Params{Limit: -3}, nil)
	require.ErrorIs(t, err, ErrInvalidParams)
}

func Test_PaginateAs(t *testing.T) {
	f, db := newTestFacade(t)

	resp, err := PaginateAs(context.Background(), f, db, _memoriesQuery, Params{Limit: 2}, nil,
		func(row Row) (string, error) {
			return rowString(row, "title")
		},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"memory 7", "memory 6"}, resp.Data)
	assert.Equal(t, StrategyOffset, resp.Pagination.Strategy)
}
