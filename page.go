package rowpager

// CursorPage is a page produced by CursorPaginator.
//
// Items are always in display order, whichever direction was queried.
type CursorPage[T any] struct {
	Items       []T
	HasNext     bool
	HasPrevious bool
	// StartCursor points at the first displayed item. Use it with
	// DirectionBackward to request the previous page.
	StartCursor *Cursor
	// EndCursor points at the last displayed item. Use it with
	// DirectionForward to request the next page.
	EndCursor  *Cursor
	TotalCount *int64
	// Limit effective limit used for the query.
	Limit int
}

// KeysetPage is a page produced by KeysetPaginator.
type KeysetPage[T any] struct {
	Items       []T
	HasNext     bool
	HasPrevious bool
	FirstKeyset *KeysetCursor
	LastKeyset  *KeysetCursor
	TotalCount  *int64
	Limit       int
}

// OffsetPage is a page produced by OffsetPaginator.
type OffsetPage[T any] struct {
	Items       []T
	HasNext     bool
	HasPrevious bool
	Offset      int
	TotalCount  *int64
	Limit       int
}

// MapCursorPage converts page items with mapper, keeping page metadata.
func MapCursorPage[T any](page *CursorPage[Row], mapper Mapper[T]) (*CursorPage[T], error) {
	items, err := MapItems(page.Items, mapper)
	if err != nil {
		return nil, err
	}

	return &CursorPage[T]{
		Items:       items,
		HasNext:     page.HasNext,
		HasPrevious: page.HasPrevious,
		StartCursor: page.StartCursor,
		EndCursor:   page.EndCursor,
		TotalCount:  page.TotalCount,
		Limit:       page.Limit,
	}, nil
}

// MapKeysetPage converts page items with mapper, keeping page metadata.
func MapKeysetPage[T any](page *KeysetPage[Row], mapper Mapper[T]) (*KeysetPage[T], error) {
	items, err := MapItems(page.Items, mapper)
	if err != nil {
		return nil, err
	}

	return &KeysetPage[T]{
		Items:       items,
		HasNext:     page.HasNext,
		HasPrevious: page.HasPrevious,
		FirstKeyset: page.FirstKeyset,
		LastKeyset:  page.LastKeyset,
		TotalCount:  page.TotalCount,
		Limit:       page.Limit,
	}, nil
}

// lookahead splits a result set fetched with limit+1 into the page and a flag
// telling whether the lookahead row was present.
func lookahead[T any](resultSet []T, limit int) ([]T, bool) {
	if len(resultSet) > limit {
		return resultSet[:limit], true
	}

	return resultSet, false
}
