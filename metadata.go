package rowpager

import (
	"fmt"
	"maps"
	"net/url"
	"time"

	"github.com/google/go-querystring/query"
)

// Strategy names the pagination strategy that produced a response.
type Strategy string

const (
	StrategyCursor Strategy = "cursor"
	StrategyKeyset Strategy = "keyset"
	StrategyOffset Strategy = "offset"
)

// PageInfo is the navigation state of a page.
type PageInfo struct {
	HasNextPage     bool   `json:"has_next_page"`
	HasPreviousPage bool   `json:"has_previous_page"`
	StartCursor     string `json:"start_cursor,omitempty"`
	EndCursor       string `json:"end_cursor,omitempty"`
}

// PaginationMetadata is the presentation form of a page result.
type PaginationMetadata struct {
	PageInfo        PageInfo `json:"page_info"`
	TotalCount      *int64   `json:"total_count,omitempty"`
	PageSize        int      `json:"page_size"`
	QueryTimeMs     float64  `json:"query_time_ms"`
	Strategy        Strategy `json:"strategy"`
	FirstPageURL    string   `json:"first_page_url,omitempty"`
	NextPageURL     string   `json:"next_page_url,omitempty"`
	PreviousPageURL string   `json:"previous_page_url,omitempty"`
}

// Response is the page response envelope:
//
//	{"data": [...], "pagination": {"page_info": {...}, "page_size": 20, ...}}
type Response[T any] struct {
	Data       []T                `json:"data"`
	Pagination PaginationMetadata `json:"pagination"`
}

// MapResponse converts response data with mapper, keeping pagination
// metadata.
func MapResponse[T any](resp *Response[Row], mapper Mapper[T]) (*Response[T], error) {
	data, err := MapItems(resp.Data, mapper)
	if err != nil {
		return nil, err
	}

	return &Response[T]{Data: data, Pagination: resp.Pagination}, nil
}

// NavigationQuery is the query string of a navigation URL. Keys are encoded
// in alphabetical order, so equal queries always produce equal URLs.
type NavigationQuery struct {
	AfterID   string    `url:"after_id,omitempty"`
	BeforeID  string    `url:"before_id,omitempty"`
	Cursor    string    `url:"cursor,omitempty"`
	Direction Direction `url:"direction,omitempty"`
	Limit     int       `url:"limit"`
	Offset    *int      `url:"offset,omitempty"`
	SortBy    string    `url:"sort_by,omitempty"`
	SortOrder string    `url:"sort_order,omitempty"`
}

// Navigator builds navigation URLs relative to a base URL. A zero Navigator
// builds no URLs.
type Navigator struct {
	base *url.URL
}

func NewNavigator(baseURL string) (Navigator, error) {
	if baseURL == "" {
		return Navigator{}, nil
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return Navigator{}, fmt.Errorf("%w: invalid navigation base url: %v", ErrInvalidConfig, err)
	}

	return Navigator{base: u}, nil
}

// Build returns the URL for nq. Query parameters already present in the base
// URL are kept unless nq overrides them.
func (n Navigator) Build(nq NavigationQuery) string {
	if n.base == nil {
		return ""
	}

	values, err := query.Values(nq)
	if err != nil {
		// NavigationQuery only holds encodable fields.
		panic(fmt.Errorf("cannot encode navigation query: %w", err))
	}

	merged := n.base.Query()
	maps.Copy(merged, values)

	u := *n.base
	u.RawQuery = merged.Encode()

	return u.String()
}

func navigationBase(params Params, limit int) NavigationQuery {
	return NavigationQuery{
		Limit:     limit,
		SortBy:    params.SortBy,
		SortOrder: params.SortOrder,
	}
}

func queryTimeMs(elapsed time.Duration) float64 {
	return float64(elapsed.Microseconds()) / 1000
}

// NewCursorMetadata builds metadata for a cursor page. encode turns page
// cursors into wire tokens.
func NewCursorMetadata[T any](
	page *CursorPage[T],
	encode func(*Cursor) string,
	nav Navigator,
	params Params,
	elapsed time.Duration,
) PaginationMetadata {
	ret := PaginationMetadata{
		PageInfo: PageInfo{
			HasNextPage:     page.HasNext,
			HasPreviousPage: page.HasPrevious,
			StartCursor:     encode(page.StartCursor),
			EndCursor:       encode(page.EndCursor),
		},
		TotalCount:  page.TotalCount,
		PageSize:    page.Limit,
		QueryTimeMs: queryTimeMs(elapsed),
		Strategy:    StrategyCursor,
	}

	first := navigationBase(params, page.Limit)
	ret.FirstPageURL = nav.Build(first)

	if page.HasNext && ret.PageInfo.EndCursor != "" {
		next := first
		next.Cursor = ret.PageInfo.EndCursor
		next.Direction = DirectionForward
		ret.NextPageURL = nav.Build(next)
	}

	if page.HasPrevious && ret.PageInfo.StartCursor != "" {
		prev := first
		prev.Cursor = ret.PageInfo.StartCursor
		prev.Direction = DirectionBackward
		ret.PreviousPageURL = nav.Build(prev)
	}

	return ret
}

// NewKeysetMetadata builds metadata for a keyset page. Navigation URLs use
// after_id/before_id anchors read from idColumn of the boundary rows.
func NewKeysetMetadata(
	page *KeysetPage[Row],
	idColumn string,
	nav Navigator,
	params Params,
	elapsed time.Duration,
) PaginationMetadata {
	ret := PaginationMetadata{
		PageInfo: PageInfo{
			HasNextPage:     page.HasNext,
			HasPreviousPage: page.HasPrevious,
			StartCursor:     page.FirstKeyset.String(),
			EndCursor:       page.LastKeyset.String(),
		},
		TotalCount:  page.TotalCount,
		PageSize:    page.Limit,
		QueryTimeMs: queryTimeMs(elapsed),
		Strategy:    StrategyKeyset,
	}

	first := navigationBase(params, page.Limit)
	ret.FirstPageURL = nav.Build(first)

	if len(page.Items) == 0 {
		return ret
	}

	if lastID, err := rowString(page.Items[len(page.Items)-1], idColumn); err == nil && page.HasNext {
		next := first
		next.AfterID = lastID
		ret.NextPageURL = nav.Build(next)
	}

	if firstID, err := rowString(page.Items[0], idColumn); err == nil && page.HasPrevious {
		prev := first
		prev.BeforeID = firstID
		ret.PreviousPageURL = nav.Build(prev)
	}

	return ret
}

// NewOffsetMetadata builds metadata for an offset page.
func NewOffsetMetadata[T any](page *OffsetPage[T], nav Navigator, params Params, elapsed time.Duration) PaginationMetadata {
	ret := PaginationMetadata{
		PageInfo: PageInfo{
			HasNextPage:     page.HasNext,
			HasPreviousPage: page.HasPrevious,
		},
		TotalCount:  page.TotalCount,
		PageSize:    page.Limit,
		QueryTimeMs: queryTimeMs(elapsed),
		Strategy:    StrategyOffset,
	}

	first := navigationBase(params, page.Limit)
	ret.FirstPageURL = nav.Build(first)

	if next := page.NextOffset(); next >= 0 {
		nq := first
		nq.Offset = &next
		ret.NextPageURL = nav.Build(nq)
	}

	if prev := page.PreviousOffset(); prev >= 0 {
		nq := first
		nq.Offset = &prev
		ret.PreviousPageURL = nav.Build(nq)
	}

	return ret
}
