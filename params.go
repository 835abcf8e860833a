package rowpager

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var _validate = validator.New(validator.WithRequiredStructEnabled())

// Direction is the traversal direction relative to the cursor.
type Direction string

const (
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
)

func (d Direction) Valid() bool {
	return d == DirectionForward || d == DirectionBackward
}

// Params carries the caller intent for a single page request. Params are
// never mutated by paginators.
//
// Inline it into API payloads:
//
//	type ListMemoriesRequest struct {
//	    rowpager.Params `json:",inline"`
//	}
type Params struct {
	// Limit - maximum number of records to return. Clamped to [1, max limit].
	Limit int `json:"limit" query:"limit" validate:"gte=0"`
	// Offset - legacy offset pagination. Ignored when a cursor or an anchor id is set.
	Offset int `json:"offset" query:"offset" validate:"gte=0"`
	// Cursor - opaque token from the page_info of a previous page, either a
	// Cursor token or a keyset token.
	Cursor string `json:"cursor,omitempty" query:"cursor"`
	// Direction - traversal direction relative to Cursor, AfterID or BeforeID.
	Direction Direction `json:"direction,omitempty" query:"direction" validate:"omitempty,oneof=forward backward"`
	// AfterID - keyset anchor: return rows following this id.
	AfterID string `json:"after_id,omitempty" query:"after_id"`
	// BeforeID - keyset anchor: return rows preceding this id.
	BeforeID string `json:"before_id,omitempty" query:"before_id"`
	// SortBy - ordering column (or alias when the facade has a column mapping).
	SortBy string `json:"sort_by,omitempty" query:"sort_by" validate:"omitempty,max=128"`
	// SortOrder - "asc" or "desc".
	SortOrder string `json:"sort_order,omitempty" query:"sort_order" validate:"omitempty,oneof=asc desc ASC DESC"`
	// IncludeTotal - attach the total number of rows matching the base query.
	IncludeTotal bool `json:"include_total,omitempty" query:"include_total"`
}

// Validate checks Params. Errors wrap ErrInvalidParams.
func (p Params) Validate() error {
	if err := _validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	if p.AfterID != "" && p.BeforeID != "" {
		return fmt.Errorf("%w: after_id and before_id are mutually exclusive", ErrInvalidParams)
	}

	return nil
}

// direction returns the effective direction, forward by default.
func (p Params) direction() Direction {
	if p.Direction == "" {
		return DirectionForward
	}

	return Direction(strings.ToLower(string(p.Direction)))
}

func (p Params) isBackward() bool {
	return p.direction() == DirectionBackward
}
