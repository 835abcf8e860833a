package rowpager

import "errors"

var (
	// ErrInvalidCursor is returned when a cursor or keyset token cannot be
	// decoded or does not match the paginator ordering. Paginators never
	// return it from Paginate: they fall back to the first page instead.
	ErrInvalidCursor = errors.New("invalid cursor")

	// ErrInvalidParams is returned when pagination parameters fail validation.
	ErrInvalidParams = errors.New("invalid pagination params")

	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("invalid pagination config")
)
