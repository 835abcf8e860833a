package rowpager

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

// KeysetCursor is a seek position expressed as the values of the declared key
// columns of the last (or first) row of a page. An empty cursor means the
// beginning of the dataset.
//
// IMPORTANT:
// Values are matched to the paginator key columns by name. Priority always
// comes from the declared key columns, never from the order of the pairs
// stored here. The cursor is serialized as an array so the stored order
// survives the round trip.
//
//	[(C1, V1), (C2, V2)... (Cn, Vn)]
type KeysetCursor struct {
	elements []KeysetColumn
}

// keysetTokenPrefix tells keyset tokens apart from Cursor tokens, which are
// always base64 encoded JSON objects.
const keysetTokenPrefix = "k."

// KeysetColumn is a single (column, value) pair of a KeysetCursor.
type KeysetColumn struct {
	Column string `json:"c"`
	Value  any    `json:"v"`
}

func NewKeysetCursor(elements ...KeysetColumn) *KeysetCursor {
	return &KeysetCursor{
		elements: elements,
	}
}

// NewKeysetCursorFromRow extracts the values of columns from row, in the
// given order. Key columns must not be NULL.
func NewKeysetCursorFromRow(row Row, columns []string) (*KeysetCursor, error) {
	elements := make([]KeysetColumn, 0, len(columns))
	for _, column := range columns {
		value, ok := row[column]
		if !ok {
			return nil, fmt.Errorf("cannot build keyset: column '%s' is missing in row", column)
		}
		if value == nil {
			return nil, fmt.Errorf("cannot build keyset: column '%s' is NULL", column)
		}
		if t, isTime := value.(time.Time); isTime {
			value = t.UTC()
		}

		elements = append(elements, KeysetColumn{Column: column, Value: value})
	}

	return &KeysetCursor{elements: elements}, nil
}

// DecodeKeysetCursor parses a token produced by KeysetCursor.String. Failures
// wrap ErrInvalidCursor.
func DecodeKeysetCursor(token string) (*KeysetCursor, error) {
	if len(token) == 0 {
		return nil, nil
	}

	b64String, ok := strings.CutPrefix(token, keysetTokenPrefix)
	if !ok {
		return nil, fmt.Errorf("%w: not a keyset token", ErrInvalidCursor)
	}

	jsonData, err := _encoder.DecodeString(strings.TrimRight(b64String, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode base64 encoded keyset: %v", ErrInvalidCursor, err)
	}

	var elems []KeysetColumn
	if err = unmarshalJSON(jsonData, &elems); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal json encoded keyset: %v", ErrInvalidCursor, err)
	}

	for i := range elems {
		elems[i].Value = restoreWireValue(elems[i].Value)
	}

	return &KeysetCursor{
		elements: elems,
	}, nil
}

// String - implements fmt.Stringer. Returns the wire token, "k." followed by
// the base64 encoded pairs.
func (c *KeysetCursor) String() string {
	if c == nil || len(c.elements) == 0 {
		return ""
	}

	jTok, err := json.Marshal(c.elements)
	if err != nil {
		panic(fmt.Errorf("cannot marshal keyset value: %w", err))
	}

	var buf bytes.Buffer
	if err = json.Compact(&buf, jTok); err != nil {
		panic(fmt.Errorf("cannot compact keyset value: %w", err))
	}

	return keysetTokenPrefix + _encoder.EncodeToString(buf.Bytes())
}

// isKeysetToken reports whether token was produced by KeysetCursor.String.
func isKeysetToken(token string) bool {
	return strings.HasPrefix(token, keysetTokenPrefix)
}

func (c *KeysetCursor) IsEmpty() bool {
	return c == nil || len(c.elements) == 0
}

// Columns returns the cursor pairs in their stored order.
func (c *KeysetCursor) Columns() []KeysetColumn {
	if c == nil {
		return nil
	}

	return c.elements
}

// Get returns the value stored for column.
func (c *KeysetCursor) Get(column string) (any, bool) {
	if c == nil {
		return nil, false
	}

	elem, ok := lo.Find(c.elements, func(e KeysetColumn) bool {
		return e.Column == column
	})

	return elem.Value, ok
}

// valuesFor returns the cursor values ordered by keyColumns.
//
// IMPORTANT:
// Values are looked up by name and returned in the DECLARED order, never in
// the incidental order of the cursor.
func (c *KeysetCursor) valuesFor(keyColumns []string) []any {
	return lo.Map(keyColumns, func(column string, _ int) any {
		v, _ := c.Get(column)
		return v
	})
}

// validate checks the cursor against the declared key columns: every key
// column present with a value and nothing else. The stored order of the
// cursor pairs does not matter.
func (c *KeysetCursor) validate(keyColumns []string) error {
	if c.IsEmpty() {
		return nil
	}

	if len(c.elements) != len(keyColumns) {
		return fmt.Errorf("%w: keyset column number mismatch", ErrInvalidCursor)
	}

	for _, column := range keyColumns {
		v, ok := c.Get(column)
		if !ok {
			return fmt.Errorf("%w: keyset has no column '%s'", ErrInvalidCursor, column)
		}
		if v == nil {
			return fmt.Errorf("%w: keyset column '%s' has no value", ErrInvalidCursor, column)
		}
	}

	return nil
}
