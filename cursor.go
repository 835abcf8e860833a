package rowpager

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

var _encoder = base64.RawURLEncoding

// Cursor is an opaque position marker: the row id, its ordering timestamp
// and, when the page is sorted by a custom column, that column's value.
//
// IMPORTANT:
// (Timestamp or SortValue, ItemID) must be unique across the table. ItemID
// breaks ties between rows sharing the same ordering value.
type Cursor struct {
	ItemID    string
	Timestamp time.Time
	SortValue any
	// NullSortValue marks a boundary row whose custom sort column is NULL.
	// SortValue is nil then.
	NullSortValue bool
}

type cursorWire struct {
	ID string `json:"id"`
	TS string `json:"ts"`
	SV any    `json:"sv,omitempty"`
	SN bool   `json:"sn,omitempty"`
}

// NewCursorFromRow builds a cursor from a page boundary row. sortColumn may be
// empty or equal to tsColumn, in which case SortValue stays nil.
func NewCursorFromRow(row Row, idColumn, tsColumn, sortColumn string) (*Cursor, error) {
	id, err := rowString(row, idColumn)
	if err != nil {
		return nil, fmt.Errorf("cannot build cursor: %w", err)
	}

	ret := &Cursor{ItemID: id}

	// A custom sort column makes the timestamp informational only.
	custom := sortColumn != "" && sortColumn != tsColumn
	if ts, tsErr := rowTime(row, tsColumn); tsErr == nil {
		ret.Timestamp = ts
	} else if !custom {
		return nil, fmt.Errorf("cannot build cursor: %w", tsErr)
	}

	if custom {
		value, ok := row[sortColumn]
		if !ok {
			return nil, fmt.Errorf("cannot build cursor: column '%s' is missing in row", sortColumn)
		}
		if t, isTime := value.(time.Time); isTime {
			value = t.UTC()
		}
		ret.SortValue = value
		ret.NullSortValue = value == nil
	}

	return ret, nil
}

// orderValue is the value compared against the primary ordering column.
func (c *Cursor) orderValue(sortColumn, tsColumn string) any {
	if sortColumn != "" && sortColumn != tsColumn {
		return c.SortValue
	}

	return c.Timestamp
}

// String - implements fmt.Stringer. Returns the unsigned wire form.
func (c *Cursor) String() string {
	if c == nil {
		return ""
	}

	return EncodeCursor(*c)
}

// EncodeCursor encodes c as base64url JSON {"id","ts","sv"}. A NULL sort
// value is written as "sn":true.
func EncodeCursor(c Cursor) string {
	jTok, err := json.Marshal(cursorWire{
		ID: c.ItemID,
		TS: c.Timestamp.UTC().Format(time.RFC3339Nano),
		SV: c.SortValue,
		SN: c.NullSortValue,
	})
	if err != nil {
		panic(fmt.Errorf("cannot marshal cursor value: %w", err))
	}

	var buf bytes.Buffer
	if err = json.Compact(&buf, jTok); err != nil {
		panic(fmt.Errorf("cannot compact cursor value: %w", err))
	}

	return _encoder.EncodeToString(buf.Bytes())
}

// DecodeCursor parses a token produced by EncodeCursor. Any failure wraps
// ErrInvalidCursor.
func DecodeCursor(b64String string) (*Cursor, error) {
	if len(b64String) == 0 {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidCursor)
	}

	jsonData, err := _encoder.DecodeString(strings.TrimRight(b64String, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode base64 encoded cursor: %v", ErrInvalidCursor, err)
	}

	var wire cursorWire
	if err = unmarshalJSON(jsonData, &wire); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal json encoded cursor: %v", ErrInvalidCursor, err)
	}

	if wire.ID == "" {
		return nil, fmt.Errorf("%w: missing item id", ErrInvalidCursor)
	}

	ts, err := time.Parse(time.RFC3339Nano, wire.TS)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid timestamp: %v", ErrInvalidCursor, err)
	}

	return &Cursor{
		ItemID:        wire.ID,
		Timestamp:     ts.UTC(),
		SortValue:     restoreWireValue(wire.SV),
		NullSortValue: wire.SN && wire.SV == nil,
	}, nil
}

// CursorCodec encodes and decodes cursors. With a signing key every token
// carries an HMAC-SHA256 suffix and tampered tokens fail to decode.
type CursorCodec struct {
	key []byte
}

func NewCursorCodec(signingKey string) CursorCodec {
	if signingKey == "" {
		return CursorCodec{}
	}

	return CursorCodec{key: []byte(signingKey)}
}

func (c CursorCodec) Encode(cursor Cursor) string {
	payload := EncodeCursor(cursor)
	if len(c.key) == 0 {
		return payload
	}

	return payload + "." + _encoder.EncodeToString(c.sign(payload))
}

func (c CursorCodec) Decode(token string) (*Cursor, error) {
	if len(c.key) == 0 {
		return DecodeCursor(token)
	}

	payload, signature, ok := strings.Cut(token, ".")
	if !ok {
		return nil, fmt.Errorf("%w: missing signature", ErrInvalidCursor)
	}

	mac, err := _encoder.DecodeString(signature)
	if err != nil || !hmac.Equal(mac, c.sign(payload)) {
		return nil, fmt.Errorf("%w: signature mismatch", ErrInvalidCursor)
	}

	return DecodeCursor(payload)
}

func (c CursorCodec) sign(payload string) []byte {
	h := hmac.New(sha256.New, c.key)
	h.Write([]byte(payload))
	return h.Sum(nil)
}

// unmarshalJSON decodes numbers as json.Number so that integer values keep
// their precision. See restoreWireValue.
func unmarshalJSON(data []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(dst)
}

// restoreWireValue restores values that lost their type on a JSON round
// trip: RFC 3339 strings become time.Time and json.Number becomes int64 or
// float64. Other values are returned unchanged.
func restoreWireValue(v any) any {
	switch vt := v.(type) {
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, vt); err == nil {
			return ts
		}
		return vt
	case json.Number:
		if i, err := vt.Int64(); err == nil {
			return i
		}
		if f, err := vt.Float64(); err == nil {
			return f
		}
		return vt.String()
	default:
		return v
	}
}

var _ fmt.Stringer = (*Cursor)(nil)
