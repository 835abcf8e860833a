package rowpager

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Cursor_RoundTrip(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 123456789, time.FixedZone("X", 3*3600))

	tests := []struct {
		name     string
		cursor   Cursor
		wantSV   any
		wantNull bool
	}{
		{"timestamp only", Cursor{ItemID: "m-1", Timestamp: ts}, nil, false},
		{"integer sort value keeps its type", Cursor{ItemID: "m-2", Timestamp: ts, SortValue: 42}, int64(42), false},
		{"float sort value", Cursor{ItemID: "m-3", Timestamp: ts, SortValue: 0.25}, 0.25, false},
		{"string sort value", Cursor{ItemID: "m-4", Timestamp: ts, SortValue: "beta"}, "beta", false},
		{"null sort value", Cursor{ItemID: "m-5", Timestamp: ts, NullSortValue: true}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := EncodeCursor(tt.cursor)
			assert.NotContains(t, token, "=")

			got, err := DecodeCursor(token)
			require.NoError(t, err)
			assert.Equal(t, tt.cursor.ItemID, got.ItemID)
			assert.True(t, got.Timestamp.Equal(ts))
			assert.Equal(t, time.UTC, got.Timestamp.Location())
			assert.Equal(t, tt.wantSV, got.SortValue)
			assert.Equal(t, tt.wantNull, got.NullSortValue)
		})
	}
}

func Test_DecodeCursor_Malformed(t *testing.T) {
	b64 := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"not base64", "%%%"},
		{"not json", b64("hello")},
		{"missing id", b64(`{"ts":"2024-01-01T00:00:00Z"}`)},
		{"bad timestamp", b64(`{"id":"m-1","ts":"yesterday"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCursor(tt.token)
			require.ErrorIs(t, err, ErrInvalidCursor)
		})
	}
}

func Test_DecodeCursor_ToleratesPadding(t *testing.T) {
	raw := `{"id":"m-1","ts":"2024-01-01T00:00:00Z"}`
	padded := base64.URLEncoding.EncodeToString([]byte(raw))

	got, err := DecodeCursor(padded)
	require.NoError(t, err)
	assert.Equal(t, "m-1", got.ItemID)
}

func Test_CursorCodec_Signed(t *testing.T) {
	codec := NewCursorCodec("secret")
	cursor := Cursor{ItemID: "m-7", Timestamp: _fixtureEpoch}

	token := codec.Encode(cursor)
	payload, _, ok := strings.Cut(token, ".")
	require.True(t, ok)

	got, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "m-7", got.ItemID)

	t.Run("unsigned token rejected", func(t *testing.T) {
		_, err := codec.Decode(payload)
		require.ErrorIs(t, err, ErrInvalidCursor)
	})

	t.Run("tampered payload rejected", func(t *testing.T) {
		forged := EncodeCursor(Cursor{ItemID: "m-8", Timestamp: _fixtureEpoch})
		_, sig, _ := strings.Cut(token, ".")
		_, err := codec.Decode(forged + "." + sig)
		require.ErrorIs(t, err, ErrInvalidCursor)
	})

	t.Run("other key rejected", func(t *testing.T) {
		_, err := NewCursorCodec("other").Decode(token)
		require.ErrorIs(t, err, ErrInvalidCursor)
	})

	t.Run("unsigned codec accepts plain tokens", func(t *testing.T) {
		got, err := NewCursorCodec("").Decode(payload)
		require.NoError(t, err)
		assert.Equal(t, "m-7", got.ItemID)
	})
}

func Test_NewCursorFromRow(t *testing.T) {
	row := Row{"id": int64(17), "created_at": _fixtureEpoch, "score": int64(3)}

	t.Run("timestamp ordering", func(t *testing.T) {
		c, err := NewCursorFromRow(row, "id", "created_at", "created_at")
		require.NoError(t, err)
		assert.Equal(t, "17", c.ItemID)
		assert.True(t, c.Timestamp.Equal(_fixtureEpoch))
		assert.Nil(t, c.SortValue)
	})

	t.Run("custom sort column", func(t *testing.T) {
		c, err := NewCursorFromRow(row, "id", "created_at", "score")
		require.NoError(t, err)
		assert.Equal(t, int64(3), c.SortValue)
		assert.Equal(t, int64(3), c.orderValue("score", "created_at"))
	})

	t.Run("string timestamp is parsed", func(t *testing.T) {
		c, err := NewCursorFromRow(Row{"id": "a", "created_at": "2024-03-01T12:00:00Z"}, "id", "created_at", "")
		require.NoError(t, err)
		assert.True(t, c.Timestamp.Equal(_fixtureEpoch))
	})

	t.Run("null sort value", func(t *testing.T) {
		c, err := NewCursorFromRow(Row{"id": "a", "created_at": _fixtureEpoch, "score": nil}, "id", "created_at", "score")
		require.NoError(t, err)
		assert.Nil(t, c.SortValue)
		assert.True(t, c.NullSortValue)
	})

	t.Run("missing sort column", func(t *testing.T) {
		_, err := NewCursorFromRow(row, "id", "created_at", "rank")
		require.Error(t, err)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := NewCursorFromRow(Row{"created_at": _fixtureEpoch}, "id", "created_at", "")
		require.Error(t, err)
	})

	t.Run("missing timestamp", func(t *testing.T) {
		_, err := NewCursorFromRow(Row{"id": "a"}, "id", "created_at", "")
		require.Error(t, err)
	})
}
