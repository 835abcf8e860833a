package rowpager

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"slices"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cast"
	"gorm.io/gorm"
)

// WriteJSON writes chunks as a single JSON array, one chunk at a time. It
// returns the number of rows written.
func WriteJSON(w io.Writer, chunks iter.Seq2[[]Row, error]) (int64, error) {
	var (
		written int64
		buf     bytes.Buffer
	)

	if _, err := io.WriteString(w, "["); err != nil {
		return 0, err
	}

	for chunk, err := range chunks {
		if err != nil {
			return written, err
		}

		buf.Reset()
		for _, row := range chunk {
			if written > 0 {
				buf.WriteByte(',')
			}

			jRow, marshalErr := json.Marshal(row)
			if marshalErr != nil {
				return written, fmt.Errorf("cannot marshal row: %w", marshalErr)
			}
			buf.Write(jRow)
			written++
		}

		if _, err = w.Write(buf.Bytes()); err != nil {
			return written, err
		}
	}

	if _, err := io.WriteString(w, "]"); err != nil {
		return written, err
	}

	return written, nil
}

// WriteCSV writes chunks as CSV. The header is columns, or the sorted field
// names of the first row when columns is empty. Nothing is written for an
// empty result without explicit columns.
func WriteCSV(w io.Writer, chunks iter.Seq2[[]Row, error], columns ...string) (int64, error) {
	var written int64

	cw := csv.NewWriter(w)
	header := slices.Clone(columns)
	headerWritten := false

	writeHeader := func() error {
		headerWritten = true
		return cw.Write(header)
	}

	for chunk, err := range chunks {
		if err != nil {
			return written, err
		}

		if len(chunk) == 0 {
			continue
		}

		if !headerWritten {
			if len(header) == 0 {
				header = lo.Keys(chunk[0])
				slices.Sort(header)
			}
			if err = writeHeader(); err != nil {
				return written, err
			}
		}

		for _, row := range chunk {
			record := lo.Map(header, func(column string, _ int) string {
				return formatCell(row[column])
			})
			if err = cw.Write(record); err != nil {
				return written, err
			}
			written++
		}

		cw.Flush()
		if err = cw.Error(); err != nil {
			return written, err
		}
	}

	if !headerWritten && len(header) > 0 {
		if err := writeHeader(); err != nil {
			return written, err
		}
	}

	cw.Flush()

	return written, cw.Error()
}

// StreamJSON streams q into w as a JSON array.
func (s *StreamingPaginator) StreamJSON(ctx context.Context, db *gorm.DB, q Query, w io.Writer) (int64, error) {
	return WriteJSON(w, s.Stream(ctx, db, q, nil))
}

// StreamCSV streams q into w as CSV. See WriteCSV for header rules.
func (s *StreamingPaginator) StreamCSV(ctx context.Context, db *gorm.DB, q Query, w io.Writer, columns ...string) (int64, error) {
	return WriteCSV(w, s.Stream(ctx, db, q, nil), columns...)
}

func formatCell(v any) string {
	switch vt := v.(type) {
	case nil:
		return ""
	case time.Time:
		return vt.UTC().Format(time.RFC3339Nano)
	case []byte:
		return string(vt)
	}

	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Sprint(v)
	}

	return s
}
