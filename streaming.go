package rowpager

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RowTransform is applied to every streamed row before it is chunked.
type RowTransform func(Row) (Row, error)

var _orderByExpr = regexp.MustCompile(`(?i)\border\s+by\b`)

// errStreamStopped signals that the consumer stopped iterating.
var errStreamStopped = errors.New("stream stopped by consumer")

// StreamingPaginator iterates arbitrarily large result sets in fixed-size
// chunks without materializing them.
//
// Two modes are supported:
//   - server cursor: DECLARE/FETCH inside a transaction (postgres). The cursor
//     is closed and the transaction ended on every exit path, including a
//     consumer breaking out of the loop early.
//   - fallback: repeated LIMIT/OFFSET queries, capped at StreamConfig.MaxRows.
//     Each query rescans the skipped prefix, so late chunks get slower. The
//     query must end with a deterministic ORDER BY, otherwise ranges may
//     overlap or leave gaps.
//
// At most PrefetchSize+ChunkSize rows are buffered at any time.
type StreamingPaginator struct {
	base
	cfg           StreamConfig
	newCursorName func() string
}

func NewStreamingPaginator(cfg StreamConfig, opts ...Option) *StreamingPaginator {
	def := DefaultStreamConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.PrefetchSize <= 0 {
		cfg.PrefetchSize = def.PrefetchSize
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = def.MaxRows
	}

	return &StreamingPaginator{
		base: newBase(opts),
		cfg:  cfg,
		newCursorName: func() string {
			return "rowpager_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		},
	}
}

// Stream executes q and yields its rows in chunks of ChunkSize (the last
// chunk may be shorter). Chunks preserve the order of q. q must not contain
// LIMIT or OFFSET, and outside server cursor mode it needs an ORDER BY over a
// unique key.
//
// The sequence is not restartable: every range over it re-executes q from
// the start. Chunks delivered before an error are not retracted.
//
// Usage:
//
//	for chunk, err := range streamer.Stream(ctx, db, q, nil) {
//	    if err != nil {
//	        return err
//	    }
//	    ...
//	}
func (s *StreamingPaginator) Stream(ctx context.Context, db *gorm.DB, q Query, transform RowTransform) iter.Seq2[[]Row, error] {
	return func(yield func([]Row, error) bool) {
		if s.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
			defer cancel()
		}

		c := &chunker{
			size:      s.cfg.ChunkSize,
			transform: transform,
			yield:     yield,
		}

		var err error
		if s.useServerCursor(db) {
			err = s.streamServerCursor(ctx, db, q, c)
		} else {
			err = s.streamRanges(ctx, db, q, c)
		}

		if err == nil {
			err = c.flush()
		}

		if err != nil && !errors.Is(err, errStreamStopped) {
			yield(nil, err)
		}
	}
}

// useServerCursor reports whether db supports DECLARE/FETCH.
func (s *StreamingPaginator) useServerCursor(db *gorm.DB) bool {
	return s.cfg.ServerCursor && db.Dialector != nil && db.Dialector.Name() == "postgres"
}

func (s *StreamingPaginator) streamServerCursor(ctx context.Context, db *gorm.DB, q Query, c *chunker) error {
	name := s.newCursorName()
	logger := s.logger.With().Str("cursor", name).Logger()

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		declare := fmt.Sprintf("DECLARE %s NO SCROLL CURSOR FOR %s", name, q.SQL)
		if err := tx.Exec(declare, q.Args...).Error; err != nil {
			return fmt.Errorf("cannot declare server cursor: %w", err)
		}
		logger.Debug().Msg("server cursor declared")

		defer func() {
			if err := tx.Exec("CLOSE " + name).Error; err != nil {
				logger.Debug().Err(err).Msg("cannot close server cursor, released by transaction end")
				return
			}
			logger.Debug().Msg("server cursor closed")
		}()

		fetch := fmt.Sprintf("FETCH FORWARD %d FROM %s", s.cfg.PrefetchSize, name)
		for {
			if err := ctx.Err(); err != nil {
				return err
			}

			batch, err := fetchRows(tx.Raw(fetch))
			if err != nil {
				return fmt.Errorf("cannot fetch from server cursor: %w", err)
			}

			if err = c.push(batch); err != nil {
				return err
			}

			if len(batch) < s.cfg.PrefetchSize {
				return nil
			}
		}
	})
}

func (s *StreamingPaginator) streamRanges(ctx context.Context, db *gorm.DB, q Query, c *chunker) error {
	if !_orderByExpr.MatchString(q.SQL) {
		s.logger.Warn().Msg("streaming an unordered query in ranges, rows may be skipped or repeated")
	}

	offset := 0
	for offset < s.cfg.MaxRows {
		if err := ctx.Err(); err != nil {
			return err
		}

		size := min(s.cfg.PrefetchSize, s.cfg.MaxRows-offset)
		limit := size
		// The range that reaches the ceiling reads one row past it.
		if offset+size == s.cfg.MaxRows {
			limit++
		}
		ranged := fmt.Sprintf("%s LIMIT %d OFFSET %d", q.SQL, limit, offset)

		resultSet, err := fetchRows(db.WithContext(ctx).Raw(ranged, q.Args...))
		if err != nil {
			return fmt.Errorf("cannot fetch stream range at offset %d: %w", offset, err)
		}

		batch, truncated := lookahead(resultSet, size)
		if err = c.push(batch); err != nil {
			return err
		}

		if truncated {
			s.logger.Warn().Int("max_rows", s.cfg.MaxRows).Msg("stream stopped at row ceiling")
			return nil
		}

		offset += len(batch)
		if len(batch) < size {
			return nil
		}
	}

	return nil
}

// chunker re-batches fetched rows into chunks of a fixed size.
type chunker struct {
	size      int
	transform RowTransform
	yield     func([]Row, error) bool
	buf       []Row
}

func (c *chunker) push(rows []Row) error {
	for _, row := range rows {
		if c.transform != nil {
			var err error
			if row, err = c.transform(row); err != nil {
				return fmt.Errorf("cannot transform row: %w", err)
			}
		}

		if c.buf == nil {
			c.buf = make([]Row, 0, c.size)
		}
		c.buf = append(c.buf, row)

		if len(c.buf) == c.size {
			if err := c.emit(); err != nil {
				return err
			}
		}
	}

	return nil
}

func (c *chunker) flush() error {
	if len(c.buf) == 0 {
		return nil
	}

	return c.emit()
}

// emit hands the buffer over to the consumer. The consumer owns the slice.
func (c *chunker) emit() error {
	chunk := c.buf
	c.buf = nil

	if !c.yield(chunk, nil) {
		return errStreamStopped
	}

	return nil
}
