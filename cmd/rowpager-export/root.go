package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	// Pure Go sqlite driver registered as "sqlite".
	_ "modernc.org/sqlite"

	"github.com/Alp4ka/rowpager"
)

const (
	formatJSON = "json"
	formatCSV  = "csv"
)

type exportOptions struct {
	configPath string
	driver     string
	dsn        string
	query      string
	format     string
	columns    []string
	output     string
	chunkSize  int
	total      int64
	logLevel   string
}

func newRootCmd() *cobra.Command {
	var opts exportOptions

	cmd := &cobra.Command{
		Use:   "rowpager-export",
		Short: "Stream the result of a SQL query as JSON or CSV",
		Long: `Streams every row of a SQL query in bounded chunks.

On PostgreSQL rows are read through a server-side cursor, other databases
are read with ranged LIMIT/OFFSET queries. Ranged reads need a deterministic
order, so end the query with an ORDER BY over a unique key. Memory use does
not depend on the size of the result set.`,
		Example: `  # Export a table from sqlite as JSON
  rowpager-export --driver sqlite --dsn ./memories.db --query "SELECT * FROM memories ORDER BY id"

  # Export from postgres as CSV with a fixed column set
  rowpager-export --driver postgres --dsn "$DATABASE_URL" \
    --query "SELECT id, created_at, content FROM memories ORDER BY id" \
    --format csv --columns id,created_at,content --output memories.csv`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runExport(ctx, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "path to a rowpager configuration file")
	cmd.Flags().StringVar(&opts.driver, "driver", "sqlite", "database driver: postgres, mysql or sqlite")
	cmd.Flags().StringVar(&opts.dsn, "dsn", "", "database connection string")
	cmd.Flags().StringVar(&opts.query, "query", "", "query to export, ordered by a unique key (ORDER BY id) and without LIMIT")
	cmd.Flags().StringVar(&opts.format, "format", formatJSON, "output format: json or csv")
	cmd.Flags().StringSliceVar(&opts.columns, "columns", nil, "csv columns, in output order")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().IntVar(&opts.chunkSize, "chunk-size", 0, "rows per chunk (default from config)")
	cmd.Flags().Int64Var(&opts.total, "total", 0, "expected row count, enables ETA in progress logs")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "log level")

	_ = cmd.MarkFlagRequired("dsn")
	_ = cmd.MarkFlagRequired("query")

	return cmd
}

func runExport(ctx context.Context, opts exportOptions, stdout, stderr io.Writer) error {
	log, err := newLogger(opts.logLevel, stderr)
	if err != nil {
		return err
	}

	format := strings.ToLower(opts.format)
	if format != formatJSON && format != formatCSV {
		return fmt.Errorf("unsupported format '%s'", opts.format)
	}

	cfg, err := rowpager.LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("cannot load config: %w", err)
	}
	if opts.chunkSize > 0 {
		cfg.Stream.ChunkSize = opts.chunkSize
	}

	db, err := openDB(opts.driver, opts.dsn)
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
	}()

	out := stdout
	if opts.output != "" {
		f, createErr := os.Create(opts.output)
		if createErr != nil {
			return fmt.Errorf("cannot create output file: %w", createErr)
		}
		defer f.Close()
		out = f
	}

	paginator := rowpager.NewStreamingPaginator(cfg.Stream, rowpager.WithLogger(log))
	tracker := rowpager.NewProgressTracker(opts.total, func(s rowpager.ProgressSnapshot) {
		log.Info().
			Int64("rows", s.Rows).
			Int64("chunks", s.Chunks).
			Dur("elapsed", s.Elapsed).
			Msg(s.String())
	})

	chunks := tracker.Track(paginator.Stream(ctx, db, rowpager.NewQuery(opts.query), nil))

	var written int64
	if format == formatCSV {
		written, err = rowpager.WriteCSV(out, chunks, opts.columns...)
	} else {
		written, err = rowpager.WriteJSON(out, chunks)
	}
	if err != nil {
		return fmt.Errorf("export failed after %d rows: %w", written, err)
	}

	log.Info().Int64("rows", written).Msg("export finished")

	return nil
}

func openDB(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch strings.ToLower(driver) {
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite":
		dialector = sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn})
	default:
		return nil, fmt.Errorf("unsupported driver '%s'", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("cannot connect to %s: %w", driver, err)
	}

	return db, nil
}

func newLogger(level string, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), errors.New("invalid log level: " + level)
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().
		Timestamp().
		Logger(), nil
}
