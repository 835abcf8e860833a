package rowpager

import (
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	_ "modernc.org/sqlite"
)

func newGORMMySQLMock() (string, *gorm.DB, sqlmock.Sqlmock, error) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		return "", nil, nil, err
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      mockDB,
		SkipInitializeWithVersion: true,
	})

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return "", nil, nil, err
	}

	return "mysql", db.Debug(), mock, nil
}

func newGORMPostgresMock() (string, *gorm.DB, sqlmock.Sqlmock, error) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		return "", nil, nil, err
	}

	dialector := postgres.New(postgres.Config{
		Conn: mockDB,
	})

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return "", nil, nil, err
	}

	return "postgres", db.Debug(), mock, nil
}

// newSQLiteDB opens a private in-memory database with a memories table.
func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(
		sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: "file::memory:?_time_format=sqlite"}),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Exec(`CREATE TABLE memories (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		score INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	)`).Error)

	return db
}

type memoryFixture struct {
	ID        string
	UserID    string
	Title     string
	Score     int
	CreatedAt time.Time
}

var _fixtureEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// seedMemories inserts n memories m-01..m-n created one second apart.
func seedMemories(t *testing.T, db *gorm.DB, n int) []memoryFixture {
	t.Helper()

	fixtures := make([]memoryFixture, 0, n)
	for i := 1; i <= n; i++ {
		fixtures = append(fixtures, memoryFixture{
			ID:        fmt.Sprintf("m-%02d", i),
			UserID:    "u-1",
			Title:     fmt.Sprintf("memory %d", i),
			Score:     i % 3,
			CreatedAt: _fixtureEpoch.Add(time.Duration(i) * time.Second),
		})
	}
	insertMemories(t, db, fixtures...)

	return fixtures
}

func insertMemories(t *testing.T, db *gorm.DB, fixtures ...memoryFixture) {
	t.Helper()

	for _, f := range fixtures {
		require.NoError(t, db.Exec(
			"INSERT INTO memories (id, user_id, title, score, created_at) VALUES (?, ?, ?, ?, ?)",
			f.ID, f.UserID, f.Title, f.Score, f.CreatedAt,
		).Error)
	}
}

func rowIDs(rows []Row) []string {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, fmt.Sprint(row["id"]))
	}

	return ids
}

func fixtureIDs(fixtures []memoryFixture) []string {
	ids := make([]string, 0, len(fixtures))
	for _, f := range fixtures {
		ids = append(ids, f.ID)
	}

	return ids
}

var _memoriesQuery = NewQuery("SELECT id, user_id, title, score, created_at FROM memories WHERE user_id = ?", "u-1")
