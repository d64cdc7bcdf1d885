package testutil

import (
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	dbpkg "github.com/yungbote/tutorloop-backend/internal/data/db"
	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
)

var (
	pgOnce sync.Once
	pgDB   *gorm.DB
	pgErr  error

	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
		NowFunc:                                  func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// IsPostgres reports whether TEST_POSTGRES_DSN points tests at a real server.
func IsPostgres() bool { return os.Getenv("TEST_POSTGRES_DSN") != "" }

// DB returns a migrated database. With TEST_POSTGRES_DSN set it is a shared
// Postgres connection; otherwise every test gets its own in-memory sqlite.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	if IsPostgres() {
		return postgresDB(tb)
	}
	return sqliteDB(tb)
}

// PostgresDB skips the test unless a Postgres server is configured.
func PostgresDB(tb testing.TB) *gorm.DB {
	tb.Helper()
	if !IsPostgres() {
		tb.Skip("set TEST_POSTGRES_DSN to run postgres-only tests")
	}
	return postgresDB(tb)
}

func postgresDB(tb testing.TB) *gorm.DB {
	tb.Helper()
	pgOnce.Do(func() {
		var err error
		pgDB, err = gorm.Open(postgres.Open(os.Getenv("TEST_POSTGRES_DSN")), gormConfig())
		if err != nil {
			pgErr = err
			return
		}
		pgErr = dbpkg.AutoMigrateAll(pgDB)
	})
	if pgErr != nil {
		tb.Fatalf("failed to init test db: %v", pgErr)
	}
	return pgDB
}

func sqliteDB(tb testing.TB) *gorm.DB {
	tb.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })
	if err := dbpkg.AutoMigrateAll(db); err != nil {
		tb.Fatalf("migrate sqlite: %v", err)
	}
	return db
}

func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}

func PtrUUID(id uuid.UUID) *uuid.UUID { return &id }

func PtrTime(t time.Time) *time.Time { return &t }

// Now is a microsecond-truncated UTC clock reading.
func Now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }
