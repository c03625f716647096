package infra

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrDatabaseLocked is returned when another process already owns the SQLite file.
var ErrDatabaseLocked = errors.New("sqlite database is in use by another process")

// SQLiteDB is a migrated SQLite handle plus the process lock guarding its file.
type SQLiteDB struct {
	DB   *sql.DB
	Path string
	lock *flock.Flock
}

// OpenSQLite opens (creating if needed) the database at path, applies the
// embedded migrations, and takes an exclusive lock file next to it. The
// special path ":memory:" yields a private in-memory database.
func OpenSQLite(ctx context.Context, path string, logger zerolog.Logger) (*SQLiteDB, error) {
	memory := path == ":memory:"

	var lock *flock.Flock
	if !memory {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		lock = flock.New(path + ".lock")
		ok, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("lock sqlite db: %w", err)
		}
		if !ok {
			return nil, ErrDatabaseLocked
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		unlock(lock)
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Each in-memory connection is its own database.
	if memory {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	if !memory {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			unlock(lock)
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := applyMigrations(ctx, db, DriverSQLite, "?", logger); err != nil {
		_ = db.Close()
		unlock(lock)
		return nil, err
	}

	return &SQLiteDB{DB: db, Path: path, lock: lock}, nil
}

// Close closes the database and releases the file lock.
func (s *SQLiteDB) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	err := s.DB.Close()
	unlock(s.lock)
	return err
}

func unlock(lock *flock.Flock) {
	if lock != nil {
		_ = lock.Unlock()
	}
}

// IsSQLiteUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func IsSQLiteUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsSQLiteBusy reports whether err is a transient lock contention error.
func IsSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqlite3.SQLITE_BUSY {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
