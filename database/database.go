package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"
)

// Open opens the SQLite control DB at path and brings its schema up to date.
// It holds the admin users, their refresh tokens and, with the default
// store, the applications themselves.
func Open(path string) (db *sql.DB, err error) {
	db, err = sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		db.Close()
		return
	}

	// db tuning options
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(2 * time.Hour)

	err = migrateDB(db, "sqlite3")
	if err != nil {
		db.Close()
		return
	}

	return
}

func OpenPostgres(dsn string) (db *sql.DB, err error) {
	db, err = sql.Open("postgres", dsn)
	if err != nil {
		return
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return
	}

	err = migrateDB(db, "postgres")
	if err != nil {
		db.Close()
		return
	}

	return
}

// EnsureAdmin creates the admin user or resets its password.
func EnsureAdmin(ctx context.Context, db *sql.DB, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO user (username, password_hash) VALUES (?, ?)
		ON CONFLICT (username) DO UPDATE SET password_hash = excluded.password_hash`,
		username,
		hash,
	)
	return err
}

// PurgeTokens drops refresh tokens that can no longer be redeemed.
// Token expirations are unix seconds.
func PurgeTokens(ctx context.Context, db *sql.DB, now time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM token WHERE expiration < ?`, now.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
