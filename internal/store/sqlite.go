package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ashureev/mention-launcher/internal/domain"
)

// SQLiteJournal implements Journal using SQLite.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the journal database at dbPath.
func NewSQLite(dbPath string) (*SQLiteJournal, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single writer keeps SQLite contention inside database/sql.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	j := &SQLiteJournal{db: db}
	if err := j.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return j, nil
}

func (j *SQLiteJournal) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS launches (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		mention_id TEXT,
		author TEXT,
		name TEXT NOT NULL,
		ticker TEXT NOT NULL,
		success INTEGER NOT NULL,
		mint TEXT,
		signature TEXT,
		error TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_launches_created ON launches(created_at);
	`
	if _, err := j.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Append stores rec.
func (j *SQLiteJournal) Append(ctx context.Context, rec *domain.LaunchRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `
	INSERT INTO launches (id, source, mention_id, author, name, ticker, success, mint, signature, error, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	return withRetry(ctx, "append launch record", func() error {
		_, err := j.db.ExecContext(ctx, query,
			rec.ID, string(rec.Source), nullString(rec.MentionID), nullString(rec.Author),
			rec.Name, rec.Ticker, rec.Success,
			nullString(rec.Mint), nullString(rec.Signature), nullString(rec.Error),
			rec.CreatedAt.UnixMilli(),
		)
		return err
	})
}

// Recent returns the newest records first.
func (j *SQLiteJournal) Recent(ctx context.Context, limit int) ([]domain.LaunchRecord, error) {
	query := `
		SELECT id, source, mention_id, author, name, ticker, success,
		       mint, signature, error, created_at
		FROM launches ORDER BY created_at DESC, rowid DESC LIMIT ?`

	rows, err := j.db.QueryContext(ctx, query, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query launches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []domain.LaunchRecord{}
	for rows.Next() {
		var rec domain.LaunchRecord
		var source string
		var mentionID, author, mint, signature, errMsg sql.NullString
		var createdAt int64

		if err := rows.Scan(
			&rec.ID, &source, &mentionID, &author, &rec.Name, &rec.Ticker, &rec.Success,
			&mint, &signature, &errMsg, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan launch row: %w", err)
		}

		rec.Source = domain.LaunchSource(source)
		rec.MentionID = mentionID.String
		rec.Author = author.String
		rec.Mint = mint.String
		rec.Signature = signature.String
		rec.Error = errMsg.String
		rec.CreatedAt = time.UnixMilli(createdAt).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate launches: %w", err)
	}
	return records, nil
}

// Prune deletes records created before cutoff.
func (j *SQLiteJournal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := withRetry(ctx, "prune launch records", func() error {
		res, err := j.db.ExecContext(ctx, `DELETE FROM launches WHERE created_at < ?`, cutoff.UnixMilli())
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})
	return deleted, err
}

// Ping verifies database connectivity.
func (j *SQLiteJournal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

// Close closes the database connection.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
