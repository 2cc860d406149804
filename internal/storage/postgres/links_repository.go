// Package postgres implements the link and stats stores on database/sql.
//
// Schema:
//
//	CREATE TABLE links (
//	  code       VARCHAR(32) PRIMARY KEY,
//	  target_url TEXT NOT NULL,
//	  clicks     BIGINT NOT NULL DEFAULT 0,
//	  created_at TIMESTAMPTZ NOT NULL,
//	  expires_at TIMESTAMPTZ
//	);
//	CREATE INDEX idx_links_expires_at ON links(expires_at) WHERE expires_at IS NOT NULL;
//
//	CREATE TABLE clicks_daily (
//	  code  VARCHAR(32) NOT NULL,
//	  day   DATE NOT NULL,
//	  count BIGINT NOT NULL DEFAULT 0,
//	  PRIMARY KEY (code, day)
//	);
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/mfontes/shortlink/internal/shortener"
)

const pgUniqueViolation = "23505"

type LinksRepository struct {
	db *sql.DB
}

func NewLinksRepository(db *sql.DB) (*LinksRepository, error) {
	if db == nil {
		return nil, errors.New("postgres db is nil")
	}
	return &LinksRepository{db: db}, nil
}

// Insert relies on the primary key for the conditional write: of two
// concurrent inserts for the same code, exactly one gets unique_violation.
func (r *LinksRepository) Insert(ctx context.Context, record *shortener.LinkRecord) error {
	const query = `
		INSERT INTO links (code, target_url, clicks, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.Code,
		record.TargetURL,
		record.Clicks,
		record.CreatedAt.UTC(),
		nullableTime(record.ExpiresAt),
	)
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
		return shortener.ErrCodeTaken
	}
	return err
}

func (r *LinksRepository) FindByCode(ctx context.Context, code string) (*shortener.LinkRecord, error) {
	const query = `
		SELECT code, target_url, clicks, created_at, expires_at
		FROM links
		WHERE code = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, code))
}

func (r *LinksRepository) FindActiveByCode(ctx context.Context, code string, at time.Time) (*shortener.LinkRecord, error) {
	const query = `
		SELECT code, target_url, clicks, created_at, expires_at
		FROM links
		WHERE code = $1 AND (expires_at IS NULL OR expires_at >= $2)
	`

	record, err := r.scanOne(r.db.QueryRowContext(ctx, query, code, at.UTC()))
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, shortener.ErrNotFound) {
		return nil, err
	}

	// Distinguish expired from absent.
	existing, findErr := r.FindByCode(ctx, code)
	if findErr == nil && existing != nil {
		return nil, shortener.ErrExpired
	}
	if findErr != nil {
		return nil, findErr
	}
	return nil, shortener.ErrNotFound
}

// IncrementClicks is a single atomic UPDATE; the row-level counter never
// goes through a read-modify-write window.
func (r *LinksRepository) IncrementClicks(ctx context.Context, code string, delta int64) error {
	const query = `UPDATE links SET clicks = clicks + $2 WHERE code = $1`

	res, err := r.db.ExecContext(ctx, query, code, delta)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return shortener.ErrNotFound
	}
	return nil
}

func (r *LinksRepository) DeleteExpired(ctx context.Context, cutoff time.Time, limit int64) (int64, error) {
	if limit <= 0 {
		limit = 100
	}

	const query = `
		DELETE FROM links
		WHERE code IN (
			SELECT code FROM links
			WHERE expires_at IS NOT NULL AND expires_at <= $1
			LIMIT $2
		)
	`

	res, err := r.db.ExecContext(ctx, query, cutoff.UTC(), limit)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *LinksRepository) scanOne(row *sql.Row) (*shortener.LinkRecord, error) {
	var record shortener.LinkRecord
	var expiresAt sql.NullTime

	err := row.Scan(
		&record.Code,
		&record.TargetURL,
		&record.Clicks,
		&record.CreatedAt,
		&expiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shortener.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	record.CreatedAt = record.CreatedAt.UTC()
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		record.ExpiresAt = &t
	}
	return &record, nil
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
