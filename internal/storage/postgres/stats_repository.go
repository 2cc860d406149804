package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mfontes/shortlink/internal/shortener"
)

type ClickStatsRepository struct {
	db *sql.DB
}

func NewClickStatsRepository(db *sql.DB) (*ClickStatsRepository, error) {
	if db == nil {
		return nil, errors.New("postgres db is nil")
	}
	return &ClickStatsRepository{db: db}, nil
}

func (r *ClickStatsRepository) IncDaily(ctx context.Context, code string, at time.Time, delta int64) error {
	const query = `
		INSERT INTO clicks_daily (code, day, count)
		VALUES ($1, $2, $3)
		ON CONFLICT (code, day)
		DO UPDATE SET count = clicks_daily.count + EXCLUDED.count
	`

	y, m, d := at.UTC().Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	_, err := r.db.ExecContext(ctx, query, code, day, delta)
	return err
}

func (r *ClickStatsRepository) GetDaily(ctx context.Context, code string, from, to time.Time) ([]shortener.DailyCount, error) {
	const query = `
		SELECT day, count
		FROM clicks_daily
		WHERE code = $1 AND day >= $2 AND day <= $3
		ORDER BY day
	`

	rows, err := r.db.QueryContext(ctx, query, code, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []shortener.DailyCount
	for rows.Next() {
		var day time.Time
		var count int64
		if err := rows.Scan(&day, &count); err != nil {
			return nil, err
		}
		out = append(out, shortener.DailyCount{
			Date:  day.UTC().Format(time.DateOnly),
			Count: count,
		})
	}
	return out, rows.Err()
}
