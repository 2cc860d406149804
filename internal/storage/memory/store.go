// Package memory implements the link and stats stores on a mutex-guarded
// map. Used in local mode and as the deterministic backend for tests; it
// honors the same conditional-write and atomic-increment contracts as the
// durable backends.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mfontes/shortlink/internal/shortener"
)

type LinkStore struct {
	mu      sync.RWMutex
	records map[string]*shortener.LinkRecord
}

func NewLinkStore() *LinkStore {
	return &LinkStore{records: make(map[string]*shortener.LinkRecord)}
}

func (s *LinkStore) Insert(ctx context.Context, record *shortener.LinkRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.Code]; exists {
		return shortener.ErrCodeTaken
	}

	clone := *record
	s.records[record.Code] = &clone
	return nil
}

func (s *LinkStore) FindByCode(ctx context.Context, code string) (*shortener.LinkRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[code]
	if !ok {
		return nil, shortener.ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (s *LinkStore) FindActiveByCode(ctx context.Context, code string, at time.Time) (*shortener.LinkRecord, error) {
	record, err := s.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if record.Expired(at) {
		return nil, shortener.ErrExpired
	}
	return record, nil
}

func (s *LinkStore) IncrementClicks(ctx context.Context, code string, delta int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[code]
	if !ok {
		return shortener.ErrNotFound
	}
	record.Clicks += delta
	return nil
}

func (s *LinkStore) DeleteExpired(ctx context.Context, cutoff time.Time, limit int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for code, record := range s.records {
		if limit > 0 && removed >= limit {
			break
		}
		if record.ExpiresAt != nil && !record.ExpiresAt.After(cutoff) {
			delete(s.records, code)
			removed++
		}
	}
	return removed, nil
}

type StatsStore struct {
	mu    sync.RWMutex
	daily map[string]map[string]int64 // code -> date -> count
}

func NewStatsStore() *StatsStore {
	return &StatsStore{daily: make(map[string]map[string]int64)}
}

func (s *StatsStore) IncDaily(ctx context.Context, code string, at time.Time, delta int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	date := at.UTC().Format(time.DateOnly)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.daily[code] == nil {
		s.daily[code] = make(map[string]int64)
	}
	s.daily[code][date] += delta
	return nil
}

func (s *StatsStore) GetDaily(ctx context.Context, code string, from, to time.Time) ([]shortener.DailyCount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	byDate := s.daily[code]
	var out []shortener.DailyCount
	for day := from.UTC().Truncate(24 * time.Hour); !day.After(to.UTC()); day = day.AddDate(0, 0, 1) {
		ds := day.Format(time.DateOnly)
		if count, ok := byDate[ds]; ok {
			out = append(out, shortener.DailyCount{Date: ds, Count: count})
		}
	}
	return out, nil
}
