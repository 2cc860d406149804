package shortener

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
)

type ServiceConfig struct {
	CodeLength        int
	MaxCreateAttempts int
	// Now overrides the clock, for tests.
	Now func() time.Time
}

type Service struct {
	linkRepo    LinkRepository
	statsRepo   StatsRepository
	accountant  Accountant
	generator   CodeGenerator
	checker     TargetChecker
	cache       ResolveCache
	codeLength  int
	maxAttempts int
	now         func() time.Time
}

func NewService(linkRepo LinkRepository, statsRepo StatsRepository, generator CodeGenerator, cfg ServiceConfig) *Service {
	if cfg.CodeLength <= 0 || cfg.CodeLength > MaxCodeLength {
		cfg.CodeLength = DefaultCodeLength
	}
	if cfg.MaxCreateAttempts <= 0 {
		cfg.MaxCreateAttempts = 5
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Service{
		linkRepo:    linkRepo,
		statsRepo:   statsRepo,
		generator:   generator,
		codeLength:  cfg.CodeLength,
		maxAttempts: cfg.MaxCreateAttempts,
		now:         cfg.Now,
	}
}

// WithAccountant attaches the click accountant used on successful resolves.
func (s *Service) WithAccountant(a Accountant) *Service {
	s.accountant = a
	return s
}

// WithTargetChecker enables the create-time reachability probe.
func (s *Service) WithTargetChecker(c TargetChecker) *Service {
	s.checker = c
	return s
}

// WithResolveCache attaches an edge cache consulted before the link store.
func (s *Service) WithResolveCache(c ResolveCache) *Service {
	s.cache = c
	return s
}

// Create validates the target, assigns a code and persists the record.
// A caller-supplied custom code is inserted exactly once: a collision is
// surfaced as ErrCodeTaken rather than retried, since retrying would change
// the code the caller asked for. Generated codes retry on collision up to
// the configured bound before ErrGenerationExhausted.
func (s *Service) Create(ctx context.Context, in CreateLinkInput) (*LinkRecord, error) {
	normalized, err := validateAndNormalizeURL(in.TargetURL)
	if err != nil {
		return nil, ErrInvalidURL
	}

	if s.checker != nil {
		if err := s.checker.Check(ctx, normalized); err != nil {
			return nil, ErrTargetUnreachable
		}
	}

	record := &LinkRecord{
		TargetURL: normalized,
		CreatedAt: s.now().UTC(),
	}
	if in.TTL > 0 {
		t := record.CreatedAt.Add(in.TTL)
		record.ExpiresAt = &t
	}

	if custom := strings.TrimSpace(in.CustomCode); custom != "" {
		if !ValidCode(custom) {
			return nil, ErrInvalidCode
		}
		record.Code = custom
		if err := s.linkRepo.Insert(ctx, record); err != nil {
			return nil, mapStoreErr(err)
		}
		return record, nil
	}

	for range s.maxAttempts {
		code, err := s.generator.Generate(s.codeLength)
		if err != nil {
			return nil, err
		}
		record.Code = code

		err = s.linkRepo.Insert(ctx, record)
		if err == nil {
			return record, nil
		}
		if errors.Is(err, ErrCodeTaken) {
			continue
		}
		return nil, mapStoreErr(err)
	}

	return nil, ErrGenerationExhausted
}

// Resolve translates a code into its redirect target. Expired records are
// reported as ErrExpired, distinct from ErrNotFound. On success a click
// event is handed to the accountant without blocking the caller.
func (s *Service) Resolve(ctx context.Context, code string) (*LinkRecord, error) {
	code = strings.TrimSpace(code)
	if !ValidCode(code) {
		return nil, ErrInvalidCode
	}

	at := s.now().UTC()

	if s.cache != nil {
		if record, ok := s.cache.Get(ctx, code); ok {
			if record.Expired(at) {
				return nil, ErrExpired
			}
			s.recordClick(code, at)
			return record, nil
		}
	}

	record, err := s.linkRepo.FindActiveByCode(ctx, code, at)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	if s.cache != nil {
		s.cache.Set(ctx, record, at)
	}
	s.recordClick(code, at)
	return record, nil
}

// Stats returns the total click count plus the daily series for the range.
// Expired links keep their stats readable.
func (s *Service) Stats(ctx context.Context, code string, from, to time.Time) (*LinkStats, error) {
	code = strings.TrimSpace(code)
	if !ValidCode(code) {
		return nil, ErrInvalidCode
	}

	record, err := s.linkRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	from = from.UTC()
	to = to.UTC()
	if to.Before(from) {
		return nil, ErrInvalidRange
	}

	counts, err := s.statsRepo.GetDaily(ctx, code, from, to)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	byDate := make(map[string]int64, len(counts))
	for _, c := range counts {
		byDate[c.Date] = c.Count
	}

	daily := make([]DailyCount, 0, int(to.Sub(from).Hours()/24)+1)
	for day := dateOnly(from); !day.After(dateOnly(to)); day = day.AddDate(0, 0, 1) {
		ds := day.Format(time.DateOnly)
		daily = append(daily, DailyCount{Date: ds, Count: byDate[ds]})
	}

	return &LinkStats{
		Code:   record.Code,
		Clicks: record.Clicks,
		Daily:  daily,
	}, nil
}

func (s *Service) recordClick(code string, at time.Time) {
	if s.accountant != nil {
		s.accountant.Record(code, at)
	}
}

// mapStoreErr folds transport-level timeouts into ErrUnavailable so the
// caller never sees a raw context error as a resolution result.
func mapStoreErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrUnavailable
	}
	return err
}

func validateAndNormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrInvalidURL
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", ErrInvalidURL
	}

	u.Fragment = ""
	return u.String(), nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
