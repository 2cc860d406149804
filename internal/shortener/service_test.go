package shortener

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// --- Hand-written fakes ---

// fakeLinkRepo is a map-backed LinkRepository with the same conditional
// insert contract as the real stores.
type fakeLinkRepo struct {
	mu      sync.Mutex
	records map[string]*LinkRecord
	failure error
}

func newFakeLinkRepo() *fakeLinkRepo {
	return &fakeLinkRepo{records: make(map[string]*LinkRecord)}
}

func (f *fakeLinkRepo) Insert(_ context.Context, record *LinkRecord) error {
	if f.failure != nil {
		return f.failure
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.records[record.Code]; exists {
		return ErrCodeTaken
	}
	clone := *record
	f.records[record.Code] = &clone
	return nil
}

func (f *fakeLinkRepo) FindByCode(_ context.Context, code string) (*LinkRecord, error) {
	if f.failure != nil {
		return nil, f.failure
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[code]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (f *fakeLinkRepo) FindActiveByCode(ctx context.Context, code string, at time.Time) (*LinkRecord, error) {
	record, err := f.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if record.Expired(at) {
		return nil, ErrExpired
	}
	return record, nil
}

func (f *fakeLinkRepo) IncrementClicks(_ context.Context, code string, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[code]
	if !ok {
		return ErrNotFound
	}
	record.Clicks += delta
	return nil
}

func (f *fakeLinkRepo) DeleteExpired(_ context.Context, cutoff time.Time, _ int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for code, record := range f.records {
		if record.ExpiresAt != nil && !record.ExpiresAt.After(cutoff) {
			delete(f.records, code)
			n++
		}
	}
	return n, nil
}

type fakeStatsRepo struct {
	daily map[string]int64 // key: code|date
}

func (f *fakeStatsRepo) IncDaily(_ context.Context, code string, at time.Time, delta int64) error {
	if f.daily == nil {
		f.daily = make(map[string]int64)
	}
	f.daily[code+"|"+at.UTC().Format(time.DateOnly)] += delta
	return nil
}

func (f *fakeStatsRepo) GetDaily(_ context.Context, code string, from, to time.Time) ([]DailyCount, error) {
	var out []DailyCount
	for day := dateOnly(from); !day.After(dateOnly(to)); day = day.AddDate(0, 0, 1) {
		ds := day.Format(time.DateOnly)
		if count, ok := f.daily[code+"|"+ds]; ok {
			out = append(out, DailyCount{Date: ds, Count: count})
		}
	}
	return out, nil
}

type fakeAccountant struct {
	mu    sync.Mutex
	codes []string
}

func (f *fakeAccountant) Record(code string, _ time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes = append(f.codes, code)
}

func (f *fakeAccountant) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.codes...)
}

type fixedGenerator struct {
	codes []string
	idx   int
}

func (g *fixedGenerator) Generate(int) (string, error) {
	if g.idx >= len(g.codes) {
		return "", errors.New("fixedGenerator exhausted")
	}
	code := g.codes[g.idx]
	g.idx++
	return code, nil
}

// movableClock allows TTL tests without sleeping.
type movableClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMovableClock(t time.Time) *movableClock { return &movableClock{now: t} }

func (c *movableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *movableClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(repo *fakeLinkRepo, clock *movableClock) *Service {
	cfg := ServiceConfig{CodeLength: 7, MaxCreateAttempts: 5}
	if clock != nil {
		cfg.Now = clock.Now
	}
	return NewService(repo, &fakeStatsRepo{}, NewClockRandomGenerator(), cfg)
}

// --- URL validation ---

func TestValidateAndNormalizeURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"valid https", "https://example.com/page", "https://example.com/page", false},
		{"valid http", "http://example.com", "http://example.com", false},
		{"strips fragment", "https://example.com/page#top", "https://example.com/page", false},
		{"whitespace trimmed", "  https://example.com  ", "https://example.com", false},
		{"empty", "", "", true},
		{"ftp scheme", "ftp://bad.example", "", true},
		{"no scheme", "example.com", "", true},
		{"missing host", "https://", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validateAndNormalizeURL(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

// --- Create ---

func TestCreateThenResolve(t *testing.T) {
	repo := newFakeLinkRepo()
	svc := newTestService(repo, nil)

	created, err := svc.Create(context.Background(), CreateLinkInput{TargetURL: "https://example.com/page"})
	if err != nil {
		t.Fatal(err)
	}
	if created.Code == "" {
		t.Fatal("empty code")
	}
	if created.TargetURL != "https://example.com/page" {
		t.Errorf("target stored as %q", created.TargetURL)
	}

	resolved, err := svc.Resolve(context.Background(), created.Code)
	if err != nil {
		t.Fatalf("read-your-writes violated: %v", err)
	}
	if resolved.TargetURL != created.TargetURL {
		t.Errorf("resolved %q, want %q", resolved.TargetURL, created.TargetURL)
	}
}

func TestCreateRejectsInvalidURL(t *testing.T) {
	svc := newTestService(newFakeLinkRepo(), nil)

	for _, raw := range []string{"ftp://bad.example", "", "not-a-url", "javascript:alert(1)"} {
		if _, err := svc.Create(context.Background(), CreateLinkInput{TargetURL: raw}); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("Create(%q): got %v, want ErrInvalidURL", raw, err)
		}
	}
}

func TestCreateCustomCode(t *testing.T) {
	repo := newFakeLinkRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	t.Run("accepted", func(t *testing.T) {
		created, err := svc.Create(ctx, CreateLinkInput{TargetURL: "https://example.com", CustomCode: "myPromo1"})
		if err != nil {
			t.Fatal(err)
		}
		if created.Code != "myPromo1" {
			t.Errorf("got code %q", created.Code)
		}
	})

	t.Run("taken is not retried", func(t *testing.T) {
		_, err := svc.Create(ctx, CreateLinkInput{TargetURL: "https://other.example", CustomCode: "myPromo1"})
		if !errors.Is(err, ErrCodeTaken) {
			t.Fatalf("got %v, want ErrCodeTaken", err)
		}
	})

	t.Run("invalid alphabet", func(t *testing.T) {
		_, err := svc.Create(ctx, CreateLinkInput{TargetURL: "https://example.com", CustomCode: "bad_code!"})
		if !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("got %v, want ErrInvalidCode", err)
		}
	})
}

func TestCreateRetriesCollisionsThenExhausts(t *testing.T) {
	repo := newFakeLinkRepo()
	for _, code := range []string{"c1", "c2", "c3"} {
		if err := repo.Insert(context.Background(), &LinkRecord{Code: code, TargetURL: "https://a.example"}); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("succeeds after collisions", func(t *testing.T) {
		gen := &fixedGenerator{codes: []string{"c1", "c2", "free1"}}
		svc := NewService(repo, &fakeStatsRepo{}, gen, ServiceConfig{MaxCreateAttempts: 5})

		created, err := svc.Create(context.Background(), CreateLinkInput{TargetURL: "https://example.com"})
		if err != nil {
			t.Fatal(err)
		}
		if created.Code != "free1" {
			t.Errorf("got code %q, want free1", created.Code)
		}
	})

	t.Run("exhausts after bounded attempts", func(t *testing.T) {
		gen := &fixedGenerator{codes: []string{"c1", "c2", "c3", "c1", "c2", "c3"}}
		svc := NewService(repo, &fakeStatsRepo{}, gen, ServiceConfig{MaxCreateAttempts: 3})

		_, err := svc.Create(context.Background(), CreateLinkInput{TargetURL: "https://example.com"})
		if !errors.Is(err, ErrGenerationExhausted) {
			t.Fatalf("got %v, want ErrGenerationExhausted", err)
		}
		if gen.idx != 3 {
			t.Errorf("generator invoked %d times, want 3", gen.idx)
		}
	})
}

// --- Resolve ---

func TestResolveErrors(t *testing.T) {
	repo := newFakeLinkRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	t.Run("unknown code", func(t *testing.T) {
		if _, err := svc.Resolve(ctx, "doesNotExist"); !errors.Is(err, ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})

	t.Run("malformed code", func(t *testing.T) {
		for _, code := range []string{"", "bad code", "bad-code", "x!"} {
			if _, err := svc.Resolve(ctx, code); !errors.Is(err, ErrInvalidCode) {
				t.Errorf("Resolve(%q): got %v, want ErrInvalidCode", code, err)
			}
		}
	})

	t.Run("store timeout maps to unavailable", func(t *testing.T) {
		repo := newFakeLinkRepo()
		repo.failure = context.DeadlineExceeded
		svc := newTestService(repo, nil)
		if _, err := svc.Resolve(ctx, "anyCode"); !errors.Is(err, ErrUnavailable) {
			t.Errorf("got %v, want ErrUnavailable", err)
		}
	})
}

func TestResolveTTLExpiry(t *testing.T) {
	clock := newMovableClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	repo := newFakeLinkRepo()
	svc := newTestService(repo, clock)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateLinkInput{TargetURL: "https://example.com", TTL: time.Second})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Resolve(ctx, created.Code); err != nil {
		t.Fatalf("should resolve before expiry: %v", err)
	}

	clock.Advance(2 * time.Second)

	if _, err := svc.Resolve(ctx, created.Code); !errors.Is(err, ErrExpired) {
		t.Fatalf("got %v, want ErrExpired after TTL", err)
	}
}

func TestResolveRecordsClicks(t *testing.T) {
	clock := newMovableClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	repo := newFakeLinkRepo()
	acct := &fakeAccountant{}
	svc := newTestService(repo, clock).WithAccountant(acct)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateLinkInput{TargetURL: "https://example.com", TTL: time.Minute})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if _, err := svc.Resolve(ctx, created.Code); err != nil {
			t.Fatal(err)
		}
	}

	// Failed resolves must not be accounted.
	clock.Advance(2 * time.Minute)
	if _, err := svc.Resolve(ctx, created.Code); !errors.Is(err, ErrExpired) {
		t.Fatal(err)
	}
	if _, err := svc.Resolve(ctx, "doesNotExist"); !errors.Is(err, ErrNotFound) {
		t.Fatal(err)
	}

	if got := acct.recorded(); len(got) != 3 {
		t.Errorf("recorded %d clicks, want 3", len(got))
	}
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*LinkRecord
	hits    int
}

func (f *fakeCache) Get(_ context.Context, code string) (*LinkRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.entries[code]
	if ok {
		f.hits++
	}
	return record, ok
}

func (f *fakeCache) Set(_ context.Context, record *LinkRecord, _ time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.entries == nil {
		f.entries = make(map[string]*LinkRecord)
	}
	f.entries[record.Code] = record
}

func TestResolveUsesCacheButRespectsExpiry(t *testing.T) {
	clock := newMovableClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	repo := newFakeLinkRepo()
	cache := &fakeCache{}
	acct := &fakeAccountant{}
	svc := newTestService(repo, clock).WithResolveCache(cache).WithAccountant(acct)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateLinkInput{TargetURL: "https://example.com", TTL: time.Minute})
	if err != nil {
		t.Fatal(err)
	}

	// First resolve populates the cache, second hits it.
	if _, err := svc.Resolve(ctx, created.Code); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Resolve(ctx, created.Code); err != nil {
		t.Fatal(err)
	}
	if cache.hits == 0 {
		t.Error("cache never hit")
	}

	// A stale cache entry must not serve an expired link.
	clock.Advance(2 * time.Minute)
	if _, err := svc.Resolve(ctx, created.Code); !errors.Is(err, ErrExpired) {
		t.Errorf("got %v, want ErrExpired from cached record", err)
	}

	// Cache hits still count clicks.
	if got := acct.recorded(); len(got) != 2 {
		t.Errorf("recorded %d clicks, want 2", len(got))
	}
}

// --- Stats ---

func TestStats(t *testing.T) {
	clock := newMovableClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	repo := newFakeLinkRepo()
	stats := &fakeStatsRepo{}
	svc := NewService(repo, stats, NewClockRandomGenerator(), ServiceConfig{Now: clock.Now})
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateLinkInput{TargetURL: "https://example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if err := stats.IncDaily(ctx, created.Code, clock.Now(), 4); err != nil {
		t.Fatal(err)
	}
	if err := repo.IncrementClicks(ctx, created.Code, 4); err != nil {
		t.Fatal(err)
	}

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	got, err := svc.Stats(ctx, created.Code, from, to)
	if err != nil {
		t.Fatal(err)
	}

	if got.Clicks != 4 {
		t.Errorf("clicks = %d, want 4", got.Clicks)
	}
	if len(got.Daily) != 3 {
		t.Fatalf("daily has %d entries, want 3 (gap days zero-filled)", len(got.Daily))
	}
	if got.Daily[1].Date != "2026-03-02" || got.Daily[1].Count != 4 {
		t.Errorf("daily[1] = %+v", got.Daily[1])
	}
	if got.Daily[0].Count != 0 || got.Daily[2].Count != 0 {
		t.Error("gap days must be zero")
	}

	t.Run("inverted range", func(t *testing.T) {
		if _, err := svc.Stats(ctx, created.Code, to, from); !errors.Is(err, ErrInvalidRange) {
			t.Errorf("got %v, want ErrInvalidRange", err)
		}
	})

	t.Run("unknown code", func(t *testing.T) {
		if _, err := svc.Stats(ctx, "doesNotExist", from, to); !errors.Is(err, ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})
}
