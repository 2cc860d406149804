package accounting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mfontes/shortlink/internal/events"
)

type countingIncrementer struct {
	mu      sync.Mutex
	totals  map[string]int64
	calls   int
	failFor int // fail the first N calls
}

func newCountingIncrementer() *countingIncrementer {
	return &countingIncrementer{totals: make(map[string]int64)}
}

func (c *countingIncrementer) IncrementClicks(_ context.Context, code string, delta int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls <= c.failFor {
		return errors.New("transient store error")
	}
	c.totals[code] += delta
	return nil
}

func (c *countingIncrementer) total(code string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totals[code]
}

type capturingSink struct {
	mu     sync.Mutex
	events []events.ClickRecorded
}

func (s *capturingSink) Publish(_ context.Context, batch []events.ClickRecorded) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, batch...)
	return nil
}

func (s *capturingSink) all() []events.ClickRecorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.ClickRecorded(nil), s.events...)
}

func shutdownOrFail(t *testing.T, a *Accountant) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestAccountantAggregatesPerCode(t *testing.T) {
	inc := newCountingIncrementer()
	sink := &capturingSink{}
	a := New(inc, sink, Options{QueueSize: 1024, FlushInterval: 10 * time.Millisecond})

	now := time.Now()
	for i := 0; i < 50; i++ {
		a.Record("hotCode", now)
	}
	for i := 0; i < 3; i++ {
		a.Record("coldCode", now)
	}

	shutdownOrFail(t, a)

	if got := inc.total("hotCode"); got != 50 {
		t.Errorf("hotCode total = %d, want 50", got)
	}
	if got := inc.total("coldCode"); got != 3 {
		t.Errorf("coldCode total = %d, want 3", got)
	}
	if got := len(sink.all()); got != 53 {
		t.Errorf("published %d events, want 53 (one per click, no double counting)", got)
	}
	if a.Dropped() != 0 {
		t.Errorf("dropped %d events with an idle queue", a.Dropped())
	}
}

func TestAccountantEventIDsAreUnique(t *testing.T) {
	inc := newCountingIncrementer()
	sink := &capturingSink{}
	a := New(inc, sink, Options{QueueSize: 256})

	now := time.Now()
	for i := 0; i < 100; i++ {
		a.Record("someCode", now)
	}
	shutdownOrFail(t, a)

	seen := make(map[string]struct{})
	for _, ev := range sink.all() {
		if _, dup := seen[ev.EventID]; dup {
			t.Fatalf("duplicate event id %s", ev.EventID)
		}
		seen[ev.EventID] = struct{}{}
	}
}

func TestAccountantRetriesThenDropsIncrements(t *testing.T) {
	t.Run("recovers within retry budget", func(t *testing.T) {
		inc := newCountingIncrementer()
		inc.failFor = 2
		a := New(inc, nil, Options{QueueSize: 16, IncrementRetries: 3})

		a.Record("someCode", time.Now())
		shutdownOrFail(t, a)

		if got := inc.total("someCode"); got != 1 {
			t.Errorf("total = %d, want 1 after retry", got)
		}
	})

	t.Run("gives up past the budget", func(t *testing.T) {
		inc := newCountingIncrementer()
		inc.failFor = 10
		a := New(inc, nil, Options{QueueSize: 16, IncrementRetries: 2})

		a.Record("someCode", time.Now())
		shutdownOrFail(t, a)

		if got := inc.total("someCode"); got != 0 {
			t.Errorf("total = %d, want 0 (increment abandoned)", got)
		}
	})
}

func TestRecordNeverBlocks(t *testing.T) {
	// A full queue with a stopped consumer: Record must return immediately
	// and count drops.
	inc := newCountingIncrementer()
	a := New(inc, nil, Options{QueueSize: 4, FlushInterval: time.Hour})
	shutdownOrFail(t, a) // loop is gone; nothing drains the queue

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			a.Record("someCode", time.Now())
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on a saturated queue")
	}

	if a.Dropped() == 0 {
		t.Error("expected drops on a saturated queue")
	}
}

func TestRecordIgnoresEmptyCode(t *testing.T) {
	inc := newCountingIncrementer()
	a := New(inc, nil, Options{QueueSize: 16})
	a.Record("", time.Now())
	shutdownOrFail(t, a)

	if len(inc.totals) != 0 {
		t.Errorf("unexpected increments: %v", inc.totals)
	}
}
