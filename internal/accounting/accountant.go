// Package accounting turns per-resolve click events into durable counter
// increments and an analytics event stream, off the redirect critical path.
package accounting

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mfontes/shortlink/internal/events"
	"github.com/mfontes/shortlink/internal/infrastructure/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	clicksRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shortlink_clicks_recorded_total",
		Help: "Click events accepted by the accountant",
	})
	clicksDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shortlink_clicks_dropped_total",
		Help: "Click events dropped because the accounting queue was full",
	})
	incrementFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shortlink_click_increment_failures_total",
		Help: "Click counter increments abandoned after bounded retries",
	})
)

// Incrementer is the slice of the link store the accountant needs: a single
// atomic counter increment per code.
type Incrementer interface {
	IncrementClicks(ctx context.Context, code string, delta int64) error
}

// EventSink receives the raw event stream for analytics. Publish failures
// are logged and dropped; the counter increment has already been applied.
type EventSink interface {
	Publish(ctx context.Context, batch []events.ClickRecorded) error
}

type Options struct {
	QueueSize        int
	FlushInterval    time.Duration
	MaxBatchEvents   int
	FlushTimeout     time.Duration
	IncrementRetries int
}

// Accountant aggregates click events per code and applies them in batches.
// Record never blocks: when the queue is saturated new events are dropped
// and counted, which is the accepted best-effort loss mode.
type Accountant struct {
	linkRepo         Incrementer
	sink             EventSink
	queue            chan click
	flushEvery       time.Duration
	maxBatch         int
	flushTimeout     time.Duration
	incrementRetries int

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	dropped atomic.Int64
}

type click struct {
	code string
	at   time.Time
}

func New(linkRepo Incrementer, sink EventSink, opts Options) *Accountant {
	const (
		defaultQueueSize      = 100_000
		defaultFlushInterval  = 250 * time.Millisecond
		defaultMaxBatchEvents = 50_000
		defaultFlushTimeout   = 2 * time.Second
		defaultRetries        = 3
	)

	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = defaultFlushInterval
	}
	if opts.MaxBatchEvents <= 0 {
		opts.MaxBatchEvents = defaultMaxBatchEvents
	}
	if opts.FlushTimeout <= 0 {
		opts.FlushTimeout = defaultFlushTimeout
	}
	if opts.IncrementRetries <= 0 {
		opts.IncrementRetries = defaultRetries
	}

	a := &Accountant{
		linkRepo:         linkRepo,
		sink:             sink,
		queue:            make(chan click, opts.QueueSize),
		flushEvery:       opts.FlushInterval,
		maxBatch:         opts.MaxBatchEvents,
		flushTimeout:     opts.FlushTimeout,
		incrementRetries: opts.IncrementRetries,
		stopCh:           make(chan struct{}),
		doneCh:           make(chan struct{}),
	}

	go a.loop()
	return a
}

// Record enqueues a click. Non-blocking: drop-new under saturation.
func (a *Accountant) Record(code string, at time.Time) {
	if code == "" {
		return
	}

	select {
	case a.queue <- click{code: code, at: at.UTC()}:
		clicksRecorded.Inc()
	default:
		a.dropped.Add(1)
		clicksDropped.Inc()
	}
}

// Dropped returns the number of events lost to queue saturation.
func (a *Accountant) Dropped() int64 {
	return a.dropped.Load()
}

// Shutdown drains the queue, flushes pending work and waits for the loop,
// bounded by ctx.
func (a *Accountant) Shutdown(ctx context.Context) error {
	a.stopOnce.Do(func() { close(a.stopCh) })

	select {
	case <-a.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Accountant) loop() {
	defer close(a.doneCh)

	ticker := time.NewTicker(a.flushEvery)
	defer ticker.Stop()

	pending := make(map[string]int64)
	var batch []events.ClickRecorded

	flush := func() {
		if len(batch) == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), a.flushTimeout)
		a.applyIncrements(ctx, pending)
		a.publish(ctx, batch)
		cancel()

		pending = make(map[string]int64)
		batch = nil
	}

	accept := func(ev click) {
		pending[ev.code]++
		batch = append(batch, events.ClickRecorded{
			EventID:    uuid.New().String(),
			Code:       ev.code,
			OccurredAt: ev.at.Format(time.RFC3339Nano),
		})
		if len(batch) >= a.maxBatch {
			flush()
		}
	}

	drain := func() {
		for {
			select {
			case ev := <-a.queue:
				accept(ev)
			default:
				return
			}
		}
	}

	for {
		select {
		case ev := <-a.queue:
			accept(ev)
		case <-ticker.C:
			flush()
		case <-a.stopCh:
			drain()
			flush()
			return
		}
	}
}

// applyIncrements writes one atomic increment per code. Each code's delta is
// retried up to the configured bound, then dropped and logged; a hot code is
// one store operation per flush regardless of its event volume.
func (a *Accountant) applyIncrements(ctx context.Context, pending map[string]int64) {
	for code, delta := range pending {
		var err error
		for attempt := 0; attempt < a.incrementRetries; attempt++ {
			if err = a.linkRepo.IncrementClicks(ctx, code, delta); err == nil {
				break
			}
		}
		if err != nil {
			incrementFailures.Inc()
			logger.Warn("dropping click increments after retries",
				zap.Error(err),
				zap.String("code", code),
				zap.Int64("delta", delta),
			)
		}
	}
}

func (a *Accountant) publish(ctx context.Context, batch []events.ClickRecorded) {
	if a.sink == nil {
		return
	}
	if err := a.sink.Publish(ctx, batch); err != nil {
		logger.Warn("failed to publish click events",
			zap.Error(err),
			zap.Int("events", len(batch)),
		)
	}
}
