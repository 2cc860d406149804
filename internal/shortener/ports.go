package shortener

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound            = errors.New("link not found")
	ErrExpired             = errors.New("link expired")
	ErrInvalidURL          = errors.New("invalid target url")
	ErrInvalidCode         = errors.New("invalid code")
	ErrCodeTaken           = errors.New("code taken")
	ErrGenerationExhausted = errors.New("code generation exhausted")
	ErrTargetUnreachable   = errors.New("target url unreachable")
	ErrUnavailable         = errors.New("link store unavailable")
	ErrInvalidRange        = errors.New("invalid date range")
)

// LinkRepository is the durable code -> LinkRecord mapping. Insert is a
// conditional write: it must fail with ErrCodeTaken when the code already
// exists, and no two concurrent inserts for the same code may both succeed.
type LinkRepository interface {
	Insert(ctx context.Context, record *LinkRecord) error
	FindByCode(ctx context.Context, code string) (*LinkRecord, error)
	// FindActiveByCode treats records past ExpiresAt as ErrExpired and
	// absent codes as ErrNotFound.
	FindActiveByCode(ctx context.Context, code string, at time.Time) (*LinkRecord, error)
	// IncrementClicks applies a single atomic counter increment. It must
	// not be implemented as read-modify-write.
	IncrementClicks(ctx context.Context, code string, delta int64) error
	// DeleteExpired removes up to limit records whose ExpiresAt is at or
	// before the cutoff, returning the number removed.
	DeleteExpired(ctx context.Context, cutoff time.Time, limit int64) (int64, error)
}

type StatsRepository interface {
	IncDaily(ctx context.Context, code string, at time.Time, delta int64) error
	GetDaily(ctx context.Context, code string, from, to time.Time) ([]DailyCount, error)
}

// Accountant receives one click per successful resolve. Record must never
// block the caller; implementations drop under saturation.
type Accountant interface {
	Record(code string, at time.Time)
}

type CodeGenerator interface {
	Generate(length int) (string, error)
}

// TargetChecker probes the target before creation. Optional; a nil checker
// disables the probe.
type TargetChecker interface {
	Check(ctx context.Context, targetURL string) error
}

// ResolveCache is the optional edge cache in front of the link store. Get
// misses return (nil, false). Entries must never outlive the record's
// ExpiresAt.
type ResolveCache interface {
	Get(ctx context.Context, code string) (*LinkRecord, bool)
	Set(ctx context.Context, record *LinkRecord, now time.Time)
}
