package shortener

import "time"

// LinkRecord is the stored mapping between a short code and its target.
// TargetURL and CreatedAt are immutable after creation; Clicks is mutated
// only through the store's atomic increment.
type LinkRecord struct {
	Code      string
	TargetURL string
	CreatedAt time.Time
	ExpiresAt *time.Time
	Clicks    int64
}

// Expired reports whether the record is past its ExpiresAt at the given time.
func (r *LinkRecord) Expired(at time.Time) bool {
	return r.ExpiresAt != nil && at.UTC().After(r.ExpiresAt.UTC())
}

type CreateLinkInput struct {
	TargetURL  string
	CustomCode string
	TTL        time.Duration
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// LinkStats is the aggregate view returned for a single code.
type LinkStats struct {
	Code   string
	Clicks int64
	Daily  []DailyCount
}
