package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mfontes/shortlink/internal/infrastructure/logger"
	"github.com/mfontes/shortlink/internal/shortener"
	"go.uber.org/zap"
)

// LinkCache is a best-effort edge cache in front of the link store. Entry
// TTLs are clamped to the record's ExpiresAt so an entry can never outlive
// the record it caches. All failures degrade to a miss.
type LinkCache struct {
	client     *Client
	prefix     string
	defaultTTL time.Duration
	opTimeout  time.Duration
}

type cachedLink struct {
	TargetURL string     `json:"targetUrl"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Clicks    int64      `json:"clicks,omitempty"`
}

func NewLinkCache(client *Client, prefix string, defaultTTL time.Duration) *LinkCache {
	if prefix == "" {
		prefix = "link"
	}
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	return &LinkCache{
		client:     client,
		prefix:     prefix,
		defaultTTL: defaultTTL,
		opTimeout:  200 * time.Millisecond,
	}
}

func (c *LinkCache) Get(ctx context.Context, code string) (*shortener.LinkRecord, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	raw, ok, err := c.client.Get(ctx, c.key(code))
	if err != nil || !ok {
		return nil, false
	}

	var doc cachedLink
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		logger.Warn("dropping corrupt cache entry", zap.Error(err), zap.String("code", code))
		_ = c.client.Del(ctx, c.key(code))
		return nil, false
	}

	return &shortener.LinkRecord{
		Code:      code,
		TargetURL: doc.TargetURL,
		CreatedAt: doc.CreatedAt,
		ExpiresAt: doc.ExpiresAt,
		Clicks:    doc.Clicks,
	}, true
}

func (c *LinkCache) Set(ctx context.Context, record *shortener.LinkRecord, now time.Time) {
	ttl := c.defaultTTL
	if record.ExpiresAt != nil {
		remaining := record.ExpiresAt.Sub(now.UTC())
		if remaining <= 0 {
			return
		}
		if remaining < ttl {
			ttl = remaining
		}
	}

	raw, err := json.Marshal(cachedLink{
		TargetURL: record.TargetURL,
		CreatedAt: record.CreatedAt,
		ExpiresAt: record.ExpiresAt,
		Clicks:    record.Clicks,
	})
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.client.SetPX(ctx, c.key(record.Code), string(raw), ttl); err != nil {
		logger.Debug("cache set failed", zap.Error(err), zap.String("code", record.Code))
	}
}

func (c *LinkCache) key(code string) string {
	return c.prefix + ":" + code
}
