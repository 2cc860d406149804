// Package targetcheck probes target URLs before a short link is created.
// The probe is best effort: only a definite failure (connection error or a
// 4xx/5xx response) marks the target unreachable.
package targetcheck

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mfontes/shortlink/pkg/httpclient"
)

const (
	defaultTimeout     = 3 * time.Second
	defaultMaxFailures = 5
	defaultCBInterval  = 30 * time.Second
)

// Checker verifies that a target URL answers with a non-error status.
type Checker struct {
	client *httpclient.Client
}

func New() *Checker {
	return &Checker{
		client: httpclient.NewClient(defaultTimeout, defaultMaxFailures, defaultCBInterval),
	}
}

// Check issues a GET against the target and fails on transport errors and
// 4xx/5xx statuses. Redirects are followed by the underlying client, so a
// target behind a redirect chain still counts as reachable.
func (c *Checker) Check(ctx context.Context, target string) error {
	resp, err := c.client.Get(ctx, target, nil, nil)
	if err != nil {
		return fmt.Errorf("probing %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("probing %s: status %d", target, resp.StatusCode)
	}
	return nil
}
