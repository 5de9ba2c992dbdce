// Package cache keeps short-lived request state: the responses of
// idempotent payment writes, so a retried request replays instead of
// recording the payment twice.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrInFlight is returned by Begin while another request holds the key.
var ErrInFlight = errors.New("idempotency key is being processed")

// Response is a completed HTTP response kept for replay.
type Response struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// IdempotencyStore remembers request outcomes by idempotency key.
type IdempotencyStore interface {
	// Begin claims key for ttl. A nil Response means the caller now owns the
	// key and must call Finish or Abort. A non-nil Response is the stored
	// outcome of an earlier request with the same key.
	Begin(ctx context.Context, key string, ttl time.Duration) (*Response, error)
	// Finish stores resp under a key claimed by Begin.
	Finish(ctx context.Context, key string, resp Response, ttl time.Duration) error
	// Abort drops the claim so the request can be retried.
	Abort(ctx context.Context, key string) error
	Close() error
}
