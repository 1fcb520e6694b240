// Package idempotency defines the contract behind the X-Idempotency-Key header:
// the first request with a key runs, later requests with the same key and body
// replay its stored response.
package idempotency

import (
	"context"
	"net/http"
)

// Status is the state of a keyed operation.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Replay is a stored HTTP response.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Store keeps idempotency keys.
type Store interface {
	// AcquireKey claims key for this request. It returns:
	//   - (nil, nil) when the caller should run the operation;
	//   - (replay, nil) when the operation already finished;
	//   - IDEMPOTENCY_CONFLICT while another request holds the key, or when the
	//     key was used by another actor, operation or body.
	AcquireKey(ctx context.Context, key, actorID, operation, requestHash string) (*Replay, error)

	// CompleteKey stores a successful response.
	CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error

	// FailKey stores an error response.
	FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error

	// ReleaseKey forgets a pending key so the same request can run again.
	ReleaseKey(ctx context.Context, key string) error

	// CleanupExpired removes keys past their TTL.
	CleanupExpired(ctx context.Context) (int64, error)
}

// NormalizeReplay fills defaults for records stored without status or content type.
func NormalizeReplay(r *Replay) *Replay {
	if r.StatusCode == 0 {
		r.StatusCode = http.StatusOK
	}
	if r.ContentType == "" {
		r.ContentType = "application/json"
	}
	return r
}
