package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"clinicledger/internal/core/apperror"
	"clinicledger/internal/core/idempotency"
)

// staleAfter is how long a pending key may sit before another request may
// reclaim it (the original request most likely crashed).
const staleAfter = time.Minute

// IdempotencyStore keeps idempotency keys in sys_idempotency.
type IdempotencyStore struct {
	txManager *TxManager
	ttl       time.Duration
}

var _ idempotency.Store = (*IdempotencyStore)(nil)

// NewIdempotencyStore creates a new idempotency store.
func NewIdempotencyStore(txManager *TxManager, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{txManager: txManager, ttl: ttl}
}

// AcquireKey implements idempotency.Store. The insert reports through xmax
// whether this call created the row, so concurrent requests agree on a single owner.
func (s *IdempotencyStore) AcquireKey(ctx context.Context, key, actorID, operation, requestHash string) (*idempotency.Replay, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(s.ttl)

	var (
		inserted     bool
		storedActor  string
		storedOp     string
		storedHash   string
		status       idempotency.Status
		response     []byte
		statusCode   *int
		contentType  *string
		updatedAt    time.Time
		storedExpiry time.Time
	)
	err := s.txManager.GetQuerier(ctx).QueryRow(ctx, `
		INSERT INTO sys_idempotency (idempotency_key, actor_id, operation, status, request_hash, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		ON CONFLICT (idempotency_key) DO UPDATE SET idempotency_key = EXCLUDED.idempotency_key
		RETURNING (xmax = 0), actor_id, operation, request_hash, status, response,
		          response_status, response_content_type, updated_at, expires_at
	`, key, actorID, operation, idempotency.StatusPending, requestHash, now, expiresAt).Scan(
		&inserted, &storedActor, &storedOp, &storedHash, &status, &response,
		&statusCode, &contentType, &updatedAt, &storedExpiry,
	)
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}

	if inserted {
		return nil, nil
	}

	// An expired key starts over as if it were new.
	if now.After(storedExpiry) {
		return nil, s.reset(ctx, key, actorID, operation, requestHash, now, expiresAt)
	}

	if storedActor != actorID || storedOp != operation || storedHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key).
			WithDetail("stored_operation", storedOp).
			WithDetail("request_operation", operation)
	}

	switch status {
	case idempotency.StatusSuccess, idempotency.StatusFailed:
		replay := &idempotency.Replay{Body: response}
		if statusCode != nil {
			replay.StatusCode = *statusCode
		}
		if contentType != nil {
			replay.ContentType = *contentType
		}
		return idempotency.NormalizeReplay(replay), nil
	}

	if now.Sub(updatedAt) > staleAfter {
		tag, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
			UPDATE sys_idempotency
			SET updated_at = $1
			WHERE idempotency_key = $2 AND status = $3 AND updated_at = $4
		`, now, key, idempotency.StatusPending, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("reclaim stale key: %w", err)
		}
		if tag.RowsAffected() == 1 {
			return nil, nil
		}
	}

	return nil, apperror.NewIdempotencyConflict(key)
}

func (s *IdempotencyStore) reset(ctx context.Context, key, actorID, operation, requestHash string, now, expiresAt time.Time) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_idempotency
		SET actor_id = $2, operation = $3, request_hash = $4, status = $5,
		    response = NULL, response_status = NULL, response_content_type = NULL,
		    created_at = $6, updated_at = $6, expires_at = $7
		WHERE idempotency_key = $1
	`, key, actorID, operation, requestHash, idempotency.StatusPending, now, expiresAt)
	if err != nil {
		return fmt.Errorf("reset expired key: %w", err)
	}
	return nil
}

// CompleteKey implements idempotency.Store.
func (s *IdempotencyStore) CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(ctx, key, idempotency.StatusSuccess, statusCode, contentType, response)
}

// FailKey implements idempotency.Store.
func (s *IdempotencyStore) FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(ctx, key, idempotency.StatusFailed, statusCode, contentType, response)
}

func (s *IdempotencyStore) finish(ctx context.Context, key string, status idempotency.Status, statusCode int, contentType string, response any) error {
	var body []byte
	if response != nil {
		b, err := json.Marshal(response)
		if err != nil {
			// Keep the key consistent with a minimal error body.
			b, _ = json.Marshal(map[string]string{"error": err.Error()})
		}
		body = b
	}

	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_idempotency
		SET status = $1,
		    response = $2,
		    response_status = $3,
		    response_content_type = $4,
		    updated_at = $5
		WHERE idempotency_key = $6
	`, status, body, statusCode, contentType, time.Now().UTC(), key)
	if err != nil {
		return fmt.Errorf("finish idempotency key: %w", err)
	}
	return nil
}

// ReleaseKey implements idempotency.Store. Only pending keys are removed.
func (s *IdempotencyStore) ReleaseKey(ctx context.Context, key string) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM sys_idempotency WHERE idempotency_key = $1 AND status = $2
	`, key, idempotency.StatusPending)
	if err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// CleanupExpired removes expired idempotency records.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM sys_idempotency WHERE expires_at < $1
	`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	return result.RowsAffected(), nil
}
