package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"clinicledger/internal/core/apperror"
	appctx "clinicledger/internal/core/context"
	"clinicledger/internal/core/id"
	"clinicledger/internal/core/idempotency"
	"clinicledger/internal/core/numerator"
	"clinicledger/internal/domain/audit"
	"clinicledger/internal/domain/events"
)

// --- numerator.Generator ---

// GetNextNumber increments the counter for cfg.Key(period) inside the caller's
// transaction; a rollback restores the previous value.
func (s *Store) GetNextNumber(ctx context.Context, cfg numerator.Config, period time.Time) (string, error) {
	var value int64
	err := s.do(ctx, func(st *state) error {
		key := cfg.Key(period)
		st.counters[key]++
		value = st.counters[key]
		return nil
	})
	if err != nil {
		return "", err
	}
	return cfg.Format(period, value), nil
}

// SetNextNumber overwrites a counter value.
func (s *Store) SetNextNumber(ctx context.Context, cfg numerator.Config, period time.Time, value int64) error {
	if value < 0 {
		return apperror.NewValidation("counter value must not be negative")
	}
	return s.do(ctx, func(st *state) error {
		st.counters[cfg.Key(period)] = value
		return nil
	})
}

// Counter returns the current value of a counter.
func (s *Store) Counter(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.counters[name]
}

// --- events.Publisher ---

// OutboxEntry is a published event with its outbox metadata.
type OutboxEntry struct {
	ID        id.ID
	Event     events.Event
	CreatedAt time.Time
}

// Publish appends the event to the outbox. Rolled back with the transaction.
func (s *Store) Publish(ctx context.Context, event events.Event) error {
	return s.do(ctx, func(st *state) error {
		st.outbox = append(st.outbox, OutboxEntry{ID: id.New(), Event: event, CreatedAt: s.now().UTC()})
		return nil
	})
}

// Outbox returns a copy of the published events in order.
func (s *Store) Outbox() []OutboxEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.outbox)
}

// --- audit.Recorder / audit.Reader ---

// LogChange appends an audit entry attributed to the actor in ctx.
func (s *Store) LogChange(ctx context.Context, entityType string, entityID id.ID, action audit.Action, changes map[string]any) error {
	raw, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}
	entry := audit.Entry{
		ID:         id.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		ActorID:    appctx.GetActorID(ctx),
		Changes:    raw,
		CreatedAt:  s.now().UTC(),
	}
	return s.do(ctx, func(st *state) error {
		st.audit = append(st.audit, entry)
		return nil
	})
}

// History returns audit entries for an entity, newest first.
func (s *Store) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	out := make([]audit.Entry, 0)
	err := s.do(ctx, func(st *state) error {
		for i := len(st.audit) - 1; i >= 0 && len(out) < limit; i-- {
			e := st.audit[i]
			if e.EntityType == entityType && e.EntityID == entityID {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}

// --- idempotency.Store ---

type idemRecord struct {
	actorID     string
	operation   string
	requestHash string
	status      idempotency.Status
	replay      idempotency.Replay
	updatedAt   time.Time
	expiresAt   time.Time
}

// AcquireKey implements idempotency.Store.
func (s *Store) AcquireKey(ctx context.Context, key, actorID, operation, requestHash string) (*idempotency.Replay, error) {
	var replay *idempotency.Replay
	err := s.do(ctx, func(st *state) error {
		now := s.now().UTC()
		rec, ok := st.idem[key]
		if !ok || now.After(rec.expiresAt) {
			st.idem[key] = idemRecord{
				actorID:     actorID,
				operation:   operation,
				requestHash: requestHash,
				status:      idempotency.StatusPending,
				updatedAt:   now,
				expiresAt:   now.Add(s.ttl),
			}
			return nil
		}

		if rec.actorID != actorID || rec.operation != operation || rec.requestHash != requestHash {
			return apperror.NewIdempotencyMismatch(key)
		}

		switch rec.status {
		case idempotency.StatusSuccess, idempotency.StatusFailed:
			r := rec.replay
			replay = idempotency.NormalizeReplay(&r)
			return nil
		}

		if now.Sub(rec.updatedAt) > time.Minute {
			rec.updatedAt = now
			st.idem[key] = rec
			return nil
		}
		return apperror.NewIdempotencyConflict(key)
	})
	return replay, err
}

// CompleteKey implements idempotency.Store.
func (s *Store) CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finishKey(ctx, key, idempotency.StatusSuccess, statusCode, contentType, response)
}

// FailKey implements idempotency.Store.
func (s *Store) FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finishKey(ctx, key, idempotency.StatusFailed, statusCode, contentType, response)
}

func (s *Store) finishKey(ctx context.Context, key string, status idempotency.Status, statusCode int, contentType string, response any) error {
	var body []byte
	if response != nil {
		b, err := json.Marshal(response)
		if err != nil {
			return fmt.Errorf("marshal response: %w", err)
		}
		body = b
	}
	return s.do(ctx, func(st *state) error {
		rec, ok := st.idem[key]
		if !ok {
			return nil
		}
		rec.status = status
		rec.replay = idempotency.Replay{StatusCode: statusCode, ContentType: contentType, Body: body}
		rec.updatedAt = s.now().UTC()
		st.idem[key] = rec
		return nil
	})
}

// ReleaseKey implements idempotency.Store.
func (s *Store) ReleaseKey(ctx context.Context, key string) error {
	return s.do(ctx, func(st *state) error {
		if rec, ok := st.idem[key]; ok && rec.status == idempotency.StatusPending {
			delete(st.idem, key)
		}
		return nil
	})
}

// CleanupExpired implements idempotency.Store.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	var n int64
	err := s.do(ctx, func(st *state) error {
		now := s.now().UTC()
		for k, rec := range st.idem {
			if now.After(rec.expiresAt) {
				delete(st.idem, k)
				n++
			}
		}
		return nil
	})
	return n, err
}
