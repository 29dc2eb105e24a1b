package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/medibook/medibook/pkg/apperrors"
)

const maxUpdateAttempts = 5

// RedisStore keeps session snapshots as JSON with a sliding TTL. Updates use
// WATCH/MULTI so two requests racing on one session cannot both win.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("wizard: redis client cannot be nil")
	}
	return &RedisStore{client: client, ttl: ttl, tracer: otel.Tracer("medibook/wizard")}
}

func sessionKey(id uuid.UUID) string {
	return fmt.Sprintf("booking_session:%s", id)
}

func (r *RedisStore) Create(ctx context.Context, s State) error {
	ctx, span := r.tracer.Start(ctx, "wizard.create_session")
	defer span.End()

	data, err := json.Marshal(s)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("wizard: failed to marshal session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(s.ID), data, r.ttl).Err(); err != nil {
		span.RecordError(err)
		return apperrors.Transient("failed to save booking session", err)
	}
	return nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *RedisStore) load(ctx context.Context, c getter, id uuid.UUID) (State, error) {
	data, err := c.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, apperrors.NotFound("booking session")
	}
	if err != nil {
		return State{}, apperrors.Transient("failed to load booking session", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("wizard: failed to decode session: %w", err)
	}
	return s, nil
}

func (r *RedisStore) Get(ctx context.Context, id uuid.UUID) (State, error) {
	ctx, span := r.tracer.Start(ctx, "wizard.load_session")
	defer span.End()

	s, err := r.load(ctx, r.client, id)
	if err != nil {
		span.RecordError(err)
	}
	return s, err
}

func (r *RedisStore) Update(ctx context.Context, id uuid.UUID, fn func(State) (State, error)) (State, error) {
	ctx, span := r.tracer.Start(ctx, "wizard.update_session")
	defer span.End()

	key := sessionKey(id)
	var result State
	txf := func(tx *redis.Tx) error {
		cur, err := r.load(ctx, tx, id)
		if err != nil {
			return err
		}
		next, err := fn(cur)
		if err != nil {
			result = cur
			return err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("wizard: failed to marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl)
			return nil
		})
		if err == nil {
			result = next
		}
		return err
	}

	for i := 0; i < maxUpdateAttempts; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		span.RecordError(err)
		if apperrors.KindOf(err) == "" {
			err = apperrors.Transient("failed to update booking session", err)
		}
		return result, err
	}
	return result, apperrors.Conflict("booking session is being modified concurrently")
}

func (r *RedisStore) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := r.tracer.Start(ctx, "wizard.delete_session")
	defer span.End()

	n, err := r.client.Del(ctx, sessionKey(id)).Result()
	if err != nil {
		span.RecordError(err)
		return apperrors.Transient("failed to delete booking session", err)
	}
	if n == 0 {
		return apperrors.NotFound("booking session")
	}
	return nil
}
