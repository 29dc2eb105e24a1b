package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// CachedRepository is a read-through Redis cache in front of a Repository.
// Cache failures fall back to the underlying repository.
type CachedRepository struct {
	next   Repository
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

func NewCachedRepository(next Repository, client *redis.Client, ttl time.Duration, logger zerolog.Logger) *CachedRepository {
	return &CachedRepository{next: next, client: client, ttl: ttl, logger: logger}
}

func hospitalCacheKey(id uuid.UUID) string { return fmt.Sprintf("directory:hospital:%s", id) }
func doctorCacheKey(id uuid.UUID) string   { return fmt.Sprintf("directory:doctor:%s", id) }
func hospitalDoctorsCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("directory:hospital:%s:doctors", id)
}

func (c *CachedRepository) GetHospital(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	var h Hospital
	if c.get(ctx, hospitalCacheKey(id), &h) {
		return &h, nil
	}
	fresh, err := c.next.GetHospital(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, hospitalCacheKey(id), fresh)
	return fresh, nil
}

func (c *CachedRepository) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	var d Doctor
	if c.get(ctx, doctorCacheKey(id), &d) {
		return &d, nil
	}
	fresh, err := c.next.GetDoctor(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, doctorCacheKey(id), fresh)
	return fresh, nil
}

func (c *CachedRepository) ListDoctorsForHospital(ctx context.Context, hospitalID uuid.UUID) ([]Doctor, error) {
	var ds []Doctor
	if c.get(ctx, hospitalDoctorsCacheKey(hospitalID), &ds) {
		return ds, nil
	}
	fresh, err := c.next.ListDoctorsForHospital(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	c.set(ctx, hospitalDoctorsCacheKey(hospitalID), fresh)
	return fresh, nil
}

func (c *CachedRepository) get(ctx context.Context, key string, dst interface{}) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("directory cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("discarding malformed directory cache entry")
		return false
	}
	return true
}

func (c *CachedRepository) set(ctx context.Context, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("directory cache write failed")
	}
}
