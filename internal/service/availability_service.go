package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/tutoria-backend/internal/config"
	"github.com/stemsi/tutoria-backend/internal/model"
	"github.com/stemsi/tutoria-backend/internal/repository"
)

// AvailabilityPublisher receives class state after a unit of work commits.
// Implementations are best effort and never fail the caller.
type AvailabilityPublisher interface {
	Publish(ctx context.Context, c *model.ScheduledClass)
	Evict(ctx context.Context, classID uuid.UUID)
}

// AvailabilityService keeps an advisory seat snapshot per class in Redis and
// fans it out on the class's seat channel. A nil Redis client disables the
// cache and the channel; Get then always reads the store.
type AvailabilityService struct {
	store repository.Store
	rdb   *redis.Client
	ttl   time.Duration
	now   func() time.Time
	log   zerolog.Logger
}

// NewAvailabilityService creates a new AvailabilityService.
func NewAvailabilityService(store repository.Store, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *AvailabilityService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &AvailabilityService{
		store: store,
		rdb:   rdb,
		ttl:   ttl,
		now:   time.Now,
		log:   log.With().Str("component", "availability").Logger(),
	}
}

// publishSnapshot stores a snapshot and announces it on the seat channel
// unless the cached one already carries the same or a newer version.
// KEYS: cache key, channel. ARGV: snapshot JSON, version, ttl in ms.
var publishSnapshot = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current then
	local cached = cjson.decode(current)
	if cached['version'] and tonumber(cached['version']) >= tonumber(ARGV[2]) then
		return 0
	end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
redis.call('PUBLISH', KEYS[2], ARGV[1])
return 1
`)

// Publish caches the snapshot of c and publishes it to subscribers. Commits
// on one class may reach Redis out of order; a snapshot older than the cached
// one is dropped.
func (s *AvailabilityService) Publish(ctx context.Context, c *model.ScheduledClass) {
	if s.rdb == nil || c == nil {
		return
	}
	raw, err := json.Marshal(model.AvailabilityOf(c, s.now()))
	if err != nil {
		s.log.Warn().Err(err).Str("class_id", c.ID.String()).Msg("marshal availability")
		return
	}

	keys := []string{
		config.CacheKey.ClassAvailabilityKey(c.ID.String()),
		config.CacheKey.ClassSeatsChannel(c.ID.String()),
	}
	written, err := publishSnapshot.Run(ctx, s.rdb, keys, raw, c.Version, s.ttl.Milliseconds()).Int()
	if err != nil {
		s.log.Warn().Err(err).Str("class_id", c.ID.String()).Msg("publish availability")
		return
	}
	if written == 0 {
		s.log.Debug().
			Str("class_id", c.ID.String()).
			Int64("version", c.Version).
			Msg("stale availability snapshot dropped")
	}
}

// Evict drops the cached snapshot of a purged class.
func (s *AvailabilityService) Evict(ctx context.Context, classID uuid.UUID) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, config.CacheKey.ClassAvailabilityKey(classID.String())).Err(); err != nil {
		s.log.Warn().Err(err).Str("class_id", classID.String()).Msg("evict availability")
	}
}

// Get returns the cached snapshot, falling back to the store on a miss.
// The result is advisory and may lag behind committed state.
func (s *AvailabilityService) Get(ctx context.Context, classID uuid.UUID) (*model.ClassAvailability, error) {
	if s.rdb != nil {
		raw, err := s.rdb.Get(ctx, config.CacheKey.ClassAvailabilityKey(classID.String())).Bytes()
		switch {
		case err == nil:
			var a model.ClassAvailability
			if err := json.Unmarshal(raw, &a); err == nil {
				return &a, nil
			}
		case !errors.Is(err, redis.Nil):
			s.log.Warn().Err(err).Str("class_id", classID.String()).Msg("read availability cache")
		}
	}

	var class *model.ScheduledClass
	err := s.store.Read(ctx, func(q repository.Queries) error {
		var err error
		class, err = q.GetClass(ctx, classID)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrClassNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get class: %w", err)
	}

	a := model.AvailabilityOf(class, s.now())
	if s.rdb != nil {
		if raw, err := json.Marshal(a); err == nil {
			if err := s.rdb.SetNX(ctx, config.CacheKey.ClassAvailabilityKey(classID.String()), raw, s.ttl).Err(); err != nil {
				s.log.Warn().Err(err).Str("class_id", classID.String()).Msg("fill availability cache")
			}
		}
	}
	return &a, nil
}

// Subscribe opens a subscription to a class's seat channel. It returns nil
// when Redis is disabled.
func (s *AvailabilityService) Subscribe(ctx context.Context, classID uuid.UUID) *redis.PubSub {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Subscribe(ctx, config.CacheKey.ClassSeatsChannel(classID.String()))
}

type nopAvailability struct{}

func (nopAvailability) Publish(context.Context, *model.ScheduledClass) {}
func (nopAvailability) Evict(context.Context, uuid.UUID)               {}
