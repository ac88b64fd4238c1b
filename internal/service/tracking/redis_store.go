// Package tracking persists the user's tracked-queries list in Redis and
// pushes change notifications to subscribers over pub/sub.
package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"PriceHunter/internal/domain/models"
	domrepo "PriceHunter/internal/domain/repository"
	"PriceHunter/pkg/logger"
)

// RedisStore implements TrackingStore on a Redis hash plus a pub/sub
// channel. Every mutation publishes a notification so watchers re-read the
// full list; the list is small so replaying it whole is cheaper than
// diffing.
type RedisStore struct {
	client *redis.Client
	prefix string
	user   string
	logger *logger.Logger
}

// NewRedisStore creates a tracking store scoped to one user. An empty user
// means tracking is effectively disabled: Watch emits a single empty list
// and mutations are rejected.
func NewRedisStore(client *redis.Client, prefix, user string, lgr *logger.Logger) domrepo.TrackingStore {
	if prefix == "" {
		prefix = "pricehunter"
	}
	return &RedisStore{client: client, prefix: prefix, user: user, logger: lgr}
}

func (s *RedisStore) hashKey() string {
	return fmt.Sprintf("%s:tracking:%s", s.prefix, s.user)
}

func (s *RedisStore) channel() string {
	return fmt.Sprintf("%s:tracking:%s:events", s.prefix, s.user)
}

// Track adds a query to the tracked list. Duplicate queries are allowed;
// each call creates a distinct item, matching list semantics.
func (s *RedisStore) Track(ctx context.Context, query string) error {
	if s.user == "" {
		return fmt.Errorf("tracking disabled: no user configured")
	}

	item := models.TrackedItem{
		ID:        uuid.NewString(),
		Query:     query,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal tracked item: %w", err)
	}

	if err := s.client.HSet(ctx, s.hashKey(), item.ID, data).Err(); err != nil {
		return fmt.Errorf("hset tracked item: %w", err)
	}
	s.notify(ctx, "track", item.ID)
	return nil
}

// Untrack removes a tracked item by its id.
func (s *RedisStore) Untrack(ctx context.Context, key string) error {
	if s.user == "" {
		return fmt.Errorf("tracking disabled: no user configured")
	}

	removed, err := s.client.HDel(ctx, s.hashKey(), key).Result()
	if err != nil {
		return fmt.Errorf("hdel tracked item: %w", err)
	}
	if removed == 0 {
		return models.ErrProductNotFound
	}
	s.notify(ctx, "untrack", key)
	return nil
}

// List returns all tracked items, oldest first.
func (s *RedisStore) List(ctx context.Context) ([]models.TrackedItem, error) {
	if s.user == "" {
		return []models.TrackedItem{}, nil
	}

	raw, err := s.client.HGetAll(ctx, s.hashKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall tracked items: %w", err)
	}

	items := make([]models.TrackedItem, 0, len(raw))
	for id, data := range raw {
		var item models.TrackedItem
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			s.logger.Warn("skipping malformed tracked item",
				logger.String("id", id),
				logger.Error(err))
			continue
		}
		items = append(items, item)
	}

	// Oldest first so the reconciler starts sessions in tracking order.
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

// Watch emits the current full tracked list immediately, then again after
// every change, until ctx is cancelled.
func (s *RedisStore) Watch(ctx context.Context) (<-chan []models.TrackedItem, error) {
	out := make(chan []models.TrackedItem, 1)

	if s.user == "" {
		out <- []models.TrackedItem{}
		close(out)
		return out, nil
	}

	sub := s.client.Subscribe(ctx, s.channel())
	// Force the subscription to be established before the initial replay so
	// no mutation can slip between them.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe tracking feed: %w", err)
	}

	initial, err := s.List(ctx)
	if err != nil {
		_ = sub.Close()
		return nil, err
	}
	out <- initial

	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				items, err := s.List(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					s.logger.Error("tracking feed re-list failed", logger.Error(err))
					continue
				}
				select {
				case out <- items:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (s *RedisStore) Close() error {
	return nil // client is shared, owned by the app
}

func (s *RedisStore) notify(ctx context.Context, op, id string) {
	payload := fmt.Sprintf(`{"op":%q,"id":%q}`, op, id)
	if err := s.client.Publish(ctx, s.channel(), payload).Err(); err != nil {
		s.logger.Warn("tracking notify failed",
			logger.String("op", op),
			logger.Error(err))
	}
}
