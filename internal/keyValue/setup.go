package keyValue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type entry struct {
	value   string
	expires time.Time
}

// Store is a small expiring string cache backed by redis, or by a local
// hashmap when running self contained.
type Store struct {
	sugar         *zap.SugaredLogger
	redisClient   *redis.Client
	selfContained bool

	mutex   sync.RWMutex
	hashmap map[string]entry
}

func New(ctx context.Context, sugar *zap.SugaredLogger, redisClient *redis.Client, selfContained bool) *Store {
	s := &Store{
		sugar:         sugar,
		redisClient:   redisClient,
		selfContained: selfContained,
		hashmap:       make(map[string]entry),
	}

	if selfContained {
		go s.checkForLocalExpiredKeys(ctx)
	}

	return s
}

func (s *Store) checkForLocalExpiredKeys(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mutex.Lock()
			for key, v := range s.hashmap {
				if v.expires.Before(time.Now()) {
					delete(s.hashmap, key)
				}
			}
			s.mutex.Unlock()
		}
	}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	debugText := fmt.Sprintf("Getting value of key [%s]", key)
	if s.selfContained {
		s.sugar.Debugf("%s from hashmap", debugText)

		s.mutex.RLock()
		defer s.mutex.RUnlock()

		v, ok := s.hashmap[key]
		if !ok || v.expires.Before(time.Now()) {
			return "", nil
		}
		return v.value, nil
	}

	s.sugar.Debugf("%s from redis", debugText)

	value, err := s.redisClient.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	} else if err != nil {
		return "", err
	}

	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value string, expires time.Duration) error {
	debugText := fmt.Sprintf("Setting value of key [%s] to [%s]", key, value)
	if s.selfContained {
		s.sugar.Debugf("%s in hashmap", debugText)

		s.mutex.Lock()
		defer s.mutex.Unlock()

		s.hashmap[key] = entry{value: value, expires: time.Now().Add(expires)}
		return nil
	}

	s.sugar.Debugf("%s in redis", debugText)
	return s.redisClient.Set(ctx, key, value, expires).Err()
}
