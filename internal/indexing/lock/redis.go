package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/errors"
	pkgredis "github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/redis"
	"github.com/google/uuid"
)

// Redis is a Locker shared by every instance using the same Redis. Keys
// expire after ttl unless the holder is still alive to extend them.
type Redis struct {
	client *pkgredis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedis(client *pkgredis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 3 * time.Hour
	}
	return &Redis{
		client: client,
		ttl:    ttl,
		logger: slog.Default().With("component", "run-lock"),
	}
}

func (r *Redis) Acquire(ctx context.Context, keys []string) (Lease, error) {
	keys = sortedUnique(keys)
	token := uuid.NewString()
	acquired := make([]string, 0, len(keys))
	for _, k := range keys {
		ok, err := r.client.Acquire(ctx, k, token, r.ttl)
		if err == nil && !ok {
			err = fmt.Errorf("%w: %s is locked", apperrors.ErrRunInProgress, k)
		}
		if err != nil {
			r.releaseKeys(context.WithoutCancel(ctx), acquired, token)
			return nil, err
		}
		acquired = append(acquired, k)
	}

	lease := &redisLease{owner: r, keys: acquired, token: token, done: make(chan struct{})}
	go lease.keepAlive()
	return lease, nil
}

func (r *Redis) releaseKeys(ctx context.Context, keys []string, token string) error {
	var errs []error
	for _, k := range keys {
		released, err := r.client.Release(ctx, k, token)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !released {
			r.logger.Warn("lease expired before release", "key", k)
		}
	}
	return errors.Join(errs...)
}

type redisLease struct {
	owner *Redis
	keys  []string
	token string
	done  chan struct{}
	once  sync.Once
}

// keepAlive extends the keys every third of the ttl until release.
func (l *redisLease) keepAlive() {
	ticker := time.NewTicker(l.owner.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			for _, k := range l.keys {
				ok, err := l.owner.client.Extend(ctx, k, l.token, l.owner.ttl)
				if err != nil || !ok {
					l.owner.logger.Warn("failed to extend lease", "key", k, "error", err)
				}
			}
			cancel()
		}
	}
}

func (l *redisLease) Release(ctx context.Context) error {
	var err error
	l.once.Do(func() {
		close(l.done)
		err = l.owner.releaseKeys(ctx, l.keys, l.token)
	})
	return err
}
