package lock

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/errors"
)

// Local is an in-process Locker for single-instance deployments.
type Local struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocal() *Local {
	return &Local{held: make(map[string]struct{})}
}

func (l *Local) Acquire(ctx context.Context, keys []string) (Lease, error) {
	keys = sortedUnique(keys)
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, k := range keys {
		if _, ok := l.held[k]; ok {
			return nil, fmt.Errorf("%w: %s is locked", apperrors.ErrRunInProgress, k)
		}
	}
	for _, k := range keys {
		l.held[k] = struct{}{}
	}
	return &localLease{owner: l, keys: keys}, nil
}

type localLease struct {
	owner *Local
	keys  []string
	once  sync.Once
}

func (l *localLease) Release(ctx context.Context) error {
	l.once.Do(func() {
		l.owner.mu.Lock()
		defer l.owner.mu.Unlock()
		for _, k := range l.keys {
			delete(l.owner.held, k)
		}
	})
	return nil
}
