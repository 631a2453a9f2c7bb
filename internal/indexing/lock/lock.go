// Package lock serializes runs per index coordinate. A lease covers a set of
// keys and is acquired without blocking: if any key is held the whole
// acquisition fails with apperrors.ErrRunInProgress.
package lock

import (
	"context"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"
)

const keyPrefix = "index-sync:lock:"

// Locker hands out leases.
type Locker interface {
	Acquire(ctx context.Context, keys []string) (Lease, error)
}

// Lease is held until Release.
type Lease interface {
	Release(ctx context.Context) error
}

// ContentTypeKey locks the per-type index of a stage.
func ContentTypeKey(stage model.DataStage, contentType model.ContentType) string {
	return keyPrefix + string(stage) + ":" + string(contentType)
}

// IdentifiersKey locks the identifiers index of a stage.
func IdentifiersKey(stage model.DataStage) string {
	return keyPrefix + string(stage) + ":" + string(model.IdentifiersTarget)
}

// sortedUnique returns keys sorted with duplicates removed, so every caller
// acquires in the same order.
func sortedUnique(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
