package sitemap

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/logger"
)

// EventIndexRunCompleted is the event type published after a run changed the
// indexes of a stage.
const EventIndexRunCompleted = "IndexRunCompleted"

// RunCompleted is the payload of an EventIndexRunCompleted message.
type RunCompleted struct {
	Type       string    `json:"type"`
	Stage      string    `json:"stage"`
	RunID      string    `json:"runId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher publishes events.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// KafkaNotifier announces completed runs on a topic consumed by the sitemap
// service.
type KafkaNotifier struct {
	publisher Publisher
}

func NewKafkaNotifier(p Publisher) *KafkaNotifier {
	return &KafkaNotifier{publisher: p}
}

func (n *KafkaNotifier) Invalidate(ctx context.Context, stage model.DataStage) error {
	return n.publisher.Publish(ctx, kafka.Event{
		Key: string(stage),
		Value: RunCompleted{
			Type:       EventIndexRunCompleted,
			Stage:      string(stage),
			RunID:      logger.RunID(ctx),
			OccurredAt: time.Now().UTC(),
		},
	})
}

// DirectRefresher refreshes an in-process cache, for deployments that serve
// the sitemap from the indexer itself.
type DirectRefresher struct {
	cache *Cache
}

func NewDirectRefresher(cache *Cache) *DirectRefresher {
	return &DirectRefresher{cache: cache}
}

func (r *DirectRefresher) Invalidate(ctx context.Context, stage model.DataStage) error {
	if stage != model.StageReleased {
		return nil
	}
	return r.cache.Refresh(ctx)
}

// EventHandler returns a consumer callback that refreshes cache for every
// RELEASED run completion.
func EventHandler(cache *Cache) kafka.MessageHandler {
	log := slog.Default().With("component", "sitemap-events")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[RunCompleted](value)
		if err != nil {
			log.Warn("dropping malformed event", "error", err)
			return nil
		}
		if event.Type != EventIndexRunCompleted || event.Stage != string(model.StageReleased) {
			return nil
		}
		log.Info("released indexes changed, refreshing sitemap", "run_id", event.RunID)
		return cache.Refresh(ctx)
	}
}
