package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/docvault/backend/internal/queue"
	"github.com/docvault/backend/internal/store"
)

// Reclaimer periodically resets documents whose processing lease expired,
// usually because a worker died mid-run, and queues them again.
type Reclaimer struct {
	docs     store.DocumentStore
	client   *queue.Client
	lease    time.Duration
	interval time.Duration
}

func NewReclaimer(docs store.DocumentStore, client *queue.Client, lease time.Duration) *Reclaimer {
	return &Reclaimer{
		docs:     docs,
		client:   client,
		lease:    lease,
		interval: lease / 3,
	}
}

func (r *Reclaimer) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reclaimer) sweep(ctx context.Context) {
	docs, err := r.docs.ReclaimStuck(ctx, r.lease)
	if err != nil {
		slog.Error("reclaim sweep failed", "error", err)
		return
	}
	for i := range docs {
		doc := &docs[i]
		if err := r.client.Schedule(ctx, doc); err != nil {
			slog.Error("failed to requeue reclaimed document", "document_id", doc.ID, "error", err)
			continue
		}
		slog.Warn("requeued stuck document", "document_id", doc.ID)
	}
}
