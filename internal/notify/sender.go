// Package notify hands class events to the notification pipeline. Senders
// enqueue jobs in Redis; publishers deliver dequeued jobs to the broker.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/tutoria-backend/internal/config"
	"github.com/stemsi/tutoria-backend/internal/model"
)

// QueueSender enqueues cancellation jobs for the notification worker.
type QueueSender struct {
	rdb *redis.Client
	now func() time.Time
}

// NewQueueSender creates a new QueueSender.
func NewQueueSender(rdb *redis.Client) *QueueSender {
	return &QueueSender{rdb: rdb, now: time.Now}
}

// NotifyClassCancelled pushes a ClassCancelledNotification onto the queue.
func (s *QueueSender) NotifyClassCancelled(ctx context.Context, ownerID, classID uuid.UUID, label string) error {
	raw, err := json.Marshal(model.ClassCancelledNotification{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		ClassID:     classID,
		ClassLabel:  label,
		CancelledAt: s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.ClassNotificationsQueue, raw).Err(); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}
