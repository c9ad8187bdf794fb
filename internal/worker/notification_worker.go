package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/tutoria-backend/internal/config"
	"github.com/stemsi/tutoria-backend/internal/model"
	"github.com/stemsi/tutoria-backend/internal/notify"
)

const (
	NotifyPollTimeout = 1 * time.Second
	NotifyMaxAttempts = 3
	NotifySendTimeout = 5 * time.Second
)

// NotificationWorker drains the class notification queue into a Publisher.
type NotificationWorker struct {
	rdb       *redis.Client
	publisher notify.Publisher
	log       zerolog.Logger
}

func NewNotificationWorker(rdb *redis.Client, publisher notify.Publisher, log zerolog.Logger) *NotificationWorker {
	return &NotificationWorker{
		rdb:       rdb,
		publisher: publisher,
		log:       log.With().Str("component", "notification_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop
// ----------------------------------------------------------------

func (w *NotificationWorker) Start(ctx context.Context) {
	w.log.Info().Msg("NotificationWorker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. NotificationWorker stopped")
			return

		default:
			item, err := w.rdb.BLPop(ctx, NotifyPollTimeout, config.WorkerKey.ClassNotificationsQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			if n := w.handle(ctx, item[1]); n != nil {
				w.requeue(ctx, n)
			}
		}
	}
}

// handle publishes one raw job. It returns the job when it should be retried.
func (w *NotificationWorker) handle(ctx context.Context, raw string) *model.ClassCancelledNotification {
	var n model.ClassCancelledNotification
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		w.log.Error().Err(err).Msg("Invalid JSON payload")
		return nil
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), NotifySendTimeout)
	defer cancel()

	err := w.publisher.PublishClassCancelled(sendCtx, &n)
	if err == nil {
		return nil
	}

	n.Attempts++
	logEvt := w.log.Warn()
	if n.Attempts >= NotifyMaxAttempts {
		logEvt = w.log.Error()
	}
	logEvt.Err(err).
		Str("notification_id", n.ID.String()).
		Str("class_id", n.ClassID.String()).
		Int("attempts", n.Attempts).
		Msg("publish notification failed")

	if n.Attempts >= NotifyMaxAttempts {
		return nil
	}
	return &n
}

func (w *NotificationWorker) requeue(ctx context.Context, n *model.ClassCancelledNotification) {
	raw, err := json.Marshal(n)
	if err != nil {
		return
	}
	if err := w.rdb.RPush(context.WithoutCancel(ctx), config.WorkerKey.ClassNotificationsQueue, raw).Err(); err != nil {
		w.log.Error().Err(err).Str("notification_id", n.ID.String()).Msg("requeue notification failed")
	}
}
