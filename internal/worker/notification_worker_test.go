package worker

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/tutoria-backend/internal/config"
	"github.com/stemsi/tutoria-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu       sync.Mutex
	err      error
	failures int // calls to fail before err applies
	attempts []int
	sent     []model.ClassCancelledNotification
}

func (p *fakePublisher) PublishClassCancelled(_ context.Context, n *model.ClassCancelledNotification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts = append(p.attempts, n.Attempts)
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, *n)
	return nil
}

func (p *fakePublisher) seen() (attempts []int, sent []model.ClassCancelledNotification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.attempts), slices.Clone(p.sent)
}

func (p *fakePublisher) Close() error { return nil }

func job(t *testing.T, attempts int) string {
	t.Helper()
	raw, err := json.Marshal(model.ClassCancelledNotification{
		ID:         uuid.New(),
		OwnerID:    uuid.New(),
		ClassID:    uuid.New(),
		ClassLabel: "Algebra - 2030-01-01 10:00",
		Attempts:   attempts,
	})
	require.NoError(t, err)
	return string(raw)
}

func TestNotificationWorkerHandle(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes job", func(t *testing.T) {
		pub := &fakePublisher{}
		w := NewNotificationWorker(nil, pub, zerolog.Nop())

		assert.Nil(t, w.handle(ctx, job(t, 0)))
		require.Len(t, pub.sent, 1)
		assert.Equal(t, "Algebra - 2030-01-01 10:00", pub.sent[0].ClassLabel)
	})

	t.Run("drops invalid payload", func(t *testing.T) {
		pub := &fakePublisher{}
		w := NewNotificationWorker(nil, pub, zerolog.Nop())

		assert.Nil(t, w.handle(ctx, "{not json"))
		assert.Empty(t, pub.sent)
	})

	t.Run("retries failed publish", func(t *testing.T) {
		w := NewNotificationWorker(nil, &fakePublisher{err: errors.New("broker down")}, zerolog.Nop())

		retry := w.handle(ctx, job(t, 0))
		require.NotNil(t, retry)
		assert.Equal(t, 1, retry.Attempts)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		w := NewNotificationWorker(nil, &fakePublisher{err: errors.New("broker down")}, zerolog.Nop())

		assert.Nil(t, w.handle(ctx, job(t, NotifyMaxAttempts-1)))
	})
}

// runWorker starts w against a queue already holding jobs and returns a stop
// function that waits for the loop to exit.
func runWorker(t *testing.T, w *NotificationWorker) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Start(ctx)
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Fatal("worker did not stop")
		}
	}
}

func TestNotificationWorkerStart(t *testing.T) {
	queue := config.WorkerKey.ClassNotificationsQueue

	tests := []struct {
		name         string
		failures     int
		wantAttempts []int
		wantSent     int
	}{
		{"delivers queued job", 0, []int{0}, 1},
		{"requeues after a failed publish", 1, []int{0, 1}, 1},
		{"drops job after max attempts", 100, []int{0, 1, 2}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr := miniredis.RunT(t)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			defer rdb.Close()

			raw := job(t, 0)
			_, err := mr.Push(queue, raw)
			require.NoError(t, err)

			pub := &fakePublisher{failures: tt.failures}
			stop := runWorker(t, NewNotificationWorker(rdb, pub, zerolog.Nop()))

			require.Eventually(t, func() bool {
				attempts, _ := pub.seen()
				return len(attempts) == len(tt.wantAttempts)
			}, 5*time.Second, 10*time.Millisecond)
			stop()

			attempts, sent := pub.seen()
			assert.Equal(t, tt.wantAttempts, attempts)
			require.Len(t, sent, tt.wantSent)
			assert.False(t, mr.Exists(queue))

			if tt.wantSent > 0 {
				var want model.ClassCancelledNotification
				require.NoError(t, json.Unmarshal([]byte(raw), &want))
				assert.Equal(t, want.ID, sent[0].ID)
				assert.Equal(t, want.ClassID, sent[0].ClassID)
			}
		})
	}
}
