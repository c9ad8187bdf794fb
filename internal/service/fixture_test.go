package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/tutoria-backend/internal/model"
	"github.com/stemsi/tutoria-backend/internal/repository"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store        *repository.MemoryStore
	rules        *ClassRuleValidator
	reservations *ReservationService
	lifecycle    *ClassLifecycleService
	notifier     *recordingNotifier
	instructorID uuid.UUID
	guardianID   uuid.UUID
}

type recordingNotifier struct {
	mu    sync.Mutex
	err   error
	calls []uuid.UUID
}

func (n *recordingNotifier) NotifyClassCancelled(_ context.Context, _, classID uuid.UUID, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, classID)
	return n.err
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	rules := NewClassRuleValidator(func() time.Time { return testNow })
	notifier := &recordingNotifier{}

	f := &fixture{
		store:        store,
		rules:        rules,
		reservations: NewReservationService(store, rules, nil, zerolog.Nop()),
		lifecycle:    NewClassLifecycleService(store, rules, notifier, nil, zerolog.Nop()),
		notifier:     notifier,
		instructorID: uuid.New(),
		guardianID:   uuid.New(),
	}
	require.NoError(t, store.WithTx(context.Background(), func(q repository.Queries) error {
		return q.CreateInstructor(context.Background(), &model.Instructor{ID: f.instructorID, Name: "Ada"})
	}))
	return f
}

// addLearners creates n learners under guardian.
func (f *fixture) addLearners(t *testing.T, guardian uuid.UUID, n int) []uuid.UUID {
	t.Helper()
	ctx := context.Background()
	ids := make([]uuid.UUID, n)
	require.NoError(t, f.store.WithTx(ctx, func(q repository.Queries) error {
		for i := range ids {
			l := &model.Learner{GuardianID: guardian, Name: "learner"}
			if err := q.CreateLearner(ctx, l); err != nil {
				return err
			}
			ids[i] = l.ID
		}
		return nil
	}))
	return ids
}

// addClass creates a class starting at testNow+startsIn with occupied seats
// already held by fresh learners.
func (f *fixture) addClass(t *testing.T, seatsMax, occupied int, startsIn time.Duration) *model.ScheduledClass {
	t.Helper()
	ctx := context.Background()
	c := &model.ScheduledClass{
		Name:            "Algebra",
		OwnerID:         f.instructorID,
		StartsAt:        testNow.Add(startsIn),
		DurationMinutes: 60,
		SeatsMax:        seatsMax,
	}
	holders := f.addLearners(t, uuid.New(), occupied)
	require.NoError(t, f.store.WithTx(ctx, func(q repository.Queries) error {
		if err := q.CreateClass(ctx, c); err != nil {
			return err
		}
		for _, id := range holders {
			if err := q.CreateReservation(ctx, &model.Reservation{ClassID: c.ID, LearnerID: id, BookerID: uuid.New()}); err != nil {
				return err
			}
		}
		if occupied > 0 {
			updated, err := q.AddOccupancy(ctx, c.ID, occupied)
			if err != nil {
				return err
			}
			*c = *updated
			return nil
		}
		return nil
	}))
	return c
}

func (f *fixture) class(t *testing.T, id uuid.UUID) *model.ScheduledClass {
	t.Helper()
	var c *model.ScheduledClass
	require.NoError(t, f.store.Read(context.Background(), func(q repository.Queries) error {
		var err error
		c, err = q.GetClass(context.Background(), id)
		return err
	}))
	return c
}

// findClass is class without the existence requirement; it returns nil for
// unknown ids.
func (f *fixture) findClass(t *testing.T, id uuid.UUID) *model.ScheduledClass {
	t.Helper()
	var c *model.ScheduledClass
	err := f.store.Read(context.Background(), func(q repository.Queries) error {
		var err error
		c, err = q.GetClass(context.Background(), id)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	require.NoError(t, err)
	return c
}

func (f *fixture) reservationCount(t *testing.T, classID uuid.UUID) int {
	t.Helper()
	var n int
	require.NoError(t, f.store.Read(context.Background(), func(q repository.Queries) error {
		res, err := q.ListReservationsByClass(context.Background(), classID)
		n = len(res)
		return err
	}))
	return n
}
