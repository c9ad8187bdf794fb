package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/tutoria-backend/internal/model"
	"github.com/stemsi/tutoria-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveSeat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	learner := f.addLearners(t, f.guardianID, 1)[0]
	class := f.addClass(t, 3, 1, time.Hour)
	note := "bring a calculator"

	res, err := f.reservations.ReserveSeat(ctx, class.ID, f.guardianID, learner, &note)
	require.NoError(t, err)
	assert.Equal(t, class.ID, res.ClassID)
	assert.Equal(t, learner, res.LearnerID)
	assert.Equal(t, f.guardianID, res.BookerID)
	assert.Equal(t, &note, res.Note)

	got := f.class(t, class.ID)
	assert.Equal(t, 2, got.SeatsOccupied)
	assert.Equal(t, 2, f.reservationCount(t, class.ID))
}

func TestReserveSeatRejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		setup   func(t *testing.T, f *fixture) (classID, bookerID, learnerID uuid.UUID)
		wantErr error
		kind    Kind
	}{
		{
			name: "missing class",
			setup: func(t *testing.T, f *fixture) (uuid.UUID, uuid.UUID, uuid.UUID) {
				return uuid.New(), f.guardianID, f.addLearners(t, f.guardianID, 1)[0]
			},
			wantErr: ErrClassNotFound,
			kind:    KindNotFound,
		},
		{
			name: "cancelled class",
			setup: func(t *testing.T, f *fixture) (uuid.UUID, uuid.UUID, uuid.UUID) {
				c := f.addClass(t, 3, 0, time.Hour)
				_, err := f.lifecycle.CancelClass(ctx, c.ID, uuid.New(), model.RoleAdmin)
				require.NoError(t, err)
				return c.ID, f.guardianID, f.addLearners(t, f.guardianID, 1)[0]
			},
			wantErr: ErrClassCancelled,
			kind:    KindConflict,
		},
		{
			name: "class already started",
			setup: func(t *testing.T, f *fixture) (uuid.UUID, uuid.UUID, uuid.UUID) {
				return f.addClass(t, 3, 0, -time.Minute).ID, f.guardianID, f.addLearners(t, f.guardianID, 1)[0]
			},
			wantErr: ErrClassStarted,
			kind:    KindInvalidInput,
		},
		{
			name: "class starting now",
			setup: func(t *testing.T, f *fixture) (uuid.UUID, uuid.UUID, uuid.UUID) {
				return f.addClass(t, 3, 0, 0).ID, f.guardianID, f.addLearners(t, f.guardianID, 1)[0]
			},
			wantErr: ErrClassStarted,
			kind:    KindInvalidInput,
		},
		{
			name: "class full",
			setup: func(t *testing.T, f *fixture) (uuid.UUID, uuid.UUID, uuid.UUID) {
				return f.addClass(t, 2, 2, time.Hour).ID, f.guardianID, f.addLearners(t, f.guardianID, 1)[0]
			},
			wantErr: ErrClassFull,
			kind:    KindConflict,
		},
		{
			name: "missing learner",
			setup: func(t *testing.T, f *fixture) (uuid.UUID, uuid.UUID, uuid.UUID) {
				return f.addClass(t, 3, 0, time.Hour).ID, f.guardianID, uuid.New()
			},
			wantErr: ErrLearnerNotFound,
			kind:    KindNotFound,
		},
		{
			name: "learner of another guardian",
			setup: func(t *testing.T, f *fixture) (uuid.UUID, uuid.UUID, uuid.UUID) {
				return f.addClass(t, 3, 0, time.Hour).ID, f.guardianID, f.addLearners(t, uuid.New(), 1)[0]
			},
			wantErr: ErrNotYourLearner,
			kind:    KindForbidden,
		},
		{
			name: "not enrolled in course",
			setup: func(t *testing.T, f *fixture) (uuid.UUID, uuid.UUID, uuid.UUID) {
				product := &model.CourseProduct{Name: "Calculus", Kind: model.ProductKindCourse}
				require.NoError(t, f.store.WithTx(ctx, func(q repository.Queries) error {
					return q.CreateCourseProduct(ctx, product)
				}))
				c, err := f.lifecycle.ScheduleClass(ctx, &model.ScheduleClassRequest{
					Name:            "Calculus I",
					OwnerID:         f.instructorID,
					CourseProductID: &product.ID,
					StartsAt:        testNow.Add(time.Hour),
					DurationMinutes: 60,
					SeatsMax:        3,
				})
				require.NoError(t, err)
				return c.ID, f.guardianID, f.addLearners(t, f.guardianID, 1)[0]
			},
			wantErr: ErrNotEnrolled,
			kind:    KindInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			classID, bookerID, learnerID := tt.setup(t, f)

			before := f.findClass(t, classID)
			countBefore := f.reservationCount(t, classID)

			res, err := f.reservations.ReserveSeat(ctx, classID, bookerID, learnerID, nil)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.kind, KindOf(err))

			// A rejected reserve leaves no trace.
			assert.Equal(t, before, f.findClass(t, classID))
			assert.Equal(t, countBefore, f.reservationCount(t, classID))
		})
	}
}

func TestReserveSeatCourseMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	learner := f.addLearners(t, f.guardianID, 1)[0]
	product := &model.CourseProduct{Name: "Calculus", Kind: model.ProductKindCourse}
	require.NoError(t, f.store.WithTx(ctx, func(q repository.Queries) error {
		if err := q.CreateCourseProduct(ctx, product); err != nil {
			return err
		}
		return q.CreateMembership(ctx, &model.CourseMembership{LearnerID: learner, ProductID: product.ID, Status: model.MembershipStatusActive})
	}))

	class, err := f.lifecycle.ScheduleClass(ctx, &model.ScheduleClassRequest{
		Name:            "Calculus I",
		OwnerID:         f.instructorID,
		CourseProductID: &product.ID,
		StartsAt:        testNow.Add(48 * time.Hour),
		DurationMinutes: 90,
		SeatsMax:        4,
	})
	require.NoError(t, err)

	_, err = f.reservations.ReserveSeat(ctx, class.ID, f.guardianID, learner, nil)
	assert.NoError(t, err)
}

func TestReserveSeatTwiceIsAlreadyReserved(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	learner := f.addLearners(t, f.guardianID, 1)[0]
	class := f.addClass(t, 3, 0, time.Hour)

	_, err := f.reservations.ReserveSeat(ctx, class.ID, f.guardianID, learner, nil)
	require.NoError(t, err)

	_, err = f.reservations.ReserveSeat(ctx, class.ID, f.guardianID, learner, nil)
	assert.ErrorIs(t, err, ErrAlreadyReserved)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, 1, f.class(t, class.ID).SeatsOccupied)
}

func TestReserveLastSeatUnderContention(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	learners := f.addLearners(t, f.guardianID, 2)
	class := f.addClass(t, 10, 9, time.Hour)

	var ok, full atomic.Int32
	var wg sync.WaitGroup
	for _, id := range learners {
		wg.Add(1)
		go func(learnerID uuid.UUID) {
			defer wg.Done()
			_, err := f.reservations.ReserveSeat(ctx, class.ID, f.guardianID, learnerID, nil)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrClassFull):
				full.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(1), full.Load())
	assert.Equal(t, 10, f.class(t, class.ID).SeatsOccupied)
	assert.Equal(t, 10, f.reservationCount(t, class.ID))
}

func TestReserveNeverOversells(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	learners := f.addLearners(t, f.guardianID, 10)
	class := f.addClass(t, 10, 5, time.Hour)

	var ok atomic.Int32
	var wg sync.WaitGroup
	for _, id := range learners {
		wg.Add(1)
		go func(learnerID uuid.UUID) {
			defer wg.Done()
			if _, err := f.reservations.ReserveSeat(ctx, class.ID, f.guardianID, learnerID, nil); err == nil {
				ok.Add(1)
			} else {
				assert.ErrorIs(t, err, ErrClassFull)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, int32(5), ok.Load())
	assert.Equal(t, 10, f.class(t, class.ID).SeatsOccupied)
	assert.Equal(t, 10, f.reservationCount(t, class.ID))
}

func TestReserveRandomizedContention(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(42, 7))

	for round := 0; round < 20; round++ {
		f := newFixture(t)
		seatsMax := 1 + rng.IntN(8)
		occupied := rng.IntN(seatsMax + 1)
		callers := 1 + rng.IntN(16)
		learners := f.addLearners(t, f.guardianID, callers)
		class := f.addClass(t, seatsMax, occupied, time.Hour)

		var ok atomic.Int32
		var wg sync.WaitGroup
		for _, id := range learners {
			wg.Add(1)
			go func(learnerID uuid.UUID) {
				defer wg.Done()
				if _, err := f.reservations.ReserveSeat(ctx, class.ID, f.guardianID, learnerID, nil); err == nil {
					ok.Add(1)
				}
			}(id)
		}
		wg.Wait()

		free := seatsMax - occupied
		assert.Equal(t, int32(min(callers, free)), ok.Load(), "round %d", round)
		got := f.class(t, class.ID)
		assert.LessOrEqual(t, got.SeatsOccupied, got.SeatsMax)
		assert.Equal(t, f.reservationCount(t, class.ID), got.SeatsOccupied)
	}
}

func TestReleaseSeat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	learner := f.addLearners(t, f.guardianID, 1)[0]
	class := f.addClass(t, 3, 1, time.Hour)

	res, err := f.reservations.ReserveSeat(ctx, class.ID, f.guardianID, learner, nil)
	require.NoError(t, err)

	conf, err := f.reservations.ReleaseSeat(ctx, res.ID, f.guardianID)
	require.NoError(t, err)
	assert.Equal(t, res.ID, conf.ReservationID)
	assert.Equal(t, class.ID, conf.ClassID)
	assert.Equal(t, 1, conf.SeatsOccupied)
	assert.Equal(t, testNow, conf.ReleasedAt)
	assert.Equal(t, 1, f.reservationCount(t, class.ID))

	_, err = f.reservations.ReleaseSeat(ctx, res.ID, f.guardianID)
	assert.ErrorIs(t, err, ErrReservationNotFound)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, 1, f.class(t, class.ID).SeatsOccupied)
}

func TestReleaseSeatRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong booker", func(t *testing.T) {
		f := newFixture(t)
		learner := f.addLearners(t, f.guardianID, 1)[0]
		class := f.addClass(t, 3, 0, time.Hour)
		res, err := f.reservations.ReserveSeat(ctx, class.ID, f.guardianID, learner, nil)
		require.NoError(t, err)

		_, err = f.reservations.ReleaseSeat(ctx, res.ID, uuid.New())
		assert.ErrorIs(t, err, ErrNotYourReservation)
		assert.Equal(t, KindForbidden, KindOf(err))
		assert.Equal(t, 1, f.class(t, class.ID).SeatsOccupied)
	})

	t.Run("class already started", func(t *testing.T) {
		f := newFixture(t)
		class := f.addClass(t, 3, 0, -time.Minute)
		res := &model.Reservation{ClassID: class.ID, LearnerID: uuid.New(), BookerID: f.guardianID}
		require.NoError(t, f.store.WithTx(ctx, func(q repository.Queries) error {
			if err := q.CreateReservation(ctx, res); err != nil {
				return err
			}
			_, err := q.AddOccupancy(ctx, class.ID, 1)
			return err
		}))

		_, err := f.reservations.ReleaseSeat(ctx, res.ID, f.guardianID)
		assert.ErrorIs(t, err, ErrReleaseAfterStart)
		assert.Equal(t, "class already started; cannot cancel", err.Error())
		assert.Equal(t, 1, f.class(t, class.ID).SeatsOccupied)
		assert.Equal(t, 1, f.reservationCount(t, class.ID))
	})

	t.Run("cancelled class", func(t *testing.T) {
		f := newFixture(t)
		learner := f.addLearners(t, f.guardianID, 1)[0]
		class := f.addClass(t, 3, 0, time.Hour)
		res, err := f.reservations.ReserveSeat(ctx, class.ID, f.guardianID, learner, nil)
		require.NoError(t, err)
		_, err = f.lifecycle.CancelClass(ctx, class.ID, uuid.New(), model.RoleAdmin)
		require.NoError(t, err)

		_, err = f.reservations.ReleaseSeat(ctx, res.ID, f.guardianID)
		assert.ErrorIs(t, err, ErrClassCancelled)
		assert.Zero(t, f.class(t, class.ID).SeatsOccupied)
		assert.Equal(t, 1, f.reservationCount(t, class.ID))
	})
}

func TestConcurrentReleaseOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	learner := f.addLearners(t, f.guardianID, 1)[0]
	class := f.addClass(t, 3, 0, time.Hour)
	res, err := f.reservations.ReserveSeat(ctx, class.ID, f.guardianID, learner, nil)
	require.NoError(t, err)

	var ok, notFound atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.reservations.ReleaseSeat(ctx, res.ID, f.guardianID)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrReservationNotFound):
				notFound.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(3), notFound.Load())
	assert.Zero(t, f.class(t, class.ID).SeatsOccupied)
}

func TestReserveSeatCancelledContextLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	learner := f.addLearners(t, f.guardianID, 1)[0]
	class := f.addClass(t, 3, 0, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.reservations.ReserveSeat(ctx, class.ID, f.guardianID, learner, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.class(t, class.ID).SeatsOccupied)
	assert.Zero(t, f.reservationCount(t, class.ID))
}
