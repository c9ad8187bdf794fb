package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/tutoria-backend/internal/model"
	"github.com/stemsi/tutoria-backend/internal/repository"
)

// ReservationService admits and releases single seats.
type ReservationService struct {
	store        repository.Store
	rules        *ClassRuleValidator
	availability AvailabilityPublisher
	log          zerolog.Logger
}

// NewReservationService creates a new ReservationService. A nil availability
// publisher disables snapshot updates.
func NewReservationService(
	store repository.Store,
	rules *ClassRuleValidator,
	availability AvailabilityPublisher,
	log zerolog.Logger,
) *ReservationService {
	if availability == nil {
		availability = nopAvailability{}
	}
	return &ReservationService{
		store:        store,
		rules:        rules,
		availability: availability,
		log:          log.With().Str("component", "reservation_service").Logger(),
	}
}

// ReserveSeat books one seat in a class for a learner on behalf of the
// learner's guardian. The decision is taken under the class row lock, so N
// concurrent calls on K free seats admit exactly min(N, K).
func (s *ReservationService) ReserveSeat(ctx context.Context, classID, bookerID, learnerID uuid.UUID, note *string) (*model.Reservation, error) {
	var (
		reservation *model.Reservation
		snapshot    *model.ScheduledClass
	)
	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		class, err := s.rules.RequireClass(ctx, q, classID)
		if err != nil {
			return err
		}
		if err := s.rules.ValidateClassActive(class); err != nil {
			return err
		}
		if err := s.rules.ValidateNotStarted(class); err != nil {
			return err
		}
		if err := s.rules.ValidateCapacity(class, 1); err != nil {
			return err
		}

		learner, err := s.rules.RequireLearner(ctx, q, learnerID)
		if err != nil {
			return err
		}
		if err := s.rules.ValidateLearnerOwnership(learner, bookerID); err != nil {
			return err
		}

		if class.CourseProductID != nil {
			ok, err := q.HasActiveMembership(ctx, learnerID, *class.CourseProductID)
			if err != nil {
				return fmt.Errorf("check membership: %w", err)
			}
			if err := s.rules.ValidateCourseMembership(class, ok); err != nil {
				return err
			}
		}

		reserved, err := q.ReservedLearnerIDs(ctx, classID, []uuid.UUID{learnerID})
		if err != nil {
			return fmt.Errorf("check existing reservation: %w", err)
		}
		if err := s.rules.ValidateNotAlreadyReserved(class, reserved); err != nil {
			return err
		}

		r := &model.Reservation{
			ClassID:   classID,
			LearnerID: learnerID,
			BookerID:  bookerID,
			Note:      note,
		}
		if err := q.CreateReservation(ctx, r); err != nil {
			if errors.Is(err, repository.ErrDuplicateReservation) {
				return ErrAlreadyReserved
			}
			return err
		}

		updated, err := q.AddOccupancy(ctx, classID, 1)
		if errors.Is(err, repository.ErrOccupancyBounds) {
			return ErrClassFull
		}
		if err != nil {
			return err
		}

		reservation, snapshot = r, updated
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}

	s.availability.Publish(detach(ctx), snapshot)
	s.log.Info().
		Str("class_id", classID.String()).
		Str("reservation_id", reservation.ID.String()).
		Int("seats_occupied", snapshot.SeatsOccupied).
		Msg("seat reserved")
	return reservation, nil
}

// ReleaseSeat gives a seat back. Only the booker that made the reservation may
// release it, and only before the class starts.
func (s *ReservationService) ReleaseSeat(ctx context.Context, reservationID, bookerID uuid.UUID) (*model.ReleaseConfirmation, error) {
	var (
		confirmation *model.ReleaseConfirmation
		snapshot     *model.ScheduledClass
	)
	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		r, err := q.GetReservation(ctx, reservationID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrReservationNotFound
		}
		if err != nil {
			return fmt.Errorf("get reservation: %w", err)
		}
		if r.BookerID != bookerID {
			return ErrNotYourReservation
		}

		class, err := s.rules.RequireClass(ctx, q, r.ClassID)
		if err != nil {
			return err
		}
		if err := s.rules.ValidateNotStarted(class); err != nil {
			return ErrReleaseAfterStart
		}
		// Rows of a cancelled class are history; the seat is already free.
		if err := s.rules.ValidateClassActive(class); err != nil {
			return err
		}

		deleted, err := q.DeleteReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if !deleted {
			return ErrReservationNotFound
		}

		if class.SeatsOccupied > 0 {
			updated, err := q.AddOccupancy(ctx, class.ID, -1)
			if err != nil {
				return err
			}
			class = updated
		}

		confirmation = &model.ReleaseConfirmation{
			ReservationID: reservationID,
			ClassID:       class.ID,
			SeatsOccupied: class.SeatsOccupied,
			ReleasedAt:    s.rules.Now().UTC(),
		}
		snapshot = class
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}

	s.availability.Publish(detach(ctx), snapshot)
	s.log.Info().
		Str("class_id", confirmation.ClassID.String()).
		Str("reservation_id", reservationID.String()).
		Int("seats_occupied", confirmation.SeatsOccupied).
		Msg("seat released")
	return confirmation, nil
}
