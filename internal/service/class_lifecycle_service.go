package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/tutoria-backend/internal/model"
	"github.com/stemsi/tutoria-backend/internal/repository"
)

// AssignedByAdminNote is stored on reservations created by bulk assignment.
const AssignedByAdminNote = "assigned by administrator"

const notifyTimeout = 5 * time.Second

// CancellationNotifier is told about cancelled classes once the
// cancellation has committed.
type CancellationNotifier interface {
	NotifyClassCancelled(ctx context.Context, ownerID, classID uuid.UUID, label string) error
}

// ClassLifecycleService schedules, cancels, purges and bulk-fills classes.
type ClassLifecycleService struct {
	store        repository.Store
	rules        *ClassRuleValidator
	notifier     CancellationNotifier
	availability AvailabilityPublisher
	log          zerolog.Logger
}

// NewClassLifecycleService creates a new ClassLifecycleService.
func NewClassLifecycleService(
	store repository.Store,
	rules *ClassRuleValidator,
	notifier CancellationNotifier,
	availability AvailabilityPublisher,
	log zerolog.Logger,
) *ClassLifecycleService {
	if availability == nil {
		availability = nopAvailability{}
	}
	return &ClassLifecycleService{
		store:        store,
		rules:        rules,
		notifier:     notifier,
		availability: availability,
		log:          log.With().Str("component", "class_lifecycle_service").Logger(),
	}
}

// GetClass returns the current state of a class.
func (s *ClassLifecycleService) GetClass(ctx context.Context, classID uuid.UUID) (*model.ScheduledClass, error) {
	var class *model.ScheduledClass
	err := s.store.Read(ctx, func(q repository.Queries) error {
		var err error
		class, err = q.GetClass(ctx, classID)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrClassNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get class: %w", err)
	}
	return class, nil
}

// ScheduleClass creates a new SCHEDULED class with every seat free.
func (s *ClassLifecycleService) ScheduleClass(ctx context.Context, req *model.ScheduleClassRequest) (*model.ScheduledClass, error) {
	if err := s.rules.ValidateSeatsMax(req.SeatsMax); err != nil {
		return nil, err
	}
	if err := s.rules.ValidateFutureSchedule(req.StartsAt); err != nil {
		return nil, err
	}

	class := &model.ScheduledClass{
		Name:            req.Name,
		OwnerID:         req.OwnerID,
		CourseProductID: req.CourseProductID,
		StartsAt:        req.StartsAt.UTC(),
		DurationMinutes: req.DurationMinutes,
		SeatsMax:        req.SeatsMax,
	}
	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		if err := s.rules.RequireInstructor(ctx, q, req.OwnerID); err != nil {
			return err
		}
		if req.CourseProductID != nil {
			if _, err := s.rules.RequireCourseProduct(ctx, q, *req.CourseProductID); err != nil {
				return err
			}
		}
		return q.CreateClass(ctx, class)
	})
	if err != nil {
		return nil, storeError(err)
	}

	s.availability.Publish(detach(ctx), class)
	s.log.Info().Str("class_id", class.ID.String()).Int("seats_max", class.SeatsMax).Msg("class scheduled")
	return class, nil
}

// CancelClass moves a class to CANCELLED and frees its seats. Reservation rows
// stay as history. The owner is notified after commit; a failed notification
// is logged and never returned.
func (s *ClassLifecycleService) CancelClass(ctx context.Context, classID, actorID uuid.UUID, role model.Role) (*model.ScheduledClass, error) {
	var (
		cancelled *model.ScheduledClass
		affected  int
	)
	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		class, err := s.rules.RequireClass(ctx, q, classID)
		if err != nil {
			return err
		}
		reservations, err := q.ListReservationsByClass(ctx, classID)
		if err != nil {
			return fmt.Errorf("list reservations: %w", err)
		}
		if class.Cancelled() {
			return ErrAlreadyCancelled
		}
		if err := s.rules.ValidateCancellationPermission(class, actorID, role); err != nil {
			return err
		}

		cancelled, err = q.MarkCancelled(ctx, classID)
		if err != nil {
			return fmt.Errorf("mark cancelled: %w", err)
		}
		affected = len(reservations)
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}

	s.log.Info().
		Str("class_id", classID.String()).
		Str("actor_id", actorID.String()).
		Str("role", string(role)).
		Int("affected_reservations", affected).
		Msg("class cancelled")

	bg := detach(ctx)
	s.availability.Publish(bg, cancelled)
	s.notifyCancelled(bg, cancelled)
	return cancelled, nil
}

func (s *ClassLifecycleService) notifyCancelled(ctx context.Context, class *model.ScheduledClass) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	if err := s.notifier.NotifyClassCancelled(ctx, class.OwnerID, class.ID, class.Label()); err != nil {
		s.log.Warn().
			Err(err).
			Str("class_id", class.ID.String()).
			Str("owner_id", class.OwnerID.String()).
			Msg("cancellation notification failed")
	}
}

// AssignLearners reserves one seat per learner in a single unit of work,
// booked in each learner's guardian's name. Either every learner gets a seat
// or none does.
func (s *ClassLifecycleService) AssignLearners(ctx context.Context, classID uuid.UUID, learnerIDs []uuid.UUID) ([]model.Reservation, error) {
	var (
		created  []model.Reservation
		snapshot *model.ScheduledClass
	)
	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		class, err := s.rules.RequireClass(ctx, q, classID)
		if err != nil {
			return err
		}
		if err := s.rules.ValidateClassActive(class); err != nil {
			return err
		}

		ids := dedupeIDs(learnerIDs)
		if len(ids) == 0 {
			return ErrNoLearners
		}
		if err := s.rules.ValidateCapacity(class, len(ids)); err != nil {
			return err
		}

		learners, err := s.rules.RequireLearners(ctx, q, ids)
		if err != nil {
			return err
		}
		reserved, err := q.ReservedLearnerIDs(ctx, classID, ids)
		if err != nil {
			return fmt.Errorf("check existing reservations: %w", err)
		}
		if err := s.rules.ValidateNotAlreadyReserved(class, reserved); err != nil {
			return err
		}

		note := AssignedByAdminNote
		created = make([]model.Reservation, 0, len(learners))
		for _, l := range learners {
			r := model.Reservation{
				ClassID:   classID,
				LearnerID: l.ID,
				BookerID:  l.GuardianID,
				Note:      &note,
			}
			if err := q.CreateReservation(ctx, &r); err != nil {
				if errors.Is(err, repository.ErrDuplicateReservation) {
					return ErrAlreadyReserved.withDetail("%s", l.ID)
				}
				return err
			}
			created = append(created, r)
		}

		updated, err := q.AddOccupancy(ctx, classID, len(created))
		if errors.Is(err, repository.ErrOccupancyBounds) {
			return ErrCapacityExceeded
		}
		if err != nil {
			return err
		}
		snapshot = updated
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}

	s.availability.Publish(detach(ctx), snapshot)
	s.log.Info().
		Str("class_id", classID.String()).
		Int("assigned", len(created)).
		Int("seats_occupied", snapshot.SeatsOccupied).
		Msg("learners assigned")
	return created, nil
}

// PurgeClass deletes a class together with all its reservations.
func (s *ClassLifecycleService) PurgeClass(ctx context.Context, classID uuid.UUID) (*model.PurgeClassResponse, error) {
	var purged int64
	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		if _, err := s.rules.RequireClass(ctx, q, classID); err != nil {
			return err
		}
		n, err := q.DeleteReservationsByClass(ctx, classID)
		if err != nil {
			return err
		}
		if _, err := q.DeleteClass(ctx, classID); err != nil {
			return err
		}
		purged = n
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}

	s.availability.Evict(detach(ctx), classID)
	s.log.Info().Str("class_id", classID.String()).Int64("purged_reservations", purged).Msg("class purged")
	return &model.PurgeClassResponse{ClassID: classID, PurgedReservations: purged}, nil
}

// Roster returns a class with every reservation row it owns.
func (s *ClassLifecycleService) Roster(ctx context.Context, classID, actorID uuid.UUID, role model.Role) (*model.ClassRoster, error) {
	var roster *model.ClassRoster
	err := s.store.Read(ctx, func(q repository.Queries) error {
		class, err := q.GetClass(ctx, classID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrClassNotFound
		}
		if err != nil {
			return fmt.Errorf("get class: %w", err)
		}
		if err := s.rules.ValidateRosterAccess(class, actorID, role); err != nil {
			return err
		}
		reservations, err := q.ListReservationsByClass(ctx, classID)
		if err != nil {
			return fmt.Errorf("list reservations: %w", err)
		}
		roster = &model.ClassRoster{
			Class:        *class,
			SeatsFree:    class.SeatsFree(),
			Reservations: reservations,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return roster, nil
}

// detach keeps request values for post-commit side effects but drops the
// request's cancellation; the committed operation is already final.
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
