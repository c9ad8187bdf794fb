package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/tutoria-backend/internal/model"
	"github.com/stemsi/tutoria-backend/internal/repository"
)

// ClassRuleValidator holds the business rules shared by every admission and
// lifecycle path. Checks never mutate state; lookups go through the Queries
// of the caller's unit of work.
type ClassRuleValidator struct {
	now func() time.Time
}

// NewClassRuleValidator creates a validator reading time from now.
// A nil now uses the wall clock.
func NewClassRuleValidator(now func() time.Time) *ClassRuleValidator {
	if now == nil {
		now = time.Now
	}
	return &ClassRuleValidator{now: now}
}

// Now returns the validator's current time.
func (v *ClassRuleValidator) Now() time.Time {
	return v.now()
}

// RequireClass loads a class, locking its row for the rest of the unit of work.
func (v *ClassRuleValidator) RequireClass(ctx context.Context, q repository.ClassQueries, id uuid.UUID) (*model.ScheduledClass, error) {
	c, err := q.GetClassForUpdate(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrClassNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get class: %w", err)
	}
	return c, nil
}

// RequireLearner loads a learner.
func (v *ClassRuleValidator) RequireLearner(ctx context.Context, q repository.DirectoryQueries, id uuid.UUID) (*model.Learner, error) {
	l, err := q.GetLearner(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrLearnerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get learner: %w", err)
	}
	return l, nil
}

// RequireLearners loads every learner in ids, in the same order, failing with
// the list of ids that do not exist.
func (v *ClassRuleValidator) RequireLearners(ctx context.Context, q repository.DirectoryQueries, ids []uuid.UUID) ([]model.Learner, error) {
	found, err := q.ListLearners(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list learners: %w", err)
	}
	byID := make(map[uuid.UUID]model.Learner, len(found))
	for _, l := range found {
		byID[l.ID] = l
	}

	learners := make([]model.Learner, 0, len(ids))
	var missing []uuid.UUID
	for _, id := range ids {
		l, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		learners = append(learners, l)
	}
	if len(missing) > 0 {
		return nil, ErrLearnerNotFound.withDetail("%s", joinIDs(missing))
	}
	return learners, nil
}

// RequireInstructor fails unless the instructor exists.
func (v *ClassRuleValidator) RequireInstructor(ctx context.Context, q repository.DirectoryQueries, id uuid.UUID) error {
	ok, err := q.InstructorExists(ctx, id)
	if err != nil {
		return fmt.Errorf("check instructor: %w", err)
	}
	if !ok {
		return ErrInstructorNotFound
	}
	return nil
}

// RequireCourseProduct loads a product and checks it is a COURSE.
func (v *ClassRuleValidator) RequireCourseProduct(ctx context.Context, q repository.DirectoryQueries, id uuid.UUID) (*model.CourseProduct, error) {
	p, err := q.GetCourseProduct(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrCourseProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get course product: %w", err)
	}
	if p.Kind != model.ProductKindCourse {
		return nil, ErrNotCourseProduct
	}
	return p, nil
}

// ValidateSeatsMax fails unless the class has at least one seat.
func (v *ClassRuleValidator) ValidateSeatsMax(seatsMax int) error {
	if seatsMax <= 0 {
		return ErrInvalidSeats
	}
	return nil
}

// ValidateFutureSchedule fails unless startsAt is strictly after now.
func (v *ClassRuleValidator) ValidateFutureSchedule(startsAt time.Time) error {
	if !startsAt.After(v.now()) {
		return ErrScheduleInPast
	}
	return nil
}

// ValidateNotStarted fails once the class start time has been reached.
func (v *ClassRuleValidator) ValidateNotStarted(c *model.ScheduledClass) error {
	if !c.StartsAt.After(v.now()) {
		return ErrClassStarted
	}
	return nil
}

// ValidateClassActive fails for cancelled classes.
func (v *ClassRuleValidator) ValidateClassActive(c *model.ScheduledClass) error {
	if c.Cancelled() {
		return ErrClassCancelled
	}
	return nil
}

// ValidateCancellationPermission allows admins, and instructors on their own
// classes. Every other role is refused.
func (v *ClassRuleValidator) ValidateCancellationPermission(c *model.ScheduledClass, actorID uuid.UUID, role model.Role) error {
	return v.validateManager(c, actorID, role)
}

// ValidateRosterAccess applies the same matrix as cancellation to roster reads.
func (v *ClassRuleValidator) ValidateRosterAccess(c *model.ScheduledClass, actorID uuid.UUID, role model.Role) error {
	return v.validateManager(c, actorID, role)
}

func (v *ClassRuleValidator) validateManager(c *model.ScheduledClass, actorID uuid.UUID, role model.Role) error {
	switch role {
	case model.RoleAdmin:
		return nil
	case model.RoleInstructor:
		if c.OwnerID != actorID {
			return ErrNotYourClass
		}
		return nil
	default:
		return ErrRoleNotPermitted
	}
}

// ValidateCapacity fails when count seats do not fit in the free seats.
// Single reservations and bulk assignment both go through here.
func (v *ClassRuleValidator) ValidateCapacity(c *model.ScheduledClass, count int) error {
	free := c.SeatsFree()
	if count <= free {
		return nil
	}
	if free <= 0 {
		return ErrClassFull
	}
	return ErrCapacityExceeded.withDetail("requested %d, %d of %d seats free", count, free, c.SeatsMax)
}

// ValidateNotAlreadyReserved fails listing every learner that already holds a
// seat in the class.
func (v *ClassRuleValidator) ValidateNotAlreadyReserved(c *model.ScheduledClass, reserved []uuid.UUID) error {
	if len(reserved) == 0 {
		return nil
	}
	return ErrAlreadyReserved.withDetail("%s", joinIDs(reserved))
}

// ValidateLearnerOwnership fails unless the booker is the learner's guardian.
func (v *ClassRuleValidator) ValidateLearnerOwnership(l *model.Learner, bookerID uuid.UUID) error {
	if l.GuardianID != bookerID {
		return ErrNotYourLearner
	}
	return nil
}

// ValidateCourseMembership fails for course-restricted classes when the
// learner has no active membership.
func (v *ClassRuleValidator) ValidateCourseMembership(c *model.ScheduledClass, hasMembership bool) error {
	if c.CourseProductID != nil && !hasMembership {
		return ErrNotEnrolled
	}
	return nil
}

func joinIDs(ids []uuid.UUID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ", ")
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
