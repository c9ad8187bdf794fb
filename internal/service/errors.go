package service

import (
	"errors"
	"fmt"

	"github.com/stemsi/tutoria-backend/internal/repository"
)

// Kind is the category of a domain failure. The HTTP layer maps it to a
// status code; branches are told apart with errors.Is on the sentinels.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindForbidden
	KindInvalidInput
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	case KindForbidden:
		return "FORBIDDEN"
	case KindInvalidInput:
		return "INVALID_INPUT"
	default:
		return "UNKNOWN"
	}
}

// Error is a typed domain failure. Two Errors match under errors.Is when
// their codes match, so a sentinel still matches after details are added.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func (e *Error) withDetail(format string, args ...any) *Error {
	return &Error{
		Kind:    e.Kind,
		Code:    e.Code,
		Message: e.Message + ": " + fmt.Sprintf(format, args...),
	}
}

// KindOf returns the category of err, or KindUnknown for non-domain errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Not found.
var (
	ErrClassNotFound         = newError(KindNotFound, "CLASS_NOT_FOUND", "class not found")
	ErrLearnerNotFound       = newError(KindNotFound, "LEARNER_NOT_FOUND", "learner not found")
	ErrInstructorNotFound    = newError(KindNotFound, "INSTRUCTOR_NOT_FOUND", "instructor not found")
	ErrCourseProductNotFound = newError(KindNotFound, "COURSE_PRODUCT_NOT_FOUND", "course product not found")
	ErrReservationNotFound   = newError(KindNotFound, "RESERVATION_NOT_FOUND", "reservation not found")
)

// Conflicts with the current state.
var (
	ErrClassCancelled   = newError(KindConflict, "CLASS_CANCELLED", "class cancelled")
	ErrAlreadyCancelled = newError(KindConflict, "ALREADY_CANCELLED", "class already cancelled")
	ErrClassFull        = newError(KindConflict, "CLASS_FULL", "class full")
	ErrCapacityExceeded = newError(KindConflict, "CAPACITY_EXCEEDED", "capacity exceeded")
	ErrAlreadyReserved  = newError(KindConflict, "ALREADY_RESERVED", "already reserved")
	ErrClassBusy        = newError(KindConflict, "CLASS_BUSY", "class is busy, try again")
)

// storeError translates store failures callers can act on.
func storeError(err error) error {
	if errors.Is(err, repository.ErrLockTimeout) {
		return ErrClassBusy
	}
	return err
}

// Invalid input.
var (
	ErrClassStarted      = newError(KindInvalidInput, "CLASS_STARTED", "class already started")
	ErrReleaseAfterStart = newError(KindInvalidInput, "RELEASE_AFTER_START", "class already started; cannot cancel")
	ErrScheduleInPast    = newError(KindInvalidInput, "SCHEDULE_IN_PAST", "class must start in the future")
	ErrInvalidSeats      = newError(KindInvalidInput, "INVALID_SEATS", "seats max must be greater than zero")
	ErrNotCourseProduct  = newError(KindInvalidInput, "NOT_COURSE_PRODUCT", "product is not a course")
	ErrNotEnrolled       = newError(KindInvalidInput, "NOT_ENROLLED", "not enrolled in required course")
	ErrNoLearners        = newError(KindInvalidInput, "NO_LEARNERS", "no learners to assign")
)

// Forbidden.
var (
	ErrNotYourLearner     = newError(KindForbidden, "NOT_YOUR_LEARNER", "not your learner")
	ErrNotYourReservation = newError(KindForbidden, "NOT_YOUR_RESERVATION", "not your reservation")
	ErrNotYourClass       = newError(KindForbidden, "NOT_YOUR_CLASS", "not your class")
	ErrRoleNotPermitted   = newError(KindForbidden, "ROLE_NOT_PERMITTED", "role not permitted")
)
