package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stemsi/tutoria-backend/internal/model"
)

var (
	ErrNotFound             = errors.New("record not found")
	ErrDuplicateReservation = errors.New("learner already holds a seat in this class")
	ErrOccupancyBounds      = errors.New("seat occupancy out of bounds")
	// ErrLockTimeout means a row lock was not granted within lock_timeout.
	ErrLockTimeout = errors.New("timed out waiting for row lock")
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so the same
// repositories serve pooled reads and transactional writes.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ClassQueries reads and mutates scheduled classes.
type ClassQueries interface {
	GetClass(ctx context.Context, id uuid.UUID) (*model.ScheduledClass, error)
	// GetClassForUpdate returns the class and holds its row lock until the
	// surrounding transaction ends.
	GetClassForUpdate(ctx context.Context, id uuid.UUID) (*model.ScheduledClass, error)
	CreateClass(ctx context.Context, c *model.ScheduledClass) error
	// AddOccupancy shifts seats_occupied by delta and returns the updated
	// class. It fails with ErrOccupancyBounds instead of leaving 0..seats_max.
	AddOccupancy(ctx context.Context, id uuid.UUID, delta int) (*model.ScheduledClass, error)
	MarkCancelled(ctx context.Context, id uuid.UUID) (*model.ScheduledClass, error)
	DeleteClass(ctx context.Context, id uuid.UUID) (bool, error)
}

// ReservationQueries reads and mutates reservations.
type ReservationQueries interface {
	GetReservation(ctx context.Context, id uuid.UUID) (*model.Reservation, error)
	ListReservationsByClass(ctx context.Context, classID uuid.UUID) ([]model.Reservation, error)
	// ReservedLearnerIDs returns the subset of learnerIDs already holding a
	// seat in the class.
	ReservedLearnerIDs(ctx context.Context, classID uuid.UUID, learnerIDs []uuid.UUID) ([]uuid.UUID, error)
	CreateReservation(ctx context.Context, r *model.Reservation) error
	DeleteReservation(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteReservationsByClass(ctx context.Context, classID uuid.UUID) (int64, error)
}

// DirectoryQueries covers the people and catalog records the engine checks
// against. The Create methods exist for seeding.
type DirectoryQueries interface {
	GetLearner(ctx context.Context, id uuid.UUID) (*model.Learner, error)
	ListLearners(ctx context.Context, ids []uuid.UUID) ([]model.Learner, error)
	CreateLearner(ctx context.Context, l *model.Learner) error
	InstructorExists(ctx context.Context, id uuid.UUID) (bool, error)
	CreateInstructor(ctx context.Context, i *model.Instructor) error
	GetCourseProduct(ctx context.Context, id uuid.UUID) (*model.CourseProduct, error)
	CreateCourseProduct(ctx context.Context, p *model.CourseProduct) error
	HasActiveMembership(ctx context.Context, learnerID, productID uuid.UUID) (bool, error)
	CreateMembership(ctx context.Context, m *model.CourseMembership) error
}

// Queries is everything a unit of work can touch.
type Queries interface {
	ClassQueries
	ReservationQueries
	DirectoryQueries
}

// Store hands out Queries either inside an atomic unit of work or for plain
// reads. Reads outside WithTx are advisory and must not drive admission.
type Store interface {
	// WithTx runs fn in one transaction. Any error from fn, or a cancelled
	// ctx before commit, rolls everything back.
	WithTx(ctx context.Context, fn func(q Queries) error) error
	Read(ctx context.Context, fn func(q Queries) error) error
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// lockTimeout maps lock_not_available (55P03) to ErrLockTimeout.
func lockTimeout(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "55P03" {
		return fmt.Errorf("%w: %s", ErrLockTimeout, pgErr.Message)
	}
	return err
}
