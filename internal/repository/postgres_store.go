package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore runs units of work as READ COMMITTED transactions. Admission
// decisions are serialized per class by the FOR UPDATE lock taken in
// GetClassForUpdate, not by the isolation level.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

type pgQueries struct {
	*ClassRepository
	*ReservationRepository
	*LearnerRepository
	*InstructorRepository
	*CourseRepository
}

func newPgQueries(db DBTX) *pgQueries {
	return &pgQueries{
		ClassRepository:       NewClassRepository(db),
		ReservationRepository: NewReservationRepository(db),
		LearnerRepository:     NewLearnerRepository(db),
		InstructorRepository:  NewInstructorRepository(db),
		CourseRepository:      NewCourseRepository(db),
	}
}

// WithTx implements Store.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(q Queries) error) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(newPgQueries(tx))
	})
	return lockTimeout(err)
}

// Read implements Store.
func (s *PostgresStore) Read(ctx context.Context, fn func(q Queries) error) error {
	return fn(newPgQueries(s.pool))
}
