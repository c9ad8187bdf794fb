package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stemsi/tutoria-backend/internal/model"
)

// LearnerRepository handles learner data access.
type LearnerRepository struct {
	db DBTX
}

// NewLearnerRepository creates a new LearnerRepository.
func NewLearnerRepository(db DBTX) *LearnerRepository {
	return &LearnerRepository{db: db}
}

// GetLearner retrieves a learner by ID.
func (r *LearnerRepository) GetLearner(ctx context.Context, id uuid.UUID) (*model.Learner, error) {
	l := &model.Learner{}
	err := r.db.QueryRow(ctx,
		`SELECT id, guardian_id, name, created_at FROM learners WHERE id = $1`, id,
	).Scan(&l.ID, &l.GuardianID, &l.Name, &l.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return l, nil
}

// ListLearners returns the learners among ids that exist.
func (r *LearnerRepository) ListLearners(ctx context.Context, ids []uuid.UUID) ([]model.Learner, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, guardian_id, name, created_at FROM learners WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var learners []model.Learner
	for rows.Next() {
		var l model.Learner
		if err := rows.Scan(&l.ID, &l.GuardianID, &l.Name, &l.CreatedAt); err != nil {
			return nil, err
		}
		learners = append(learners, l)
	}
	return learners, rows.Err()
}

// CreateLearner inserts a new learner.
func (r *LearnerRepository) CreateLearner(ctx context.Context, l *model.Learner) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO learners (id, guardian_id, name) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
		 RETURNING created_at`,
		l.ID, l.GuardianID, l.Name,
	).Scan(&l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert learner: %w", err)
	}
	return nil
}

// InstructorRepository handles instructor data access.
type InstructorRepository struct {
	db DBTX
}

// NewInstructorRepository creates a new InstructorRepository.
func NewInstructorRepository(db DBTX) *InstructorRepository {
	return &InstructorRepository{db: db}
}

// InstructorExists reports whether an instructor with the ID exists.
func (r *InstructorRepository) InstructorExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM instructors WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// CreateInstructor inserts a new instructor.
func (r *InstructorRepository) CreateInstructor(ctx context.Context, i *model.Instructor) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO instructors (id, name) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
		 RETURNING created_at`,
		i.ID, i.Name,
	).Scan(&i.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert instructor: %w", err)
	}
	return nil
}
