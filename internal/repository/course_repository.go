package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stemsi/tutoria-backend/internal/model"
)

// CourseRepository handles course products and memberships.
type CourseRepository struct {
	db DBTX
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(db DBTX) *CourseRepository {
	return &CourseRepository{db: db}
}

// GetCourseProduct retrieves a course product by ID.
func (r *CourseRepository) GetCourseProduct(ctx context.Context, id uuid.UUID) (*model.CourseProduct, error) {
	p := &model.CourseProduct{}
	err := r.db.QueryRow(ctx,
		`SELECT id, name, kind, created_at FROM course_products WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Kind, &p.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// CreateCourseProduct inserts a new course product.
func (r *CourseRepository) CreateCourseProduct(ctx context.Context, p *model.CourseProduct) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO course_products (id, name, kind) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, kind = EXCLUDED.kind
		 RETURNING created_at`,
		p.ID, p.Name, p.Kind,
	).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert course product: %w", err)
	}
	return nil
}

// HasActiveMembership reports whether the learner holds an ACTIVE membership
// in the product.
func (r *CourseRepository) HasActiveMembership(ctx context.Context, learnerID, productID uuid.UUID) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM course_memberships
			WHERE learner_id = $1 AND product_id = $2 AND status = $3)`,
		learnerID, productID, model.MembershipStatusActive,
	).Scan(&ok)
	return ok, err
}

// CreateMembership inserts or refreshes a learner's course membership.
func (r *CourseRepository) CreateMembership(ctx context.Context, m *model.CourseMembership) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO course_memberships (learner_id, product_id, status) VALUES ($1, $2, $3)
		 ON CONFLICT (learner_id, product_id) DO UPDATE SET status = EXCLUDED.status
		 RETURNING created_at`,
		m.LearnerID, m.ProductID, m.Status,
	).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}
