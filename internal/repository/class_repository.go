package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/tutoria-backend/internal/model"
)

const classColumns = `id, name, owner_id, course_product_id, starts_at, duration_minutes,
	seats_max, seats_occupied, status, version, created_at, updated_at`

// ClassRepository handles scheduled class data access.
type ClassRepository struct {
	db DBTX
}

// NewClassRepository creates a new ClassRepository.
func NewClassRepository(db DBTX) *ClassRepository {
	return &ClassRepository{db: db}
}

func scanClass(row pgx.Row) (*model.ScheduledClass, error) {
	c := &model.ScheduledClass{}
	err := row.Scan(&c.ID, &c.Name, &c.OwnerID, &c.CourseProductID, &c.StartsAt, &c.DurationMinutes,
		&c.SeatsMax, &c.SeatsOccupied, &c.Status, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// GetClass retrieves a class by its ID without locking.
func (r *ClassRepository) GetClass(ctx context.Context, id uuid.UUID) (*model.ScheduledClass, error) {
	return scanClass(r.db.QueryRow(ctx,
		`SELECT `+classColumns+` FROM scheduled_classes WHERE id = $1`, id))
}

// GetClassForUpdate retrieves a class and locks its row.
func (r *ClassRepository) GetClassForUpdate(ctx context.Context, id uuid.UUID) (*model.ScheduledClass, error) {
	return scanClass(r.db.QueryRow(ctx,
		`SELECT `+classColumns+` FROM scheduled_classes WHERE id = $1 FOR UPDATE`, id))
}

// CreateClass inserts a new SCHEDULED class with no seats taken.
func (r *ClassRepository) CreateClass(ctx context.Context, c *model.ScheduledClass) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.Status = model.ClassStatusScheduled
	c.SeatsOccupied = 0
	err := r.db.QueryRow(ctx,
		`INSERT INTO scheduled_classes (id, name, owner_id, course_product_id, starts_at, duration_minutes, seats_max, seats_occupied, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8)
		 RETURNING version, created_at, updated_at`,
		c.ID, c.Name, c.OwnerID, c.CourseProductID, c.StartsAt, c.DurationMinutes, c.SeatsMax, c.Status,
	).Scan(&c.Version, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert class: %w", err)
	}
	return nil
}

// AddOccupancy shifts the occupied seat counter within 0..seats_max.
func (r *ClassRepository) AddOccupancy(ctx context.Context, id uuid.UUID, delta int) (*model.ScheduledClass, error) {
	c, err := scanClass(r.db.QueryRow(ctx,
		`UPDATE scheduled_classes
		 SET seats_occupied = seats_occupied + $2, version = version + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $1 AND seats_occupied + $2 BETWEEN 0 AND seats_max
		 RETURNING `+classColumns, id, delta))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrOccupancyBounds
	}
	if err != nil {
		return nil, fmt.Errorf("update occupancy: %w", err)
	}
	return c, nil
}

// MarkCancelled moves a class to CANCELLED and frees every seat.
func (r *ClassRepository) MarkCancelled(ctx context.Context, id uuid.UUID) (*model.ScheduledClass, error) {
	return scanClass(r.db.QueryRow(ctx,
		`UPDATE scheduled_classes
		 SET status = $2, seats_occupied = 0, version = version + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $1
		 RETURNING `+classColumns, id, model.ClassStatusCancelled))
}

// DeleteClass removes a class. Reservations go with it via ON DELETE CASCADE.
func (r *ClassRepository) DeleteClass(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM scheduled_classes WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete class: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
