package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stemsi/tutoria-backend/internal/model"
)

// ReservationRepository handles reservation data access.
type ReservationRepository struct {
	db DBTX
}

// NewReservationRepository creates a new ReservationRepository.
func NewReservationRepository(db DBTX) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// GetReservation retrieves a reservation by its ID.
func (r *ReservationRepository) GetReservation(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	res := &model.Reservation{}
	err := r.db.QueryRow(ctx,
		`SELECT id, class_id, learner_id, booker_id, note, created_at
		 FROM reservations WHERE id = $1`, id,
	).Scan(&res.ID, &res.ClassID, &res.LearnerID, &res.BookerID, &res.Note, &res.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return res, nil
}

// ListReservationsByClass returns every reservation row of a class, oldest first.
func (r *ReservationRepository) ListReservationsByClass(ctx context.Context, classID uuid.UUID) ([]model.Reservation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, class_id, learner_id, booker_id, note, created_at
		 FROM reservations
		 WHERE class_id = $1
		 ORDER BY created_at, id`, classID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reservations := []model.Reservation{}
	for rows.Next() {
		var res model.Reservation
		if err := rows.Scan(&res.ID, &res.ClassID, &res.LearnerID, &res.BookerID, &res.Note, &res.CreatedAt); err != nil {
			return nil, err
		}
		reservations = append(reservations, res)
	}
	return reservations, rows.Err()
}

// ReservedLearnerIDs returns which of learnerIDs already hold a seat in the class.
func (r *ReservationRepository) ReservedLearnerIDs(ctx context.Context, classID uuid.UUID, learnerIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(learnerIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT learner_id FROM reservations
		 WHERE class_id = $1 AND learner_id = ANY($2)
		 ORDER BY learner_id`, classID, learnerIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CreateReservation inserts a reservation. A second row for the same
// (class, learner) pair yields ErrDuplicateReservation.
func (r *ReservationRepository) CreateReservation(ctx context.Context, res *model.Reservation) error {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO reservations (id, class_id, learner_id, booker_id, note)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		res.ID, res.ClassID, res.LearnerID, res.BookerID, res.Note,
	).Scan(&res.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateReservation
		}
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

// DeleteReservation removes one reservation and reports whether a row went away.
func (r *ReservationRepository) DeleteReservation(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete reservation: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteReservationsByClass removes every reservation of a class.
func (r *ReservationRepository) DeleteReservationsByClass(ctx context.Context, classID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM reservations WHERE class_id = $1`, classID)
	if err != nil {
		return 0, fmt.Errorf("delete class reservations: %w", err)
	}
	return tag.RowsAffected(), nil
}
