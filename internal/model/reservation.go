package model

import (
	"time"

	"github.com/google/uuid"
)

// Reservation binds one learner to one scheduled class. It is owned by the
// booker (guardian account) that created it.
type Reservation struct {
	ID        uuid.UUID `json:"id"`
	ClassID   uuid.UUID `json:"class_id"`
	LearnerID uuid.UUID `json:"learner_id"`
	BookerID  uuid.UUID `json:"booker_id"`
	Note      *string   `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ReserveSeatRequest is the payload for reserving a seat.
type ReserveSeatRequest struct {
	LearnerID uuid.UUID `json:"learner_id" binding:"required"`
	Note      string    `json:"note" binding:"omitempty,max=500"`
}

// ReleaseConfirmation is returned after a reservation is released.
type ReleaseConfirmation struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	ClassID       uuid.UUID `json:"class_id"`
	SeatsOccupied int       `json:"seats_occupied"`
	ReleasedAt    time.Time `json:"released_at"`
}
