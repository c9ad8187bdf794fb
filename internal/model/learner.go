package model

import (
	"time"

	"github.com/google/uuid"
)

// Learner is a student whose seats are booked by a guardian.
type Learner struct {
	ID         uuid.UUID `json:"id"`
	GuardianID uuid.UUID `json:"guardian_id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
}

// Instructor owns the classes they teach.
type Instructor struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
