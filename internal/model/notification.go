package model

import (
	"time"

	"github.com/google/uuid"
)

// ClassCancelledNotification is the job handed to the notification pipeline
// after a cancellation commits.
type ClassCancelledNotification struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	ClassID     uuid.UUID `json:"class_id"`
	ClassLabel  string    `json:"class_label"`
	CancelledAt time.Time `json:"cancelled_at"`
	Attempts    int       `json:"attempts,omitempty"`
}
