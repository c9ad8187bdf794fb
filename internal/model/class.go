package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ClassStatus enumerates the lifecycle states of a scheduled class.
// SCHEDULED -> CANCELLED is the only transition; CANCELLED is terminal.
type ClassStatus string

const (
	ClassStatusScheduled ClassStatus = "SCHEDULED"
	ClassStatusCancelled ClassStatus = "CANCELLED"
)

// ScheduledClass is a class session with a bounded number of seats. Version
// grows by one with every committed change to the row.
type ScheduledClass struct {
	ID              uuid.UUID   `json:"id"`
	Name            string      `json:"name"`
	OwnerID         uuid.UUID   `json:"owner_id"`
	CourseProductID *uuid.UUID  `json:"course_product_id,omitempty"`
	StartsAt        time.Time   `json:"starts_at"`
	DurationMinutes int         `json:"duration_minutes"`
	SeatsMax        int         `json:"seats_max"`
	SeatsOccupied   int         `json:"seats_occupied"`
	Status          ClassStatus `json:"status"`
	Version         int64       `json:"version"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// SeatsFree returns the number of seats still available.
func (c *ScheduledClass) SeatsFree() int {
	return c.SeatsMax - c.SeatsOccupied
}

// Cancelled reports whether the class reached its terminal state.
func (c *ScheduledClass) Cancelled() bool {
	return c.Status == ClassStatusCancelled
}

// Label is the short human description used in notifications.
func (c *ScheduledClass) Label() string {
	name := c.Name
	if name == "" {
		name = "Class"
	}
	return fmt.Sprintf("%s - %s", name, c.StartsAt.UTC().Format("2006-01-02 15:04"))
}

// ClassAvailability is an advisory snapshot of a class's seats. It may be
// stale and is never used to admit a reservation.
type ClassAvailability struct {
	ClassID       uuid.UUID   `json:"class_id"`
	SeatsMax      int         `json:"seats_max"`
	SeatsOccupied int         `json:"seats_occupied"`
	SeatsFree     int         `json:"seats_free"`
	Status        ClassStatus `json:"status"`
	StartsAt      time.Time   `json:"starts_at"`
	Version       int64       `json:"version"`
	AsOf          time.Time   `json:"as_of"`
}

// AvailabilityOf builds a snapshot from the current class state.
func AvailabilityOf(c *ScheduledClass, asOf time.Time) ClassAvailability {
	return ClassAvailability{
		ClassID:       c.ID,
		SeatsMax:      c.SeatsMax,
		SeatsOccupied: c.SeatsOccupied,
		SeatsFree:     c.SeatsFree(),
		Status:        c.Status,
		StartsAt:      c.StartsAt,
		Version:       c.Version,
		AsOf:          asOf.UTC(),
	}
}

// ClassRoster is a class together with every reservation row it owns,
// including the inert rows of a cancelled class.
type ClassRoster struct {
	Class        ScheduledClass `json:"class"`
	SeatsFree    int            `json:"seats_free"`
	Reservations []Reservation  `json:"reservations"`
}

// ScheduleClassRequest is the payload for scheduling a new class.
type ScheduleClassRequest struct {
	Name            string     `json:"name" binding:"required,notblank,min=2,max=200"`
	OwnerID         uuid.UUID  `json:"owner_id" binding:"required"`
	CourseProductID *uuid.UUID `json:"course_product_id" binding:"omitempty"`
	StartsAt        time.Time  `json:"starts_at" binding:"required"`
	DurationMinutes int        `json:"duration_minutes" binding:"required,min=15,max=480"`
	SeatsMax        int        `json:"seats_max" binding:"required,min=1,max=500"`
}

// AssignLearnersRequest is the payload for the administrative bulk assignment.
type AssignLearnersRequest struct {
	LearnerIDs []uuid.UUID `json:"learner_ids" binding:"required,min=1,max=500"`
}

// PurgeClassResponse is returned after an administrative purge.
type PurgeClassResponse struct {
	ClassID            uuid.UUID `json:"class_id"`
	PurgedReservations int64     `json:"purged_reservations"`
}
