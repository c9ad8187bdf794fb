package model

import (
	"time"

	"github.com/google/uuid"
)

// ProductKind distinguishes course products from other catalog items.
type ProductKind string

const (
	ProductKindCourse       ProductKind = "COURSE"
	ProductKindSubscription ProductKind = "SUBSCRIPTION"
)

// CourseProduct is a catalog entry a class may be restricted to.
type CourseProduct struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Kind      ProductKind `json:"kind"`
	CreatedAt time.Time   `json:"created_at"`
}

// MembershipStatus enumerates course membership states.
type MembershipStatus string

const (
	MembershipStatusActive   MembershipStatus = "ACTIVE"
	MembershipStatusInactive MembershipStatus = "INACTIVE"
)

// CourseMembership records a learner's enrollment in a course product.
type CourseMembership struct {
	LearnerID uuid.UUID        `json:"learner_id"`
	ProductID uuid.UUID        `json:"product_id"`
	Status    MembershipStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}
