// Package seed loads a small, fixed demo catalog into a store. Every id is
// stable so running it twice leaves the same data behind.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/tutoria-backend/internal/model"
	"github.com/stemsi/tutoria-backend/internal/repository"
)

// Demo ids, printed by cmd/seed-demo and usable with cmd/issue-token.
var (
	InstructorID    = uuid.MustParse("7d1f4c8e-0a53-4c1b-9a3e-1f6b2f1c0001")
	GuardianID      = uuid.MustParse("7d1f4c8e-0a53-4c1b-9a3e-1f6b2f1c0002")
	CourseProductID = uuid.MustParse("7d1f4c8e-0a53-4c1b-9a3e-1f6b2f1c0003")
	OpenClassID     = uuid.MustParse("7d1f4c8e-0a53-4c1b-9a3e-1f6b2f1c0010")
	CourseClassID   = uuid.MustParse("7d1f4c8e-0a53-4c1b-9a3e-1f6b2f1c0011")

	LearnerIDs = []uuid.UUID{
		uuid.MustParse("7d1f4c8e-0a53-4c1b-9a3e-1f6b2f1c0101"),
		uuid.MustParse("7d1f4c8e-0a53-4c1b-9a3e-1f6b2f1c0102"),
		uuid.MustParse("7d1f4c8e-0a53-4c1b-9a3e-1f6b2f1c0103"),
	}
)

var learnerNames = []string{"Lucia Fernandez", "Mateo Rossi", "Hana Sato"}

// Result summarizes what Demo wrote.
type Result struct {
	ClassesCreated int
	ClassesSkipped int
}

// Demo writes one instructor, one guardian with three learners, a course
// product the first learner is enrolled in, and two classes starting a week
// after now. Existing classes are left untouched.
func Demo(ctx context.Context, store repository.Store, now time.Time) (*Result, error) {
	res := &Result{}
	startsAt := now.UTC().Add(7 * 24 * time.Hour).Truncate(time.Hour)
	productID := CourseProductID

	classes := []model.ScheduledClass{
		{
			ID:              OpenClassID,
			Name:            "Algebra Workshop",
			OwnerID:         InstructorID,
			StartsAt:        startsAt,
			DurationMinutes: 60,
			SeatsMax:        10,
		},
		{
			ID:              CourseClassID,
			Name:            "Exam Prep Intensive",
			OwnerID:         InstructorID,
			CourseProductID: &productID,
			StartsAt:        startsAt.Add(24 * time.Hour),
			DurationMinutes: 90,
			SeatsMax:        4,
		},
	}

	err := store.WithTx(ctx, func(q repository.Queries) error {
		if err := q.CreateInstructor(ctx, &model.Instructor{ID: InstructorID, Name: "Grace Hopper"}); err != nil {
			return err
		}
		for i, id := range LearnerIDs {
			l := &model.Learner{ID: id, GuardianID: GuardianID, Name: learnerNames[i]}
			if err := q.CreateLearner(ctx, l); err != nil {
				return err
			}
		}
		if err := q.CreateCourseProduct(ctx, &model.CourseProduct{
			ID:   CourseProductID,
			Name: "Exam Prep Course",
			Kind: model.ProductKindCourse,
		}); err != nil {
			return err
		}
		if err := q.CreateMembership(ctx, &model.CourseMembership{
			LearnerID: LearnerIDs[0],
			ProductID: CourseProductID,
			Status:    model.MembershipStatusActive,
		}); err != nil {
			return err
		}

		for i := range classes {
			_, err := q.GetClass(ctx, classes[i].ID)
			if err == nil {
				res.ClassesSkipped++
				continue
			}
			if !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			if err := q.CreateClass(ctx, &classes[i]); err != nil {
				return err
			}
			res.ClassesCreated++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("seed demo: %w", err)
	}
	return res, nil
}
