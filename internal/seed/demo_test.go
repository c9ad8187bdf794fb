package seed

import (
	"context"
	"testing"
	"time"

	"github.com/stemsi/tutoria-backend/internal/model"
	"github.com/stemsi/tutoria-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemo(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	now := time.Date(2030, 3, 1, 8, 30, 0, 0, time.UTC)

	res, err := Demo(ctx, store, now)
	require.NoError(t, err)
	assert.Equal(t, 2, res.ClassesCreated)
	assert.Equal(t, 0, res.ClassesSkipped)

	require.NoError(t, store.Read(ctx, func(q repository.Queries) error {
		open, err := q.GetClass(ctx, OpenClassID)
		require.NoError(t, err)
		assert.Equal(t, model.ClassStatusScheduled, open.Status)
		assert.True(t, open.StartsAt.After(now))
		assert.Nil(t, open.CourseProductID)

		course, err := q.GetClass(ctx, CourseClassID)
		require.NoError(t, err)
		require.NotNil(t, course.CourseProductID)
		assert.Equal(t, CourseProductID, *course.CourseProductID)

		ok, err := q.HasActiveMembership(ctx, LearnerIDs[0], CourseProductID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = q.HasActiveMembership(ctx, LearnerIDs[1], CourseProductID)
		require.NoError(t, err)
		assert.False(t, ok)

		learners, err := q.ListLearners(ctx, LearnerIDs)
		require.NoError(t, err)
		assert.Len(t, learners, len(LearnerIDs))
		for _, l := range learners {
			assert.Equal(t, GuardianID, l.GuardianID)
		}
		return nil
	}))
}

func TestDemo_Rerun(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	now := time.Now()

	_, err := Demo(ctx, store, now)
	require.NoError(t, err)

	res, err := Demo(ctx, store, now)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ClassesCreated)
	assert.Equal(t, 2, res.ClassesSkipped)
}
