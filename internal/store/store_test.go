package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) Store {
	t.Helper()

	db, err := InitDB(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)

	s := NewStore(db)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	for i, status := range []string{"completed", "failed", "completed"} {
		require.NoError(t, s.CreateRun(ctx, &JobRun{
			JobID:       "job-" + string(rune('a'+i)),
			HubName:     "hub",
			ProjectName: "project",
			ModelName:   "model",
			Status:      status,
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
		}))
	}

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	// newest first
	assert.Equal(t, "job-c", runs[0].JobID)
	assert.Equal(t, "job-a", runs[2].JobID)

	limited, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestCreateRunFillsDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := &JobRun{JobID: "job-1", Status: "completed"}
	require.NoError(t, s.CreateRun(ctx, run))

	assert.NotEmpty(t, run.ID)
	assert.False(t, run.CreatedAt.IsZero())
}

func TestLatestRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.LatestRun(ctx)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	base := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateRun(ctx, &JobRun{JobID: "old", Status: "failed", CreatedAt: base}))
	require.NoError(t, s.CreateRun(ctx, &JobRun{JobID: "new", Status: "completed", CreatedAt: base.Add(time.Hour)}))

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", latest.JobID)
}
