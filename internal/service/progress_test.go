package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lessonhub/lessonhub-server/internal/models"
)

// setupVideo creates a regular account entitled to a lesson carrying the
// given video.
func setupVideo(t *testing.T, videoID string) (*DefaultService, *models.Account) {
	t.Helper()
	svc, repo := newTestService(t)
	account := createAccount(t, repo, "viewer@example.com", models.RoleRegular)
	lesson := createLesson(t, repo, "Video Lesson", 50, videoID)

	_, err := svc.AdminGrant(context.Background(), models.AdminGrantRequest{
		AccountID: account.ID,
		ContentID: lesson.ID,
	})
	require.NoError(t, err)
	return svc, account
}

func TestFetchProgressUnknownVideo(t *testing.T) {
	svc, account := setupVideo(t, "vid-1")

	_, err := svc.FetchProgress(context.Background(), account, "", "no-such-video")
	assert.ErrorIs(t, err, models.ErrVideoNotFound)
}

func TestFetchProgressMaterializesZeroRecord(t *testing.T) {
	svc, account := setupVideo(t, "vid-1")
	ctx := context.Background()

	progress, err := svc.FetchProgress(ctx, account, "", "vid-1")
	require.NoError(t, err)
	assert.Equal(t, 0, progress.ProgressPercent)
	assert.Equal(t, 0.0, progress.TotalWatchTime)
	assert.False(t, progress.IsCompleted)
	assert.Empty(t, progress.Checkpoints)

	// The zero record was not persisted
	stored, err := svc.repo.GetProgress(ctx, account.ID, "vid-1")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestTelemetryForwardOnlyMerge(t *testing.T) {
	svc, account := setupVideo(t, "vid-1")
	ctx := context.Background()

	first, err := svc.ApplyTelemetry(ctx, account, "vid-1", models.TelemetrySample{
		CurrentTime:     120,
		Duration:        600,
		ProgressPercent: 20,
		WatchTimeDelta:  30,
	})
	require.NoError(t, err)
	assert.Equal(t, 120.0, first.CurrentTime)
	assert.Equal(t, 20, first.ProgressPercent)
	assert.Equal(t, 30.0, first.TotalWatchTime)

	// A regressive sample never moves playback fields backwards, but the
	// watch-time delta still accumulates
	second, err := svc.ApplyTelemetry(ctx, account, "vid-1", models.TelemetrySample{
		CurrentTime:     60,
		ProgressPercent: 10,
		WatchTimeDelta:  15,
	})
	require.NoError(t, err)
	assert.Equal(t, 120.0, second.CurrentTime)
	assert.Equal(t, 20, second.ProgressPercent)
	assert.Equal(t, 600.0, second.Duration)
	assert.Equal(t, 45.0, second.TotalWatchTime)

	// Negative deltas are clamped, not subtracted
	third, err := svc.ApplyTelemetry(ctx, account, "vid-1", models.TelemetrySample{
		WatchTimeDelta: -100,
	})
	require.NoError(t, err)
	assert.Equal(t, 45.0, third.TotalWatchTime)
}

// Two samples applied in either order converge to the same state.
func TestTelemetryCommutes(t *testing.T) {
	a := models.TelemetrySample{CurrentTime: 300, Duration: 600, ProgressPercent: 50, WatchTimeDelta: 40}
	b := models.TelemetrySample{CurrentTime: 150, Duration: 620, ProgressPercent: 25, WatchTimeDelta: 25}

	apply := func(t *testing.T, samples ...models.TelemetrySample) *models.VideoProgress {
		svc, account := setupVideo(t, "vid-1")
		var last *models.VideoProgress
		var err error
		for _, sample := range samples {
			last, err = svc.ApplyTelemetry(context.Background(), account, "vid-1", sample)
			require.NoError(t, err)
		}
		return last
	}

	ab := apply(t, a, b)
	ba := apply(t, b, a)

	assert.Equal(t, ab.CurrentTime, ba.CurrentTime)
	assert.Equal(t, ab.Duration, ba.Duration)
	assert.Equal(t, ab.ProgressPercent, ba.ProgressPercent)
	assert.Equal(t, ab.TotalWatchTime, ba.TotalWatchTime)
	assert.Equal(t, ab.IsCompleted, ba.IsCompleted)
}

func TestCheckpointTolerance(t *testing.T) {
	svc, account := setupVideo(t, "vid-1")
	ctx := context.Background()

	// progressPercent 10 is far below the 50 checkpoint: dropped silently
	progress, err := svc.ApplyTelemetry(ctx, account, "vid-1", models.TelemetrySample{
		ProgressPercent:   10,
		ReachedPercentage: 50,
	})
	require.NoError(t, err)
	assert.Empty(t, progress.Checkpoints)

	// 49 is within the 2-point tolerance of 50: accepted
	progress, err = svc.ApplyTelemetry(ctx, account, "vid-1", models.TelemetrySample{
		CurrentTime:       294,
		ProgressPercent:   49,
		ReachedPercentage: 50,
	})
	require.NoError(t, err)
	require.Len(t, progress.Checkpoints, 1)
	assert.Equal(t, 50, progress.Checkpoints[0].Percentage)

	// The same checkpoint is recorded only once
	progress, err = svc.ApplyTelemetry(ctx, account, "vid-1", models.TelemetrySample{
		ProgressPercent:   60,
		ReachedPercentage: 50,
	})
	require.NoError(t, err)
	assert.Len(t, progress.Checkpoints, 1)

	// Values off the ladder are dropped
	progress, err = svc.ApplyTelemetry(ctx, account, "vid-1", models.TelemetrySample{
		ProgressPercent:   65,
		ReachedPercentage: 55,
	})
	require.NoError(t, err)
	assert.Len(t, progress.Checkpoints, 1)
}

func TestCompletionBoundary(t *testing.T) {
	svc, account := setupVideo(t, "vid-1")
	ctx := context.Background()

	// 89% with plenty of watch time is not complete
	progress, err := svc.ApplyTelemetry(ctx, account, "vid-1", models.TelemetrySample{
		Duration:        600,
		ProgressPercent: 89,
		WatchTimeDelta:  1000,
	})
	require.NoError(t, err)
	assert.False(t, progress.IsCompleted)

	// Crossing 90% with watch time >= 30 latches completion
	progress, err = svc.ApplyTelemetry(ctx, account, "vid-1", models.TelemetrySample{
		ProgressPercent: 90,
	})
	require.NoError(t, err)
	assert.True(t, progress.IsCompleted)

	// A later regressive sample never un-sets it
	progress, err = svc.ApplyTelemetry(ctx, account, "vid-1", models.TelemetrySample{
		ProgressPercent: 50,
	})
	require.NoError(t, err)
	assert.True(t, progress.IsCompleted)
	assert.Equal(t, 90, progress.ProgressPercent)
}

func TestCompletionRequiresWatchTime(t *testing.T) {
	svc, account := setupVideo(t, "vid-1")
	ctx := context.Background()

	// 95% but only 10 seconds watched on a 600-second video: threshold is
	// min(30, 300) = 30, not met
	progress, err := svc.ApplyTelemetry(ctx, account, "vid-1", models.TelemetrySample{
		Duration:        600,
		ProgressPercent: 95,
		WatchTimeDelta:  10,
	})
	require.NoError(t, err)
	assert.False(t, progress.IsCompleted)

	// Another 20 seconds reaches the 30-second floor and completion latches
	progress, err = svc.ApplyTelemetry(ctx, account, "vid-1", models.TelemetrySample{
		WatchTimeDelta: 20,
	})
	require.NoError(t, err)
	assert.True(t, progress.IsCompleted)
}

func TestPrivilegedTelemetryLeavesNoTrace(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	admin := createAccount(t, repo, "admin@example.com", models.RolePrivileged)
	createLesson(t, repo, "Video Lesson", 50, "vid-1")

	progress, err := svc.ApplyTelemetry(ctx, admin, "vid-1", models.TelemetrySample{
		ProgressPercent: 80,
		WatchTimeDelta:  100,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, progress.ProgressPercent)

	stored, err := repo.GetProgress(ctx, admin.ID, "vid-1")
	require.NoError(t, err)
	assert.Nil(t, stored, "administrative preview sessions must not pollute tracking")
}

func TestTelemetryRequiresEntitlement(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	account := createAccount(t, repo, "stranger@example.com", models.RoleRegular)
	createLesson(t, repo, "Paid Lesson", 50, "vid-1")

	_, err := svc.ApplyTelemetry(ctx, account, "vid-1", models.TelemetrySample{ProgressPercent: 10})
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	// Free lessons are trackable without a grant
	createLesson(t, repo, "Free Lesson", 0, "vid-2")
	_, err = svc.ApplyTelemetry(ctx, account, "vid-2", models.TelemetrySample{ProgressPercent: 10})
	assert.NoError(t, err)
}

func TestResetPreservesWatchTime(t *testing.T) {
	svc, account := setupVideo(t, "vid-1")
	ctx := context.Background()

	_, err := svc.ApplyTelemetry(ctx, account, "vid-1", models.TelemetrySample{
		CurrentTime:       540,
		Duration:          600,
		ProgressPercent:   90,
		WatchTimeDelta:    200,
		ReachedPercentage: 90,
	})
	require.NoError(t, err)

	progress, err := svc.ResetProgress(ctx, account, "", "vid-1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, progress.CurrentTime)
	assert.Equal(t, 0, progress.ProgressPercent)
	assert.False(t, progress.IsCompleted)
	assert.Empty(t, progress.Checkpoints)
	assert.Equal(t, 200.0, progress.TotalWatchTime, "watch time survives reset")
	assert.Equal(t, 600.0, progress.Duration)
}

func TestProgressAuthorization(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	owner := createAccount(t, repo, "owner@example.com", models.RoleRegular)
	other := createAccount(t, repo, "other@example.com", models.RoleRegular)
	admin := createAccount(t, repo, "admin@example.com", models.RolePrivileged)
	lesson := createLesson(t, repo, "Video Lesson", 50, "vid-1")

	_, err := svc.AdminGrant(ctx, models.AdminGrantRequest{AccountID: owner.ID, ContentID: lesson.ID})
	require.NoError(t, err)
	_, err = svc.ApplyTelemetry(ctx, owner, "vid-1", models.TelemetrySample{ProgressPercent: 40})
	require.NoError(t, err)

	// Another regular account may not read or reset the owner's record
	_, err = svc.FetchProgress(ctx, other, owner.ID, "vid-1")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	_, err = svc.ResetProgress(ctx, other, owner.ID, "vid-1")
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	// A privileged account may
	progress, err := svc.FetchProgress(ctx, admin, owner.ID, "vid-1")
	require.NoError(t, err)
	assert.Equal(t, 40, progress.ProgressPercent)

	// Listing all records for a video is privileged-only
	_, err = svc.AllProgressForVideo(ctx, other, "vid-1")
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	records, err := svc.AllProgressForVideo(ctx, admin, "vid-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, owner.ID, records[0].AccountID)
}
