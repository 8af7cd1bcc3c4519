package service

import (
	"context"
	"fmt"
	"time"

	"github.com/lessonhub/lessonhub-server/internal/models"
)

// Checkpoint percentages form a fixed ladder: 10, 20, ... 100. A reported
// checkpoint is accepted when the merged progress is within this many
// percentage points below it.
const (
	checkpointStep      = 10
	checkpointTolerance = 2
)

// Completion requires at least 90% progress and a minimum accumulated watch
// time of min(completionMinWatch, half the known duration).
const (
	completionPercent  = 90
	completionMinWatch = 30.0
)

// resolveVideo maps a video id onto the catalog item carrying it.
func (s *DefaultService) resolveVideo(ctx context.Context, videoID string) (*models.ContentItem, error) {
	item, err := s.repo.GetContentByVideoID(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("error resolving video: %w", err)
	}
	if item == nil {
		return nil, models.ErrVideoNotFound
	}
	return item, nil
}

// authorizeOwner allows an account to touch its own record and privileged
// accounts to touch anyone's.
func authorizeOwner(caller *models.Account, ownerID string) error {
	if caller.ID != ownerID && !caller.IsPrivileged() {
		return models.ErrUnauthorized
	}
	return nil
}

// emptyProgress materializes a zero-valued record without persisting it.
func emptyProgress(accountID, videoID string) *models.VideoProgress {
	return &models.VideoProgress{
		AccountID:   accountID,
		VideoID:     videoID,
		Checkpoints: []models.VideoCheckpoint{},
	}
}

// FetchProgress returns the stored record for (owner, video), or a fresh
// zero-valued one that is not persisted until the first telemetry sample.
func (s *DefaultService) FetchProgress(ctx context.Context, caller *models.Account, ownerID, videoID string) (*models.VideoProgress, error) {
	if ownerID == "" {
		ownerID = caller.ID
	}
	if err := authorizeOwner(caller, ownerID); err != nil {
		return nil, err
	}

	if _, err := s.resolveVideo(ctx, videoID); err != nil {
		return nil, err
	}

	progress, err := s.repo.GetProgress(ctx, ownerID, videoID)
	if err != nil {
		return nil, fmt.Errorf("error getting progress: %w", err)
	}
	if progress == nil {
		return emptyProgress(ownerID, videoID), nil
	}
	if progress.Checkpoints == nil {
		progress.Checkpoints = []models.VideoCheckpoint{}
	}

	return progress, nil
}

// ApplyTelemetry merges one playback sample into the (account, video)
// record. Every field is forward-only, so regressive or out-of-order
// samples are silently absorbed rather than rejected; clients cannot be
// trusted to report monotonic data. Privileged accounts get a successful
// response but never create or mutate a record, so analytics are not
// polluted by administrative preview sessions.
func (s *DefaultService) ApplyTelemetry(ctx context.Context, account *models.Account, videoID string, sample models.TelemetrySample) (*models.VideoProgress, error) {
	item, err := s.resolveVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}

	if account.IsPrivileged() {
		return emptyProgress(account.ID, videoID), nil
	}

	allowed, err := s.HasAccess(ctx, account, item.ID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, models.ErrUnauthorized
	}

	sample = sanitizeSample(sample)

	now := time.Now().UTC()
	merged, err := s.repo.MergeProgress(ctx, account.ID, videoID, sample, now)
	if err != nil {
		return nil, fmt.Errorf("error merging progress: %w", err)
	}

	if sample.ReachedPercentage > 0 {
		if err := s.recordCheckpoint(ctx, merged, sample.ReachedPercentage); err != nil {
			return nil, err
		}
	}

	if !merged.IsCompleted && completionReached(merged) {
		if err := s.repo.MarkCompleted(ctx, account.ID, videoID); err != nil {
			return nil, fmt.Errorf("error marking completion: %w", err)
		}
		merged.IsCompleted = true
		s.log.Infow("video completed", "accountId", account.ID, "videoId", videoID)
	}

	checkpoints, err := s.repo.ListCheckpoints(ctx, account.ID, videoID)
	if err != nil {
		return nil, fmt.Errorf("error listing checkpoints: %w", err)
	}
	if checkpoints == nil {
		checkpoints = []models.VideoCheckpoint{}
	}
	merged.Checkpoints = checkpoints

	return merged, nil
}

// sanitizeSample clamps the sample to the valid domain before merging.
func sanitizeSample(sample models.TelemetrySample) models.TelemetrySample {
	if sample.CurrentTime < 0 {
		sample.CurrentTime = 0
	}
	if sample.Duration < 0 {
		sample.Duration = 0
	}
	if sample.WatchTimeDelta < 0 {
		sample.WatchTimeDelta = 0
	}
	if sample.ProgressPercent < 0 {
		sample.ProgressPercent = 0
	}
	if sample.ProgressPercent > 100 {
		sample.ProgressPercent = 100
	}
	return sample
}

// recordCheckpoint accepts a reported milestone when it sits on the ladder,
// the merged progress is within tolerance of it, and it has not been
// recorded before. Anything else is dropped without error.
func (s *DefaultService) recordCheckpoint(ctx context.Context, merged *models.VideoProgress, percentage int) error {
	if percentage%checkpointStep != 0 || percentage < checkpointStep || percentage > 100 {
		return nil
	}
	if merged.ProgressPercent < percentage-checkpointTolerance {
		return nil
	}

	_, err := s.repo.AddCheckpoint(ctx, &models.VideoCheckpoint{
		AccountID:  merged.AccountID,
		VideoID:    merged.VideoID,
		Percentage: percentage,
		VideoTime:  merged.CurrentTime,
	})
	if err != nil {
		return fmt.Errorf("error recording checkpoint: %w", err)
	}
	return nil
}

// completionReached checks the completion rule against the merged record.
func completionReached(p *models.VideoProgress) bool {
	if p.ProgressPercent < completionPercent {
		return false
	}
	required := completionMinWatch
	if half := 0.5 * p.Duration; half < required {
		required = half
	}
	return p.TotalWatchTime >= required
}

// ResetProgress zeroes playback position, progress percentage, completion
// and reached checkpoints. Total watch time is a lifetime counter and
// survives the reset.
func (s *DefaultService) ResetProgress(ctx context.Context, caller *models.Account, ownerID, videoID string) (*models.VideoProgress, error) {
	if ownerID == "" {
		ownerID = caller.ID
	}
	if err := authorizeOwner(caller, ownerID); err != nil {
		return nil, err
	}

	if _, err := s.resolveVideo(ctx, videoID); err != nil {
		return nil, err
	}

	progress, err := s.repo.ResetProgress(ctx, ownerID, videoID)
	if err != nil {
		return nil, fmt.Errorf("error resetting progress: %w", err)
	}
	if progress == nil {
		// Nothing tracked yet; resetting is a no-op.
		return emptyProgress(ownerID, videoID), nil
	}
	if progress.Checkpoints == nil {
		progress.Checkpoints = []models.VideoCheckpoint{}
	}

	return progress, nil
}

// AllProgressForVideo lists every account's record for one video.
// Privileged callers only.
func (s *DefaultService) AllProgressForVideo(ctx context.Context, caller *models.Account, videoID string) ([]models.VideoProgress, error) {
	if !caller.IsPrivileged() {
		return nil, models.ErrUnauthorized
	}

	if _, err := s.resolveVideo(ctx, videoID); err != nil {
		return nil, err
	}

	records, err := s.repo.ListProgressByVideo(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("error listing progress records: %w", err)
	}
	if records == nil {
		records = []models.VideoProgress{}
	}

	return records, nil
}
