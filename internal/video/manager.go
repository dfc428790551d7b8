package video

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/streamhive/media-orchestrator/internal/store"
	"github.com/streamhive/media-orchestrator/internal/store/model"
	"go.uber.org/zap"
)

// StateManager is the publication state collaborator consumed by the job
// handlers. It owns every transition of the video's own state machine; the
// job engine only calls in at defined join points.
type StateManager interface {
	IncreasePendingTranscodeCount(ctx context.Context, videoID uuid.UUID, count int) error
	DecreasePendingTranscodeCount(ctx context.Context, videoID uuid.UUID) (int, error)
	AdvanceToNextState(ctx context.Context, videoID uuid.UUID, isNewVideo bool) error
	MoveToFailedState(ctx context.Context, videoID uuid.UUID) error
	ForcePublished(ctx context.Context, videoID uuid.UUID) error
	SetDuration(ctx context.Context, videoID uuid.UUID, seconds int) error
}

type Manager struct {
	store store.Store
}

// Make sure we conform to StateManager interface
var _ StateManager = (*Manager)(nil)

func NewManager(store store.Store) *Manager {
	return &Manager{store: store}
}

func (m *Manager) IncreasePendingTranscodeCount(ctx context.Context, videoID uuid.UUID, count int) error {
	return m.store.Video().IncreasePendingTranscode(ctx, videoID, count)
}

func (m *Manager) DecreasePendingTranscodeCount(ctx context.Context, videoID uuid.UUID) (int, error) {
	return m.store.Video().DecreasePendingTranscode(ctx, videoID)
}

// AdvanceToNextState publishes the video once nothing is pending anymore.
// Calling it while sibling transcode jobs are still running is a no-op, so
// handlers may invoke it optimistically on every terminal outcome.
func (m *Manager) AdvanceToNextState(ctx context.Context, videoID uuid.UUID, isNewVideo bool) error {
	video, err := m.store.Video().Get(ctx, videoID)
	if err != nil {
		return fmt.Errorf("fetching video %s: %w", videoID, err)
	}

	if video.PendingTranscode > 0 {
		zap.S().Named("video_state").Debugw("transcode jobs still pending, not advancing",
			"video_id", videoID, "pending", video.PendingTranscode)
		return nil
	}

	switch video.State {
	case model.VideoStateWaitingForTranscoding, model.VideoStateToTranscode, model.VideoStateToEdit:
		video.State = model.VideoStatePublished
	case model.VideoStatePublished, model.VideoStateTranscodingFailed:
		return nil
	default:
		return fmt.Errorf("video %s in unknown state %q", videoID, video.State)
	}

	if _, err := m.store.Video().Update(ctx, *video); err != nil {
		return fmt.Errorf("updating video %s: %w", videoID, err)
	}

	zap.S().Named("video_state").Infow("video published", "video_id", videoID, "is_new", isNewVideo)
	return nil
}

func (m *Manager) MoveToFailedState(ctx context.Context, videoID uuid.UUID) error {
	video, err := m.store.Video().Get(ctx, videoID)
	if err != nil {
		return fmt.Errorf("fetching video %s: %w", videoID, err)
	}

	// a published video stays published even if a later job fails
	if video.State == model.VideoStatePublished {
		return nil
	}

	video.State = model.VideoStateTranscodingFailed
	if _, err := m.store.Video().Update(ctx, *video); err != nil {
		return fmt.Errorf("updating video %s: %w", videoID, err)
	}

	return nil
}

func (m *Manager) ForcePublished(ctx context.Context, videoID uuid.UUID) error {
	video, err := m.store.Video().Get(ctx, videoID)
	if err != nil {
		return fmt.Errorf("fetching video %s: %w", videoID, err)
	}

	video.State = model.VideoStatePublished
	if _, err := m.store.Video().Update(ctx, *video); err != nil {
		return fmt.Errorf("updating video %s: %w", videoID, err)
	}

	return nil
}

// SetDuration refreshes the duration metadata after transcoding invalidated it.
func (m *Manager) SetDuration(ctx context.Context, videoID uuid.UUID, seconds int) error {
	video, err := m.store.Video().Get(ctx, videoID)
	if err != nil {
		return fmt.Errorf("fetching video %s: %w", videoID, err)
	}

	video.DurationSeconds = seconds
	if _, err := m.store.Video().Update(ctx, *video); err != nil {
		return fmt.Errorf("updating video %s: %w", videoID, err)
	}

	return nil
}
