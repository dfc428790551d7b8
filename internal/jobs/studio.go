package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"

	"github.com/streamhive/media-orchestrator/internal/fileio"
	"github.com/streamhive/media-orchestrator/internal/store/model"
	"github.com/streamhive/media-orchestrator/internal/video"
	"go.uber.org/zap"
)

// VideoStudioTranscodingHandler runs a one-shot post-production edit
// (intro/outro/watermark/cut) on an already published video. There is exactly
// one job per edit request, so no fan-in counter is involved: terminal
// outcomes force the video straight back to published.
type VideoStudioTranscodingHandler struct {
	videos video.StateManager
	mover  fileio.Mover
}

func NewVideoStudioTranscodingHandler(videos video.StateManager, mover fileio.Mover) *VideoStudioTranscodingHandler {
	return &VideoStudioTranscodingHandler{videos: videos, mover: mover}
}

func (h *VideoStudioTranscodingHandler) Type() model.JobType {
	return model.JobTypeVideoStudioTranscoding
}

func (h *VideoStudioTranscodingHandler) IsAbortSupported() bool {
	return true
}

func (h *VideoStudioTranscodingHandler) SpecificCreate(ctx context.Context, job *model.Job) error {
	return nil
}

func (h *VideoStudioTranscodingHandler) SpecificUpdate(ctx context.Context, job *model.Job, payload json.RawMessage) (bool, error) {
	return false, nil
}

func (h *VideoStudioTranscodingHandler) SpecificAbort(ctx context.Context, job *model.Job) error {
	return nil
}

// SpecificComplete swaps in the edited file and ends the edition.
func (h *VideoStudioTranscodingHandler) SpecificComplete(ctx context.Context, job *model.Job, result json.RawMessage) error {
	res, err := decodePayload[VideoStudioTranscodingResult](result, "studio result")
	if err != nil {
		return err
	}

	priv, err := studioPrivatePayload(job)
	if err != nil {
		return err
	}

	finalPath := path.Join("web-videos", priv.VideoID.String(), filepath.Base(res.OutputPath))
	if err := h.mover.Move(res.OutputPath, finalPath); err != nil {
		return fmt.Errorf("relocating edited video: %w", err)
	}

	if res.DurationSeconds > 0 {
		if err := h.videos.SetDuration(ctx, priv.VideoID, res.DurationSeconds); err != nil {
			return err
		}
	}

	h.cleanupTaskFiles(priv)
	return h.videos.ForcePublished(ctx, priv.VideoID)
}

func (h *VideoStudioTranscodingHandler) SpecificCancel(ctx context.Context, job *model.Job) error {
	return h.abandonEdition(ctx, job)
}

func (h *VideoStudioTranscodingHandler) SpecificError(ctx context.Context, job *model.Job, nextState model.JobState) error {
	return h.abandonEdition(ctx, job)
}

// abandonEdition drops the temporary task inputs and puts the video back in
// its published state, bypassing the fan-in join of the batch kinds.
func (h *VideoStudioTranscodingHandler) abandonEdition(ctx context.Context, job *model.Job) error {
	priv, err := studioPrivatePayload(job)
	if err != nil {
		return err
	}

	h.cleanupTaskFiles(priv)
	return h.videos.ForcePublished(ctx, priv.VideoID)
}

func (h *VideoStudioTranscodingHandler) cleanupTaskFiles(priv *StudioPrivatePayload) {
	for _, file := range priv.TaskFiles {
		if err := h.mover.Remove(file); err != nil {
			zap.S().Named("studio_handler").Warnw("failed to remove task file", "file", file, "error", err)
		}
	}
}
