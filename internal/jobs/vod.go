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
)

// vodTranscodingHandler is the shared base of the batch (non-live)
// transcoding kinds. A single video fans out into several sibling transcode
// jobs; each terminal outcome lowers the video's pending transcode counter
// and the video only advances once the counter reaches zero, whatever mix of
// success, cancel and error the siblings produced.
type vodTranscodingHandler struct {
	videos video.StateManager
	mover  fileio.Mover
}

// Batch transcodes can always be handed to another runner.
func (h *vodTranscodingHandler) IsAbortSupported() bool {
	return true
}

func (h *vodTranscodingHandler) SpecificCreate(ctx context.Context, job *model.Job) error {
	priv, err := vodPrivatePayload(job)
	if err != nil {
		return err
	}
	return h.videos.IncreasePendingTranscodeCount(ctx, priv.VideoID, 1)
}

// Batch jobs need no mid-flight coordination.
func (h *vodTranscodingHandler) SpecificUpdate(ctx context.Context, job *model.Job, payload json.RawMessage) (bool, error) {
	return false, nil
}

func (h *vodTranscodingHandler) SpecificAbort(ctx context.Context, job *model.Job) error {
	return nil
}

func (h *vodTranscodingHandler) SpecificCancel(ctx context.Context, job *model.Job) error {
	priv, err := vodPrivatePayload(job)
	if err != nil {
		return err
	}

	remaining, err := h.videos.DecreasePendingTranscodeCount(ctx, priv.VideoID)
	if err != nil {
		return err
	}
	if remaining == 0 {
		return h.videos.AdvanceToNextState(ctx, priv.VideoID, priv.IsNewVideo)
	}
	return nil
}

func (h *vodTranscodingHandler) SpecificError(ctx context.Context, job *model.Job, nextState model.JobState) error {
	priv, err := vodPrivatePayload(job)
	if err != nil {
		return err
	}

	// the job's own failure fails the video; an inherited one does not,
	// the ancestor's handler already did
	if nextState == model.JobStateErrored {
		if err := h.videos.MoveToFailedState(ctx, priv.VideoID); err != nil {
			return err
		}
	}

	remaining, err := h.videos.DecreasePendingTranscodeCount(ctx, priv.VideoID)
	if err != nil {
		return err
	}
	if remaining == 0 {
		return h.videos.AdvanceToNextState(ctx, priv.VideoID, priv.IsNewVideo)
	}
	return nil
}

// finalizeTranscode relocates the produced file into permanent storage,
// refreshes duration metadata the new file invalidated, and joins the
// fan-in before trying to advance the video.
func (h *vodTranscodingHandler) finalizeTranscode(ctx context.Context, job *model.Job, outputPath string, durationSeconds int, destDir string) error {
	priv, err := vodPrivatePayload(job)
	if err != nil {
		return err
	}

	finalPath := path.Join(destDir, priv.VideoID.String(), filepath.Base(outputPath))
	if err := h.mover.Move(outputPath, finalPath); err != nil {
		return fmt.Errorf("relocating transcode output: %w", err)
	}

	if durationSeconds > 0 {
		if err := h.videos.SetDuration(ctx, priv.VideoID, durationSeconds); err != nil {
			return err
		}
	}

	if _, err := h.videos.DecreasePendingTranscodeCount(ctx, priv.VideoID); err != nil {
		return err
	}
	return h.videos.AdvanceToNextState(ctx, priv.VideoID, priv.IsNewVideo)
}

type VODWebVideoTranscodingHandler struct {
	vodTranscodingHandler
}

func NewVODWebVideoTranscodingHandler(videos video.StateManager, mover fileio.Mover) *VODWebVideoTranscodingHandler {
	return &VODWebVideoTranscodingHandler{vodTranscodingHandler{videos: videos, mover: mover}}
}

func (h *VODWebVideoTranscodingHandler) Type() model.JobType {
	return model.JobTypeVODWebVideoTranscoding
}

func (h *VODWebVideoTranscodingHandler) SpecificComplete(ctx context.Context, job *model.Job, result json.RawMessage) error {
	res, err := decodePayload[VODTranscodingResult](result, "web video result")
	if err != nil {
		return err
	}
	return h.finalizeTranscode(ctx, job, res.OutputPath, res.DurationSeconds, "web-videos")
}

type VODHLSTranscodingHandler struct {
	vodTranscodingHandler
}

func NewVODHLSTranscodingHandler(videos video.StateManager, mover fileio.Mover) *VODHLSTranscodingHandler {
	return &VODHLSTranscodingHandler{vodTranscodingHandler{videos: videos, mover: mover}}
}

func (h *VODHLSTranscodingHandler) Type() model.JobType {
	return model.JobTypeVODHLSTranscoding
}

// The HLS runner produces a resolution playlist next to the media file; both
// move into the video's HLS directory.
func (h *VODHLSTranscodingHandler) SpecificComplete(ctx context.Context, job *model.Job, result json.RawMessage) error {
	res, err := decodePayload[VODHLSTranscodingResult](result, "hls result")
	if err != nil {
		return err
	}

	priv, err := vodPrivatePayload(job)
	if err != nil {
		return err
	}

	playlistPath := path.Join("hls", priv.VideoID.String(), filepath.Base(res.PlaylistPath))
	if err := h.mover.Move(res.PlaylistPath, playlistPath); err != nil {
		return fmt.Errorf("relocating hls playlist: %w", err)
	}

	return h.finalizeTranscode(ctx, job, res.VideoFilePath, res.DurationSeconds, "hls")
}

type VODAudioMergeTranscodingHandler struct {
	vodTranscodingHandler
}

func NewVODAudioMergeTranscodingHandler(videos video.StateManager, mover fileio.Mover) *VODAudioMergeTranscodingHandler {
	return &VODAudioMergeTranscodingHandler{vodTranscodingHandler{videos: videos, mover: mover}}
}

func (h *VODAudioMergeTranscodingHandler) Type() model.JobType {
	return model.JobTypeVODAudioMergeTranscoding
}

func (h *VODAudioMergeTranscodingHandler) SpecificComplete(ctx context.Context, job *model.Job, result json.RawMessage) error {
	res, err := decodePayload[VODTranscodingResult](result, "audio merge result")
	if err != nil {
		return err
	}
	return h.finalizeTranscode(ctx, job, res.OutputPath, res.DurationSeconds, "web-videos")
}
