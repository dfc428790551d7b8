package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"

	"github.com/streamhive/media-orchestrator/internal/fileio"
	"github.com/streamhive/media-orchestrator/internal/live"
	"github.com/streamhive/media-orchestrator/internal/store/model"
)

// LiveRTMPHLSTranscodingHandler drives ongoing live ingestion, not a finite
// batch job. There is no way to pause a live feed and resume it later, so
// abort is unsupported and errors are always terminal.
type LiveRTMPHLSTranscodingHandler struct {
	sessions live.SessionManager
	mover    fileio.Mover
}

func NewLiveRTMPHLSTranscodingHandler(sessions live.SessionManager, mover fileio.Mover) *LiveRTMPHLSTranscodingHandler {
	return &LiveRTMPHLSTranscodingHandler{sessions: sessions, mover: mover}
}

func (h *LiveRTMPHLSTranscodingHandler) Type() model.JobType {
	return model.JobTypeLiveRTMPHLSTranscoding
}

func (h *LiveRTMPHLSTranscodingHandler) IsAbortSupported() bool {
	return false
}

// The ingestion session opens together with its job.
func (h *LiveRTMPHLSTranscodingHandler) SpecificCreate(ctx context.Context, job *model.Job) error {
	priv, err := livePrivatePayload(job)
	if err != nil {
		return err
	}

	_, err = h.sessions.StartSession(ctx, priv.VideoID)
	return err
}

// SpecificUpdate relocates live artifacts from the staging area into the
// live output directory: new segments in, expired segments out, refreshed
// playlists swapped. Job fields never change, so the controller degrades
// these updates to liveness touches.
func (h *LiveRTMPHLSTranscodingHandler) SpecificUpdate(ctx context.Context, job *model.Job, payload json.RawMessage) (bool, error) {
	if len(payload) == 0 {
		return false, nil
	}

	update, err := decodePayload[LiveUpdatePayload](payload, "live update")
	if err != nil {
		return false, err
	}

	priv, err := livePrivatePayload(job)
	if err != nil {
		return false, err
	}
	outputDir := path.Join("live", priv.VideoID.String())

	switch update.Type {
	case LiveUpdateAddSegment:
		return false, h.mover.Move(update.SegmentPath, path.Join(outputDir, filepath.Base(update.SegmentPath)))
	case LiveUpdateRemoveSegment:
		return false, h.mover.Remove(path.Join(outputDir, filepath.Base(update.SegmentPath)))
	case LiveUpdatePlaylist:
		return false, h.mover.Move(update.PlaylistPath, path.Join(outputDir, filepath.Base(update.PlaylistPath)))
	default:
		return false, fmt.Errorf("unknown live update type %q", update.Type)
	}
}

func (h *LiveRTMPHLSTranscodingHandler) SpecificComplete(ctx context.Context, job *model.Job, result json.RawMessage) error {
	return h.stopLive(ctx, job, nil)
}

func (h *LiveRTMPHLSTranscodingHandler) SpecificCancel(ctx context.Context, job *model.Job) error {
	errCode := model.LiveSessionErrorRunnerCancel
	return h.stopLive(ctx, job, &errCode)
}

func (h *LiveRTMPHLSTranscodingHandler) SpecificError(ctx context.Context, job *model.Job, nextState model.JobState) error {
	errCode := model.LiveSessionErrorRunnerError
	return h.stopLive(ctx, job, &errCode)
}

// never called, abort is unsupported
func (h *LiveRTMPHLSTranscodingHandler) SpecificAbort(ctx context.Context, job *model.Job) error {
	return nil
}

func (h *LiveRTMPHLSTranscodingHandler) stopLive(ctx context.Context, job *model.Job, errCode *model.LiveSessionError) error {
	priv, err := livePrivatePayload(job)
	if err != nil {
		return err
	}
	return h.sessions.StopSession(ctx, priv.VideoID, errCode)
}
