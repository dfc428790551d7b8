package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/streamhive/media-orchestrator/internal/store/model"
)

// Public payloads are sent to the runner as instructions. Private payloads
// are server-only bookkeeping and never leave the engine.

type VODWebVideoTranscodingPayload struct {
	InputPath  string `json:"input_path"`
	Resolution int    `json:"resolution"`
	FPS        int    `json:"fps,omitempty"`
}

type VODHLSTranscodingPayload struct {
	InputPath  string `json:"input_path"`
	Resolution int    `json:"resolution"`
	FPS        int    `json:"fps,omitempty"`
}

type VODAudioMergeTranscodingPayload struct {
	AudioPath   string `json:"audio_path"`
	PreviewPath string `json:"preview_path"`
	Resolution  int    `json:"resolution"`
}

type LiveRTMPHLSTranscodingPayload struct {
	RTMPUrl         string `json:"rtmp_url"`
	Resolutions     []int  `json:"resolutions"`
	FPS             int    `json:"fps,omitempty"`
	SegmentDuration int    `json:"segment_duration,omitempty"`
}

type StudioTaskKind string

const (
	StudioTaskAddIntro     StudioTaskKind = "add-intro"
	StudioTaskAddOutro     StudioTaskKind = "add-outro"
	StudioTaskAddWatermark StudioTaskKind = "add-watermark"
	StudioTaskCut          StudioTaskKind = "cut"
)

type StudioTask struct {
	Kind     StudioTaskKind `json:"kind"`
	FilePath string         `json:"file_path,omitempty"`
	Start    int            `json:"start,omitempty"`
	End      int            `json:"end,omitempty"`
}

type VideoStudioTranscodingPayload struct {
	InputPath string       `json:"input_path"`
	Tasks     []StudioTask `json:"tasks"`
}

// VODPrivatePayload links a transcoding job back to the video it belongs to.
type VODPrivatePayload struct {
	VideoID    uuid.UUID `json:"video_id"`
	IsNewVideo bool      `json:"is_new_video"`
}

type LivePrivatePayload struct {
	VideoID uuid.UUID `json:"video_id"`
}

// StudioPrivatePayload carries the temporary task input files to clean up
// once the edition job reaches a terminal outcome.
type StudioPrivatePayload struct {
	VideoID   uuid.UUID `json:"video_id"`
	TaskFiles []string  `json:"task_files,omitempty"`
}

// LiveUpdateType discriminates the three runner update shapes of a live job.
type LiveUpdateType string

const (
	LiveUpdateAddSegment    LiveUpdateType = "add-segment"
	LiveUpdateRemoveSegment LiveUpdateType = "remove-segment"
	LiveUpdatePlaylist      LiveUpdateType = "update-playlist"
)

type LiveUpdatePayload struct {
	Type         LiveUpdateType `json:"type"`
	SegmentPath  string         `json:"segment_path,omitempty"`
	PlaylistPath string         `json:"playlist_path,omitempty"`
	Resolution   int            `json:"resolution,omitempty"`
}

// VODTranscodingResult is the success payload of the batch transcoding kinds.
type VODTranscodingResult struct {
	OutputPath      string `json:"output_path"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}

type VODHLSTranscodingResult struct {
	PlaylistPath    string `json:"playlist_path"`
	VideoFilePath   string `json:"video_file_path"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}

type VideoStudioTranscodingResult struct {
	OutputPath      string `json:"output_path"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}

func decodePayload[T any](data []byte, kind string) (*T, error) {
	var payload T
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decoding %s payload: %w", kind, err)
	}
	return &payload, nil
}

func vodPrivatePayload(job *model.Job) (*VODPrivatePayload, error) {
	return decodePayload[VODPrivatePayload](job.PrivatePayload, "vod private")
}

func livePrivatePayload(job *model.Job) (*LivePrivatePayload, error) {
	return decodePayload[LivePrivatePayload](job.PrivatePayload, "live private")
}

func studioPrivatePayload(job *model.Job) (*StudioPrivatePayload, error) {
	return decodePayload[StudioPrivatePayload](job.PrivatePayload, "studio private")
}
