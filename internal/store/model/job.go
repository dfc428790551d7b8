package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type JobState string

const (
	JobStatePending          JobState = "pending"
	JobStateWaitingForParent JobState = "waiting-for-parent-job"
	JobStateCompleted        JobState = "completed"
	JobStateErrored          JobState = "errored"
	JobStateParentErrored    JobState = "parent-errored"
	JobStateCancelled        JobState = "cancelled"
	JobStateParentCancelled  JobState = "parent-cancelled"
)

type JobType string

const (
	JobTypeVODWebVideoTranscoding   JobType = "vod-web-video-transcoding"
	JobTypeVODHLSTranscoding        JobType = "vod-hls-transcoding"
	JobTypeVODAudioMergeTranscoding JobType = "vod-audio-merge-transcoding"
	JobTypeLiveRTMPHLSTranscoding   JobType = "live-rtmp-hls-transcoding"
	JobTypeVideoStudioTranscoding   JobType = "video-studio-transcoding"
)

// JobTypes lists every persisted job kind. The registry is built from this
// list so a new kind cannot ship without a handler wired for it.
var JobTypes = []JobType{
	JobTypeVODWebVideoTranscoding,
	JobTypeVODHLSTranscoding,
	JobTypeVODAudioMergeTranscoding,
	JobTypeLiveRTMPHLSTranscoding,
	JobTypeVideoStudioTranscoding,
}

type Job struct {
	gorm.Model
	UUID           uuid.UUID `gorm:"uniqueIndex;not null"`
	Type           JobType   `gorm:"index;not null"`
	State          JobState  `gorm:"index;not null"`
	Payload        []byte    `gorm:"type:jsonb"`
	PrivatePayload []byte    `gorm:"type:jsonb"`
	Priority       int       `gorm:"index;not null;default:0"`
	Progress       *int
	Failures       int `gorm:"not null;default:0"`
	Error          string
	DependsOnJobID *uint `gorm:"index"`
	FinishedAt     *time.Time
}

type JobList []Job

func (j Job) String() string {
	val, _ := json.Marshal(j)
	return string(val)
}

// IsTerminal reports whether the job reached a state it can never leave.
func (j Job) IsTerminal() bool {
	switch j.State {
	case JobStateCompleted, JobStateErrored, JobStateParentErrored,
		JobStateCancelled, JobStateParentCancelled:
		return true
	default:
		return false
	}
}

// SetFinished moves the job into the given terminal state.
func (j *Job) SetFinished(state JobState, errMessage string) {
	now := time.Now().UTC()
	j.State = state
	j.Error = errMessage
	j.Progress = nil
	j.FinishedAt = &now
}

// ResetToPending clears transient run data so a runner can claim the job again.
func (j *Job) ResetToPending() {
	j.State = JobStatePending
	j.Progress = nil
	j.Error = ""
	j.FinishedAt = nil
}
