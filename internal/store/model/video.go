package model

import (
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VideoState string

const (
	VideoStateWaitingForTranscoding VideoState = "waiting-for-transcoding"
	VideoStateToTranscode           VideoState = "to-transcode"
	VideoStateToEdit                VideoState = "to-edit"
	VideoStatePublished             VideoState = "published"
	VideoStateTranscodingFailed     VideoState = "transcoding-failed"
)

type Video struct {
	gorm.Model
	ID    uuid.UUID  `gorm:"primaryKey"`
	Name  string     `gorm:"not null"`
	State VideoState `gorm:"index;not null"`

	// PendingTranscode counts the sibling transcoding jobs still running for
	// this video. Publication may only advance once it reaches zero.
	PendingTranscode int `gorm:"not null;default:0"`

	DurationSeconds int
}

type VideoList []Video

func (v Video) String() string {
	val, _ := json.Marshal(v)
	return string(val)
}

func NewVideoFromID(id uuid.UUID) *Video {
	return &Video{ID: id}
}
