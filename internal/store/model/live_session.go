package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LiveSessionError is the reason a live session stopped, when it did not end
// cleanly.
type LiveSessionError string

const (
	LiveSessionErrorRunnerError  LiveSessionError = "runner-error"
	LiveSessionErrorRunnerCancel LiveSessionError = "runner-cancel"
)

type LiveSession struct {
	gorm.Model
	VideoID   uuid.UUID `gorm:"index;not null"`
	StartedAt time.Time `gorm:"not null"`
	EndedAt   *time.Time
	Error     *LiveSessionError
}

func (l LiveSession) String() string {
	val, _ := json.Marshal(l)
	return string(val)
}
