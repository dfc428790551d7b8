package handlers

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/streamhive/media-orchestrator/internal/store/model"
)

type CreateJobRequest struct {
	Type           model.JobType   `json:"type"`
	Priority       int             `json:"priority"`
	DependsOn      *uuid.UUID      `json:"depends_on,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	PrivatePayload json.RawMessage `json:"private_payload,omitempty"`
}

type UpdateJobRequest struct {
	Progress *int            `json:"progress,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

type CompleteJobRequest struct {
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ErrorJobRequest struct {
	Message string `json:"message"`
}

type JobResponse struct {
	UUID       uuid.UUID       `json:"uuid"`
	Type       model.JobType   `json:"type"`
	State      model.JobState  `json:"state"`
	Priority   int             `json:"priority"`
	Progress   *int            `json:"progress,omitempty"`
	Failures   int             `json:"failures"`
	Error      string          `json:"error,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

func jobToResponse(job *model.Job) JobResponse {
	return JobResponse{
		UUID:       job.UUID,
		Type:       job.Type,
		State:      job.State,
		Priority:   job.Priority,
		Progress:   job.Progress,
		Failures:   job.Failures,
		Error:      job.Error,
		Payload:    json.RawMessage(job.Payload),
		CreatedAt:  job.CreatedAt,
		FinishedAt: job.FinishedAt,
	}
}
