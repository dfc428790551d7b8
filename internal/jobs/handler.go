package jobs

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/streamhive/media-orchestrator/internal/store/model"
)

// Handler is the type-specific strategy behind the lifecycle controller. The
// controller owns persistence, state transitions, cascades and notification;
// a handler only contributes the behavior that differs per job kind.
//
// Handler hooks run inside the controller's transaction. A hook error never
// propagates to the caller of a lifecycle operation: it either downgrades the
// transition (complete) or is logged and the transition proceeds (teardown
// hooks), see the controller for the exact policy per operation.
type Handler interface {
	Type() model.JobType

	// IsAbortSupported reports whether the job kind can be reset to pending
	// and picked up again by another runner. Kinds that cannot be resumed
	// (live ingestion) return false, which also disables automatic retries.
	IsAbortSupported() bool

	// SpecificCreate runs before the new job record is persisted. It may
	// adjust the payloads and perform type-specific bookkeeping, e.g. raising
	// the per-video pending transcode counter.
	SpecificCreate(ctx context.Context, job *model.Job) error

	// SpecificUpdate applies a runner progress update. It returns true when
	// it changed job fields, in which case the controller performs a full
	// save instead of a throttled touch.
	SpecificUpdate(ctx context.Context, job *model.Job, payload json.RawMessage) (bool, error)

	// SpecificComplete finalizes a job the runner reported as successful,
	// e.g. relocating produced files. An error downgrades the job to errored.
	SpecificComplete(ctx context.Context, job *model.Job, result json.RawMessage) error

	SpecificCancel(ctx context.Context, job *model.Job) error

	SpecificAbort(ctx context.Context, job *model.Job) error

	// SpecificError releases type-specific resources before the job reaches
	// the given terminal error state.
	SpecificError(ctx context.Context, job *model.Job, nextState model.JobState) error
}

// CreateOptions describes a job to create. Payload types are declared in
// payloads.go; the caller picks the pair matching the job type.
type CreateOptions struct {
	Type           model.JobType
	Priority       int
	DependsOn      *uuid.UUID
	Payload        any
	PrivatePayload any
}
