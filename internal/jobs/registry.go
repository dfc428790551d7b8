package jobs

import (
	"fmt"

	"github.com/streamhive/media-orchestrator/internal/fileio"
	"github.com/streamhive/media-orchestrator/internal/live"
	"github.com/streamhive/media-orchestrator/internal/store/model"
	"github.com/streamhive/media-orchestrator/internal/video"
)

// Registry maps a job's declared type to the singleton handler responsible
// for it. It is the only place in the engine performing type dispatch.
type Registry struct {
	handlers map[model.JobType]Handler
}

func NewRegistry(handlers ...Handler) (*Registry, error) {
	r := &Registry{handlers: make(map[model.JobType]Handler, len(handlers))}
	for _, h := range handlers {
		if _, found := r.handlers[h.Type()]; found {
			return nil, fmt.Errorf("duplicate handler for job type %q", h.Type())
		}
		r.handlers[h.Type()] = h
	}
	return r, nil
}

// NewDefaultRegistry builds the registry with one handler per persisted job
// kind and fails if any kind is left without a handler.
func NewDefaultRegistry(videos video.StateManager, sessions live.SessionManager, mover fileio.Mover) (*Registry, error) {
	r, err := NewRegistry(
		NewVODWebVideoTranscodingHandler(videos, mover),
		NewVODHLSTranscodingHandler(videos, mover),
		NewVODAudioMergeTranscodingHandler(videos, mover),
		NewLiveRTMPHLSTranscodingHandler(sessions, mover),
		NewVideoStudioTranscodingHandler(videos, mover),
	)
	if err != nil {
		return nil, err
	}

	for _, jobType := range model.JobTypes {
		if _, found := r.handlers[jobType]; !found {
			return nil, fmt.Errorf("no handler registered for job type %q", jobType)
		}
	}

	return r, nil
}

func (r *Registry) Get(jobType model.JobType) (Handler, error) {
	h, found := r.handlers[jobType]
	if !found {
		return nil, fmt.Errorf("unknown job type %q", jobType)
	}
	return h, nil
}
