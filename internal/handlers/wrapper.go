package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type JobHandlerLogger struct {
	delegate *JobHandler
}

func NewJobHandlerLogger(delegate *JobHandler) *JobHandlerLogger {
	return &JobHandlerLogger{delegate: delegate}
}

func (h *JobHandlerLogger) ListJobs(w http.ResponseWriter, r *http.Request) {
	h.delegate.ListJobs(w, r)
}

func (h *JobHandlerLogger) CreateJob(w http.ResponseWriter, r *http.Request) {
	zap.S().Named("job_handler").Debugw("create job request")
	h.delegate.CreateJob(w, r)
}

func (h *JobHandlerLogger) GetJob(w http.ResponseWriter, r *http.Request) {
	h.delegate.GetJob(w, r)
}

func (h *JobHandlerLogger) CancelJob(w http.ResponseWriter, r *http.Request) {
	zap.S().Named("job_handler").Debugw("cancel job request",
		"job_id", chi.URLParam(r, "uuid"),
	)
	h.delegate.CancelJob(w, r)
}

func (h *JobHandlerLogger) UpdateJob(w http.ResponseWriter, r *http.Request) {
	zap.S().Named("job_handler").Debugw("runner update request",
		"job_id", chi.URLParam(r, "uuid"),
	)
	h.delegate.UpdateJob(w, r)
}

func (h *JobHandlerLogger) CompleteJob(w http.ResponseWriter, r *http.Request) {
	zap.S().Named("job_handler").Debugw("runner success request",
		"job_id", chi.URLParam(r, "uuid"),
	)
	h.delegate.CompleteJob(w, r)
}

func (h *JobHandlerLogger) ErrorJob(w http.ResponseWriter, r *http.Request) {
	zap.S().Named("job_handler").Debugw("runner error request",
		"job_id", chi.URLParam(r, "uuid"),
	)
	h.delegate.ErrorJob(w, r)
}

func (h *JobHandlerLogger) AbortJob(w http.ResponseWriter, r *http.Request) {
	zap.S().Named("job_handler").Debugw("runner abort request",
		"job_id", chi.URLParam(r, "uuid"),
	)
	h.delegate.AbortJob(w, r)
}
