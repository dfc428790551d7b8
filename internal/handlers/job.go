package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/streamhive/media-orchestrator/internal/jobs"
	"github.com/streamhive/media-orchestrator/internal/service"
	"github.com/streamhive/media-orchestrator/internal/store/model"
)

type JobHandler struct {
	controller *jobs.Controller
	srv        *service.JobService
}

func NewJobHandler(controller *jobs.Controller, srv *service.JobService) *JobHandler {
	return &JobHandler{
		controller: controller,
		srv:        srv,
	}
}

// ListJobs returns all jobs, optionally filtered by state and type, ordered
// the same way runners pick up work.
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	filter := &service.JobFilter{
		State: model.JobState(r.URL.Query().Get("state")),
		Type:  model.JobType(r.URL.Query().Get("type")),
	}

	jobList, err := h.srv.ListJobs(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]JobResponse, 0, len(jobList))
	for i := range jobList {
		resp = append(resp, jobToResponse(&jobList[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
		return
	}

	job, err := h.srv.CreateJob(r.Context(), jobs.CreateOptions{
		Type:           req.Type,
		Priority:       req.Priority,
		DependsOn:      req.DependsOn,
		Payload:        req.Payload,
		PrivatePayload: req.PrivatePayload,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, jobToResponse(job))
}

func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := parseJobID(w, r)
	if !ok {
		return
	}

	job, err := h.srv.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, jobToResponse(job))
}

func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id, ok := parseJobID(w, r)
	if !ok {
		return
	}

	if err := h.controller.Cancel(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateJob receives a progress report from a runner while the job is
// executing. Unknown or finished jobs are acknowledged without effect so
// slow runners never see errors for work that was taken away from them.
func (h *JobHandler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	id, ok := parseJobID(w, r)
	if !ok {
		return
	}

	var req UpdateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
		return
	}

	if err := h.controller.Update(r.Context(), id, req.Progress, req.Payload); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *JobHandler) CompleteJob(w http.ResponseWriter, r *http.Request) {
	id, ok := parseJobID(w, r)
	if !ok {
		return
	}

	var req CompleteJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
		return
	}

	if err := h.controller.Complete(r.Context(), id, req.Payload); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *JobHandler) ErrorJob(w http.ResponseWriter, r *http.Request) {
	id, ok := parseJobID(w, r)
	if !ok {
		return
	}

	var req ErrorJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "message is required"})
		return
	}

	if err := h.controller.Error(r.Context(), id, req.Message); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *JobHandler) AbortJob(w http.ResponseWriter, r *http.Request) {
	id, ok := parseJobID(w, r)
	if !ok {
		return
	}

	if err := h.controller.Abort(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseJobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "invalid job uuid"})
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	switch err.(type) {
	case *service.ErrResourceNotFound:
		writeJSON(w, http.StatusNotFound, ErrorResponse{Message: err.Error()})
	case *service.ErrInvalidJobRequest:
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Message: err.Error()})
	}
}
