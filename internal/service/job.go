package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/streamhive/media-orchestrator/internal/jobs"
	"github.com/streamhive/media-orchestrator/internal/store"
	"github.com/streamhive/media-orchestrator/internal/store/model"
	"github.com/streamhive/media-orchestrator/pkg/metrics"
)

// JobService is the operator-facing read and create surface over the job
// engine. Runner callbacks go through the lifecycle controller directly.
type JobService struct {
	store      store.Store
	controller *jobs.Controller
}

func NewJobService(store store.Store, controller *jobs.Controller) *JobService {
	return &JobService{store: store, controller: controller}
}

type JobFilter struct {
	State model.JobState
	Type  model.JobType
}

func (s *JobService) ListJobs(ctx context.Context, filter *JobFilter) (model.JobList, error) {
	storeFilter := store.NewJobQueryFilter()
	if filter != nil {
		if filter.State != "" {
			storeFilter = storeFilter.ByState(filter.State)
		}
		if filter.Type != "" {
			storeFilter = storeFilter.ByType(filter.Type)
		}
	}

	opts := store.NewJobQueryOptions().WithSortOrder(store.SortByPriority)
	return s.store.Job().List(ctx, storeFilter, opts)
}

func (s *JobService) GetJob(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	job, err := s.store.Job().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrJobNotFound(id)
		}
		return nil, err
	}

	return job, nil
}

func (s *JobService) CreateJob(ctx context.Context, opts jobs.CreateOptions) (*model.Job, error) {
	return s.controller.Create(ctx, opts)
}

// RefreshPendingJobsMetric recomputes the pending-jobs gauge per job type.
// Called periodically; the gauge is a monitoring convenience, not a source of
// truth, so staleness between refreshes is fine.
func (s *JobService) RefreshPendingJobsMetric(ctx context.Context) error {
	pending, err := s.store.Job().List(ctx,
		store.NewJobQueryFilter().ByState(model.JobStatePending),
		store.NewJobQueryOptions())
	if err != nil {
		return err
	}

	counts := make(map[model.JobType]int, len(model.JobTypes))
	for _, job := range pending {
		counts[job.Type]++
	}
	for _, jobType := range model.JobTypes {
		metrics.UpdatePendingJobsMetric(string(jobType), counts[jobType])
	}

	return nil
}

// RequestTranscoding fans a freshly uploaded video out into one web-video
// transcode job per resolution, the first resolution acting as parent of the
// others so runners produce the most useful rendition first.
func (s *JobService) RequestTranscoding(ctx context.Context, videoID uuid.UUID, inputPath string, resolutions []int, isNewVideo bool) ([]*model.Job, error) {
	if len(resolutions) == 0 {
		return nil, NewErrInvalidJobRequest("at least one resolution is required")
	}

	if _, err := s.store.Video().Get(ctx, videoID); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrVideoNotFound(videoID)
		}
		return nil, err
	}

	created := make([]*model.Job, 0, len(resolutions))

	parent, err := s.controller.Create(ctx, jobs.CreateOptions{
		Type:     model.JobTypeVODWebVideoTranscoding,
		Priority: 10,
		Payload: jobs.VODWebVideoTranscodingPayload{
			InputPath:  inputPath,
			Resolution: resolutions[0],
		},
		PrivatePayload: jobs.VODPrivatePayload{VideoID: videoID, IsNewVideo: isNewVideo},
	})
	if err != nil {
		return nil, err
	}
	created = append(created, parent)

	for _, resolution := range resolutions[1:] {
		child, err := s.controller.Create(ctx, jobs.CreateOptions{
			Type:      model.JobTypeVODWebVideoTranscoding,
			Priority:  5,
			DependsOn: &parent.UUID,
			Payload: jobs.VODWebVideoTranscodingPayload{
				InputPath:  inputPath,
				Resolution: resolution,
			},
			PrivatePayload: jobs.VODPrivatePayload{VideoID: videoID, IsNewVideo: isNewVideo},
		})
		if err != nil {
			return nil, err
		}
		created = append(created, child)
	}

	return created, nil
}
