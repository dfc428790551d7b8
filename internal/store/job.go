package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/streamhive/media-orchestrator/internal/store/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Job interface {
	Create(ctx context.Context, job model.Job) (*model.Job, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Job, error)
	Update(ctx context.Context, job model.Job) (*model.Job, error)
	// Touch bumps updated_at without writing any other column. Used as a
	// cheap liveness marker when a runner update carries no field change.
	Touch(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter *JobQueryFilter, opts *JobQueryOptions) (model.JobList, error)
	// ListChildren returns every job whose dependency points at the given job.
	ListChildren(ctx context.Context, parent *model.Job) (model.JobList, error)
	// ListWaitingChildren returns the children still gated on the given job,
	// i.e. those eligible to flip to pending once it completes.
	ListWaitingChildren(ctx context.Context, parent *model.Job) (model.JobList, error)
	InitialMigration(ctx context.Context) error
}

type JobStore struct {
	db *gorm.DB
}

// Make sure we conform to Job interface
var _ Job = (*JobStore)(nil)

func NewJobStore(db *gorm.DB) Job {
	return &JobStore{db: db}
}

func (s *JobStore) InitialMigration(ctx context.Context) error {
	return s.getDB(ctx).AutoMigrate(&model.Job{})
}

func (s *JobStore) Create(ctx context.Context, job model.Job) (*model.Job, error) {
	if err := s.getDB(ctx).Create(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, err
	}

	return &job, nil
}

func (s *JobStore) Get(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	var job model.Job
	if err := s.getDB(ctx).First(&job, "uuid = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	return &job, nil
}

func (s *JobStore) Update(ctx context.Context, job model.Job) (*model.Job, error) {
	if err := s.getDB(ctx).First(&model.Job{}, "id = ?", job.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	if tx := s.getDB(ctx).Clauses(clause.Returning{}).Save(&job); tx.Error != nil {
		return nil, tx.Error
	}

	return &job, nil
}

func (s *JobStore) Touch(ctx context.Context, id uuid.UUID) error {
	result := s.getDB(ctx).Model(&model.Job{}).
		Where("uuid = ?", id).
		UpdateColumn("updated_at", time.Now().UTC())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func (s *JobStore) List(ctx context.Context, filter *JobQueryFilter, opts *JobQueryOptions) (model.JobList, error) {
	var jobs model.JobList
	tx := s.getDB(ctx)

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}

	if opts != nil {
		for _, fn := range opts.QueryFn {
			tx = fn(tx)
		}
	}

	if err := tx.Model(&jobs).Find(&jobs).Error; err != nil {
		return nil, err
	}

	return jobs, nil
}

func (s *JobStore) ListChildren(ctx context.Context, parent *model.Job) (model.JobList, error) {
	var children model.JobList
	if err := s.getDB(ctx).
		Where("depends_on_job_id = ?", parent.ID).
		Order("id").
		Find(&children).Error; err != nil {
		return nil, err
	}

	return children, nil
}

func (s *JobStore) ListWaitingChildren(ctx context.Context, parent *model.Job) (model.JobList, error) {
	var children model.JobList
	if err := s.getDB(ctx).
		Where("depends_on_job_id = ? AND state = ?", parent.ID, model.JobStateWaitingForParent).
		Order("id").
		Find(&children).Error; err != nil {
		return nil, err
	}

	return children, nil
}

func (s *JobStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
