package store_test

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/streamhive/media-orchestrator/internal/config"
	"github.com/streamhive/media-orchestrator/internal/store"
	"github.com/streamhive/media-orchestrator/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

const (
	insertJobStm = "INSERT INTO jobs (uuid, type, state, priority, created_at, updated_at) VALUES ('%s', '%s', '%s', %d, '%s', '%s');"
)

var _ = Describe("job store", Ordered, func() {
	var (
		s      store.Store
		gormdb *gorm.DB
	)

	BeforeAll(func() {
		db, err := store.InitDB(config.NewDefault())
		Expect(err).To(BeNil())

		s = store.NewStore(db)
		gormdb = db

		err = s.InitialMigration()
		Expect(err).To(BeNil())
	})

	AfterAll(func() {
		s.Close()
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM jobs;")
	})

	Context("create", func() {
		It("successfully creates a job", func() {
			job, err := s.Job().Create(context.TODO(), model.Job{
				UUID:     uuid.New(),
				Type:     model.JobTypeVODWebVideoTranscoding,
				State:    model.JobStatePending,
				Priority: 10,
			})
			Expect(err).To(BeNil())
			Expect(job.ID).NotTo(BeZero())

			count := 0
			err = gormdb.Raw("SELECT COUNT(*) FROM jobs;").Scan(&count).Error
			Expect(err).To(BeNil())
			Expect(count).To(Equal(1))
		})

		It("refuses a duplicated uuid", func() {
			id := uuid.New()
			_, err := s.Job().Create(context.TODO(), model.Job{
				UUID:  id,
				Type:  model.JobTypeVODWebVideoTranscoding,
				State: model.JobStatePending,
			})
			Expect(err).To(BeNil())

			_, err = s.Job().Create(context.TODO(), model.Job{
				UUID:  id,
				Type:  model.JobTypeVODWebVideoTranscoding,
				State: model.JobStatePending,
			})
			Expect(err).To(MatchError(store.ErrDuplicateKey))
		})
	})

	Context("get", func() {
		It("successfully gets a job by uuid", func() {
			id := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, id, "vod-hls-transcoding", "pending", 0, "2026-01-01 10:00:00", "2026-01-01 10:00:00"))
			Expect(tx.Error).To(BeNil())

			job, err := s.Job().Get(context.TODO(), id)
			Expect(err).To(BeNil())
			Expect(job.UUID).To(Equal(id))
			Expect(job.Type).To(Equal(model.JobTypeVODHLSTranscoding))
			Expect(job.State).To(Equal(model.JobStatePending))
		})

		It("returns not found for an unknown uuid", func() {
			_, err := s.Job().Get(context.TODO(), uuid.New())
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})
	})

	Context("update", func() {
		It("persists new field values", func() {
			job, err := s.Job().Create(context.TODO(), model.Job{
				UUID:  uuid.New(),
				Type:  model.JobTypeVODWebVideoTranscoding,
				State: model.JobStatePending,
			})
			Expect(err).To(BeNil())

			job.SetFinished(model.JobStateErrored, "runner exploded")
			updated, err := s.Job().Update(context.TODO(), *job)
			Expect(err).To(BeNil())
			Expect(updated.State).To(Equal(model.JobStateErrored))

			reread, err := s.Job().Get(context.TODO(), job.UUID)
			Expect(err).To(BeNil())
			Expect(reread.State).To(Equal(model.JobStateErrored))
			Expect(reread.Error).To(Equal("runner exploded"))
			Expect(reread.FinishedAt).NotTo(BeNil())
		})

		It("returns not found for a missing record", func() {
			_, err := s.Job().Update(context.TODO(), model.Job{Model: gorm.Model{ID: 42}})
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})
	})

	Context("touch", func() {
		It("bumps updated_at only", func() {
			id := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, id, "vod-web-video-transcoding", "pending", 0, "2026-01-01 10:00:00", "2026-01-01 10:00:00"))
			Expect(tx.Error).To(BeNil())

			err := s.Job().Touch(context.TODO(), id)
			Expect(err).To(BeNil())

			job, err := s.Job().Get(context.TODO(), id)
			Expect(err).To(BeNil())
			Expect(job.UpdatedAt.After(time.Now().Add(-time.Minute))).To(BeTrue())
			Expect(job.State).To(Equal(model.JobStatePending))
		})

		It("returns not found for a missing record", func() {
			err := s.Job().Touch(context.TODO(), uuid.New())
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})
	})

	Context("list", func() {
		It("filters by state and type", func() {
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, uuid.New(), "vod-web-video-transcoding", "pending", 0, "2026-01-01 10:00:00", "2026-01-01 10:00:00"))
			Expect(tx.Error).To(BeNil())
			tx = gormdb.Exec(fmt.Sprintf(insertJobStm, uuid.New(), "vod-hls-transcoding", "pending", 0, "2026-01-01 10:00:01", "2026-01-01 10:00:01"))
			Expect(tx.Error).To(BeNil())
			tx = gormdb.Exec(fmt.Sprintf(insertJobStm, uuid.New(), "vod-hls-transcoding", "completed", 0, "2026-01-01 10:00:02", "2026-01-01 10:00:02"))
			Expect(tx.Error).To(BeNil())

			jobs, err := s.Job().List(context.TODO(),
				store.NewJobQueryFilter().ByState(model.JobStatePending).ByType(model.JobTypeVODHLSTranscoding),
				store.NewJobQueryOptions())
			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(1))
			Expect(jobs[0].Type).To(Equal(model.JobTypeVODHLSTranscoding))
		})

		It("orders by priority then creation time", func() {
			lowOld := uuid.New()
			lowNew := uuid.New()
			high := uuid.New()

			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, lowOld, "vod-web-video-transcoding", "pending", 0, "2026-01-01 10:00:00", "2026-01-01 10:00:00"))
			Expect(tx.Error).To(BeNil())
			tx = gormdb.Exec(fmt.Sprintf(insertJobStm, lowNew, "vod-web-video-transcoding", "pending", 0, "2026-01-01 10:00:05", "2026-01-01 10:00:05"))
			Expect(tx.Error).To(BeNil())
			tx = gormdb.Exec(fmt.Sprintf(insertJobStm, high, "vod-web-video-transcoding", "pending", 100, "2026-01-01 10:00:09", "2026-01-01 10:00:09"))
			Expect(tx.Error).To(BeNil())

			jobs, err := s.Job().List(context.TODO(),
				store.NewJobQueryFilter(),
				store.NewJobQueryOptions().WithSortOrder(store.SortByPriority))
			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(3))
			Expect(jobs[0].UUID).To(Equal(high))
			Expect(jobs[1].UUID).To(Equal(lowOld))
			Expect(jobs[2].UUID).To(Equal(lowNew))
		})

		It("honors the limit option", func() {
			for i := 0; i < 5; i++ {
				tx := gormdb.Exec(fmt.Sprintf(insertJobStm, uuid.New(), "vod-web-video-transcoding", "pending", 0, "2026-01-01 10:00:00", "2026-01-01 10:00:00"))
				Expect(tx.Error).To(BeNil())
			}

			jobs, err := s.Job().List(context.TODO(),
				store.NewJobQueryFilter(),
				store.NewJobQueryOptions().WithLimit(2))
			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(2))
		})
	})

	Context("children", func() {
		It("lists children and waiting children of a parent", func() {
			parent, err := s.Job().Create(context.TODO(), model.Job{
				UUID:  uuid.New(),
				Type:  model.JobTypeVODWebVideoTranscoding,
				State: model.JobStatePending,
			})
			Expect(err).To(BeNil())

			_, err = s.Job().Create(context.TODO(), model.Job{
				UUID:           uuid.New(),
				Type:           model.JobTypeVODHLSTranscoding,
				State:          model.JobStateWaitingForParent,
				DependsOnJobID: &parent.ID,
			})
			Expect(err).To(BeNil())

			_, err = s.Job().Create(context.TODO(), model.Job{
				UUID:           uuid.New(),
				Type:           model.JobTypeVODHLSTranscoding,
				State:          model.JobStateCancelled,
				DependsOnJobID: &parent.ID,
			})
			Expect(err).To(BeNil())

			children, err := s.Job().ListChildren(context.TODO(), parent)
			Expect(err).To(BeNil())
			Expect(children).To(HaveLen(2))

			waiting, err := s.Job().ListWaitingChildren(context.TODO(), parent)
			Expect(err).To(BeNil())
			Expect(waiting).To(HaveLen(1))
			Expect(waiting[0].State).To(Equal(model.JobStateWaitingForParent))
		})
	})

	Context("transaction", func() {
		It("commits job writes atomically", func() {
			ctx, err := s.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())

			_, err = s.Job().Create(ctx, model.Job{
				UUID:  uuid.New(),
				Type:  model.JobTypeVODWebVideoTranscoding,
				State: model.JobStatePending,
			})
			Expect(err).To(BeNil())

			_, cerr := store.Commit(ctx)
			Expect(cerr).To(BeNil())

			count := 0
			err = gormdb.Raw("SELECT COUNT(*) FROM jobs;").Scan(&count).Error
			Expect(err).To(BeNil())
			Expect(count).To(Equal(1))
		})

		It("rolls back job writes", func() {
			ctx, err := s.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())

			_, err = s.Job().Create(ctx, model.Job{
				UUID:  uuid.New(),
				Type:  model.JobTypeVODWebVideoTranscoding,
				State: model.JobStatePending,
			})
			Expect(err).To(BeNil())

			_, cerr := store.Rollback(ctx)
			Expect(cerr).To(BeNil())

			count := 0
			err = gormdb.Raw("SELECT COUNT(*) FROM jobs;").Scan(&count).Error
			Expect(err).To(BeNil())
			Expect(count).To(Equal(0))
		})
	})
})
