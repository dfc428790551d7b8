package service_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/streamhive/media-orchestrator/internal/config"
	"github.com/streamhive/media-orchestrator/internal/events"
	"github.com/streamhive/media-orchestrator/internal/fileio"
	"github.com/streamhive/media-orchestrator/internal/jobs"
	"github.com/streamhive/media-orchestrator/internal/live"
	"github.com/streamhive/media-orchestrator/internal/service"
	"github.com/streamhive/media-orchestrator/internal/store"
	"github.com/streamhive/media-orchestrator/internal/store/model"
	"github.com/streamhive/media-orchestrator/internal/video"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

var _ = Describe("job service", Ordered, func() {
	var (
		s      store.Store
		gormdb *gorm.DB

		notifier *events.RunnerNotifier
		srv      *service.JobService
	)

	BeforeAll(func() {
		db, err := store.InitDB(config.NewDefault())
		Expect(err).To(BeNil())

		s = store.NewStore(db)
		gormdb = db

		err = s.InitialMigration()
		Expect(err).To(BeNil())

		notifier = events.NewRunnerNotifier(events.NewEventProducer(&events.StdoutWriter{}))

		mover := fileio.NewDiskMover()
		mover.SetRootdir(GinkgoT().TempDir())

		registry, err := jobs.NewDefaultRegistry(video.NewManager(s), live.NewManager(s), mover)
		Expect(err).To(BeNil())

		controller := jobs.NewController(s, notifier, registry, jobs.ControllerOptions{
			MaxFailures:   3,
			TouchInterval: time.Hour,
			CascadeLimit:  512,
		})

		srv = service.NewJobService(s, controller)
	})

	AfterAll(func() {
		notifier.Close()
		s.Close()
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM jobs;")
		gormdb.Exec("DELETE FROM videos;")
	})

	newVideo := func() *model.Video {
		v, err := s.Video().Create(context.TODO(), model.Video{
			ID:    uuid.New(),
			Name:  "video under test",
			State: model.VideoStateToTranscode,
		})
		Expect(err).To(BeNil())
		return v
	}

	Context("get", func() {
		It("maps a missing job to a not found error", func() {
			_, err := srv.GetJob(context.TODO(), uuid.New())
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
		})
	})

	Context("list", func() {
		It("returns pending jobs ordered by priority", func() {
			v := newVideo()
			created, err := srv.RequestTranscoding(context.TODO(), v.ID, "source/input.mp4", []int{360}, true)
			Expect(err).To(BeNil())
			Expect(created).To(HaveLen(1))

			jobList, err := srv.ListJobs(context.TODO(), &service.JobFilter{State: model.JobStatePending})
			Expect(err).To(BeNil())
			Expect(jobList).To(HaveLen(1))
			Expect(jobList[0].UUID).To(Equal(created[0].UUID))
		})
	})

	Context("request transcoding", func() {
		It("rejects an empty resolution list", func() {
			v := newVideo()
			_, err := srv.RequestTranscoding(context.TODO(), v.ID, "source/input.mp4", nil, true)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrInvalidJobRequest{}))
		})

		It("rejects an unknown video", func() {
			_, err := srv.RequestTranscoding(context.TODO(), uuid.New(), "source/input.mp4", []int{360}, true)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
		})

		It("fans out one job per resolution, gated on the first", func() {
			v := newVideo()

			created, err := srv.RequestTranscoding(context.TODO(), v.ID, "source/input.mp4", []int{360, 720, 1080}, true)
			Expect(err).To(BeNil())
			Expect(created).To(HaveLen(3))

			parent := created[0]
			Expect(parent.State).To(Equal(model.JobStatePending))
			Expect(parent.Priority).To(Equal(10))
			Expect(parent.DependsOnJobID).To(BeNil())

			for _, child := range created[1:] {
				Expect(child.State).To(Equal(model.JobStateWaitingForParent))
				Expect(child.Priority).To(Equal(5))
				Expect(*child.DependsOnJobID).To(Equal(parent.ID))
			}

			reread, err := s.Video().Get(context.TODO(), v.ID)
			Expect(err).To(BeNil())
			Expect(reread.PendingTranscode).To(Equal(3))
		})
	})
})
