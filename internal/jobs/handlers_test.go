package jobs_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/streamhive/media-orchestrator/internal/config"
	"github.com/streamhive/media-orchestrator/internal/events"
	"github.com/streamhive/media-orchestrator/internal/fileio"
	"github.com/streamhive/media-orchestrator/internal/jobs"
	"github.com/streamhive/media-orchestrator/internal/live"
	"github.com/streamhive/media-orchestrator/internal/store"
	"github.com/streamhive/media-orchestrator/internal/store/model"
	"github.com/streamhive/media-orchestrator/internal/video"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

var _ = Describe("job type handlers", Ordered, func() {
	var (
		s      store.Store
		gormdb *gorm.DB

		mover      *fileio.DiskMover
		notifier   *events.RunnerNotifier
		controller *jobs.Controller
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

	BeforeEach(func() {
		mover = fileio.NewDiskMover()
		mover.SetRootdir(GinkgoT().TempDir())

		notifier = events.NewRunnerNotifier(events.NewEventProducer(&recordingWriter{}))

		registry, err := jobs.NewDefaultRegistry(video.NewManager(s), live.NewManager(s), mover)
		Expect(err).To(BeNil())

		controller = jobs.NewController(s, notifier, registry, jobs.ControllerOptions{
			MaxFailures:   3,
			TouchInterval: 0,
			CascadeLimit:  512,
		})
	})

	AfterEach(func() {
		notifier.Close()
		gormdb.Exec("DELETE FROM jobs;")
		gormdb.Exec("DELETE FROM videos;")
		gormdb.Exec("DELETE FROM live_sessions;")
	})

	newVideo := func(state model.VideoState) *model.Video {
		v, err := s.Video().Create(context.TODO(), model.Video{
			ID:    uuid.New(),
			Name:  "video under test",
			State: state,
		})
		Expect(err).To(BeNil())
		return v
	}

	getVideo := func(id uuid.UUID) *model.Video {
		v, err := s.Video().Get(context.TODO(), id)
		Expect(err).To(BeNil())
		return v
	}

	stageFile := func(relPath string) {
		full := mover.PathFor(relPath)
		Expect(os.MkdirAll(filepath.Dir(full), 0755)).To(BeNil())
		Expect(os.WriteFile(full, []byte("media"), 0644)).To(BeNil())
	}

	createVODJob := func(videoID uuid.UUID, resolution int) *model.Job {
		job, err := controller.Create(context.TODO(), jobs.CreateOptions{
			Type: model.JobTypeVODWebVideoTranscoding,
			Payload: jobs.VODWebVideoTranscodingPayload{
				InputPath:  "source/input.mp4",
				Resolution: resolution,
			},
			PrivatePayload: jobs.VODPrivatePayload{VideoID: videoID, IsNewVideo: true},
		})
		Expect(err).To(BeNil())
		return job
	}

	marshal := func(v any) json.RawMessage {
		data, err := json.Marshal(v)
		Expect(err).To(BeNil())
		return data
	}

	Context("vod transcoding", func() {
		It("publishes the video only after every sibling job finished", func() {
			v := newVideo(model.VideoStateToTranscode)

			job360 := createVODJob(v.ID, 360)
			job720 := createVODJob(v.ID, 720)
			job1080 := createVODJob(v.ID, 1080)

			Expect(getVideo(v.ID).PendingTranscode).To(Equal(3))

			stageFile("staging/out-360.mp4")
			err := controller.Complete(context.TODO(), job360.UUID, marshal(jobs.VODTranscodingResult{
				OutputPath:      "staging/out-360.mp4",
				DurationSeconds: 120,
			}))
			Expect(err).To(BeNil())
			Expect(getVideo(v.ID).State).To(Equal(model.VideoStateToTranscode))
			Expect(getVideo(v.ID).PendingTranscode).To(Equal(2))

			stageFile("staging/out-720.mp4")
			err = controller.Complete(context.TODO(), job720.UUID, marshal(jobs.VODTranscodingResult{
				OutputPath: "staging/out-720.mp4",
			}))
			Expect(err).To(BeNil())
			Expect(getVideo(v.ID).PendingTranscode).To(Equal(1))

			stageFile("staging/out-1080.mp4")
			err = controller.Complete(context.TODO(), job1080.UUID, marshal(jobs.VODTranscodingResult{
				OutputPath: "staging/out-1080.mp4",
			}))
			Expect(err).To(BeNil())

			reread := getVideo(v.ID)
			Expect(reread.PendingTranscode).To(Equal(0))
			Expect(reread.State).To(Equal(model.VideoStatePublished))
			Expect(reread.DurationSeconds).To(Equal(120))

			// every output landed under the video's directory
			_, err = os.Stat(mover.PathFor(filepath.Join("web-videos", v.ID.String(), "out-360.mp4")))
			Expect(err).To(BeNil())
		})

		It("joins the counter whatever mix of outcomes the siblings produce", func() {
			v := newVideo(model.VideoStateToTranscode)

			job360 := createVODJob(v.ID, 360)
			job720 := createVODJob(v.ID, 720)

			stageFile("staging/out-360.mp4")
			err := controller.Complete(context.TODO(), job360.UUID, marshal(jobs.VODTranscodingResult{
				OutputPath: "staging/out-360.mp4",
			}))
			Expect(err).To(BeNil())

			Expect(controller.Cancel(context.TODO(), job720.UUID)).To(BeNil())

			reread := getVideo(v.ID)
			Expect(reread.PendingTranscode).To(Equal(0))
			Expect(reread.State).To(Equal(model.VideoStatePublished))
		})

		It("fails the video on a terminal job error", func() {
			v := newVideo(model.VideoStateToTranscode)
			job := createVODJob(v.ID, 360)

			// exhaust the retry budget
			for i := 0; i < 3; i++ {
				Expect(controller.Error(context.TODO(), job.UUID, "encoder crashed")).To(BeNil())
			}

			reread := getVideo(v.ID)
			Expect(reread.PendingTranscode).To(Equal(0))
			Expect(reread.State).To(Equal(model.VideoStateTranscodingFailed))
		})
	})

	Context("live transcoding", func() {
		createLiveJob := func(videoID uuid.UUID) *model.Job {
			job, err := controller.Create(context.TODO(), jobs.CreateOptions{
				Type: model.JobTypeLiveRTMPHLSTranscoding,
				Payload: jobs.LiveRTMPHLSTranscodingPayload{
					RTMPUrl:     "rtmp://ingest.local/live",
					Resolutions: []int{360, 720},
				},
				PrivatePayload: jobs.LivePrivatePayload{VideoID: videoID},
			})
			Expect(err).To(BeNil())
			return job
		}

		openSessions := func(videoID uuid.UUID) []model.LiveSession {
			sessions, err := s.LiveSession().List(context.TODO(),
				store.NewLiveSessionQueryFilter().ByVideoID(videoID).ByOpen())
			Expect(err).To(BeNil())
			return sessions
		}

		It("opens a session with the job and closes it cleanly on completion", func() {
			v := newVideo(model.VideoStateWaitingForTranscoding)
			job := createLiveJob(v.ID)

			Expect(openSessions(v.ID)).To(HaveLen(1))

			Expect(controller.Complete(context.TODO(), job.UUID, nil)).To(BeNil())
			Expect(openSessions(v.ID)).To(BeEmpty())

			all, err := s.LiveSession().List(context.TODO(),
				store.NewLiveSessionQueryFilter().ByVideoID(v.ID))
			Expect(err).To(BeNil())
			Expect(all).To(HaveLen(1))
			Expect(all[0].Error).To(BeNil())
		})

		It("relocates live artifacts on runner updates", func() {
			v := newVideo(model.VideoStateWaitingForTranscoding)
			job := createLiveJob(v.ID)

			stageFile("staging/seg-001.ts")
			err := controller.Update(context.TODO(), job.UUID, nil, marshal(jobs.LiveUpdatePayload{
				Type:        jobs.LiveUpdateAddSegment,
				SegmentPath: "staging/seg-001.ts",
			}))
			Expect(err).To(BeNil())

			_, err = os.Stat(mover.PathFor(filepath.Join("live", v.ID.String(), "seg-001.ts")))
			Expect(err).To(BeNil())

			err = controller.Update(context.TODO(), job.UUID, nil, marshal(jobs.LiveUpdatePayload{
				Type:        jobs.LiveUpdateRemoveSegment,
				SegmentPath: "seg-001.ts",
			}))
			Expect(err).To(BeNil())

			_, err = os.Stat(mover.PathFor(filepath.Join("live", v.ID.String(), "seg-001.ts")))
			Expect(os.IsNotExist(err)).To(BeTrue())
		})

		It("records the stop reason when the runner fails", func() {
			v := newVideo(model.VideoStateWaitingForTranscoding)
			job := createLiveJob(v.ID)

			Expect(controller.Error(context.TODO(), job.UUID, "ingest died")).To(BeNil())

			Expect(getJobState(s, job.UUID)).To(Equal(model.JobStateErrored))

			all, err := s.LiveSession().List(context.TODO(),
				store.NewLiveSessionQueryFilter().ByVideoID(v.ID))
			Expect(err).To(BeNil())
			Expect(all).To(HaveLen(1))
			Expect(*all[0].Error).To(Equal(model.LiveSessionErrorRunnerError))
		})
	})

	Context("studio edition", func() {
		createStudioJob := func(videoID uuid.UUID, taskFiles []string) *model.Job {
			job, err := controller.Create(context.TODO(), jobs.CreateOptions{
				Type: model.JobTypeVideoStudioTranscoding,
				Payload: jobs.VideoStudioTranscodingPayload{
					InputPath: "source/published.mp4",
					Tasks: []jobs.StudioTask{
						{Kind: jobs.StudioTaskAddIntro, FilePath: "staging/intro.mp4"},
					},
				},
				PrivatePayload: jobs.StudioPrivatePayload{VideoID: videoID, TaskFiles: taskFiles},
			})
			Expect(err).To(BeNil())
			return job
		}

		It("swaps in the edited file and republishes the video", func() {
			v := newVideo(model.VideoStateToEdit)
			job := createStudioJob(v.ID, []string{"staging/intro.mp4"})

			stageFile("staging/intro.mp4")
			stageFile("staging/edited.mp4")

			err := controller.Complete(context.TODO(), job.UUID, marshal(jobs.VideoStudioTranscodingResult{
				OutputPath:      "staging/edited.mp4",
				DurationSeconds: 95,
			}))
			Expect(err).To(BeNil())

			reread := getVideo(v.ID)
			Expect(reread.State).To(Equal(model.VideoStatePublished))
			Expect(reread.DurationSeconds).To(Equal(95))

			_, err = os.Stat(mover.PathFor(filepath.Join("web-videos", v.ID.String(), "edited.mp4")))
			Expect(err).To(BeNil())

			// edition inputs are gone
			_, err = os.Stat(mover.PathFor("staging/intro.mp4"))
			Expect(os.IsNotExist(err)).To(BeTrue())
		})

		It("cleans up and republishes when the edition is cancelled", func() {
			v := newVideo(model.VideoStateToEdit)
			job := createStudioJob(v.ID, []string{"staging/intro.mp4"})

			stageFile("staging/intro.mp4")

			Expect(controller.Cancel(context.TODO(), job.UUID)).To(BeNil())

			Expect(getVideo(v.ID).State).To(Equal(model.VideoStatePublished))

			_, err := os.Stat(mover.PathFor("staging/intro.mp4"))
			Expect(os.IsNotExist(err)).To(BeTrue())
		})
	})
})

func getJobState(s store.Store, id uuid.UUID) model.JobState {
	job, err := s.Job().Get(context.TODO(), id)
	Expect(err).To(BeNil())
	return job.State
}
