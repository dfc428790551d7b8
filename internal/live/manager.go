package live

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/streamhive/media-orchestrator/internal/store"
	"github.com/streamhive/media-orchestrator/internal/store/model"
	"go.uber.org/zap"
)

// SessionManager is the live-session collaborator consumed by the live job
// handler.
type SessionManager interface {
	StartSession(ctx context.Context, videoID uuid.UUID) (*model.LiveSession, error)
	StopSession(ctx context.Context, videoID uuid.UUID, errCode *model.LiveSessionError) error
}

type Manager struct {
	store store.Store
}

// Make sure we conform to SessionManager interface
var _ SessionManager = (*Manager)(nil)

func NewManager(store store.Store) *Manager {
	return &Manager{store: store}
}

// StartSession opens a new ingestion session for the video.
func (m *Manager) StartSession(ctx context.Context, videoID uuid.UUID) (*model.LiveSession, error) {
	session, err := m.store.LiveSession().Create(ctx, model.LiveSession{
		VideoID:   videoID,
		StartedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating live session for video %s: %w", videoID, err)
	}

	zap.S().Named("live_session").Infow("live session started", "video_id", videoID, "session_id", session.ID)
	return session, nil
}

// StopSession closes the open session of the video, if any. Stopping an
// already stopped session is not an error: the runner may report its own
// teardown after the server already ended the session.
func (m *Manager) StopSession(ctx context.Context, videoID uuid.UUID, errCode *model.LiveSessionError) error {
	sessions, err := m.store.LiveSession().List(ctx, store.NewLiveSessionQueryFilter().ByVideoID(videoID).ByOpen())
	if err != nil {
		return fmt.Errorf("listing live sessions of video %s: %w", videoID, err)
	}

	if len(sessions) == 0 {
		zap.S().Named("live_session").Debugw("no open session to stop", "video_id", videoID)
		return nil
	}

	for _, session := range sessions {
		if err := m.store.LiveSession().End(ctx, session.ID, errCode); err != nil {
			return fmt.Errorf("ending live session %d: %w", session.ID, err)
		}
	}

	zap.S().Named("live_session").Infow("live session stopped", "video_id", videoID, "error_code", errCode)
	return nil
}
