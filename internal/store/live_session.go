package store

import (
	"context"
	"errors"
	"time"

	"github.com/streamhive/media-orchestrator/internal/store/model"
	"gorm.io/gorm"
)

type LiveSession interface {
	Create(ctx context.Context, session model.LiveSession) (*model.LiveSession, error)
	List(ctx context.Context, filter *LiveSessionQueryFilter) ([]model.LiveSession, error)
	// End closes an open session, recording the stop reason if any.
	End(ctx context.Context, id uint, errCode *model.LiveSessionError) error
	InitialMigration(ctx context.Context) error
}

type LiveSessionStore struct {
	db *gorm.DB
}

// Make sure we conform to LiveSession interface
var _ LiveSession = (*LiveSessionStore)(nil)

func NewLiveSessionStore(db *gorm.DB) LiveSession {
	return &LiveSessionStore{db: db}
}

func (s *LiveSessionStore) InitialMigration(ctx context.Context) error {
	return s.getDB(ctx).AutoMigrate(&model.LiveSession{})
}

func (s *LiveSessionStore) Create(ctx context.Context, session model.LiveSession) (*model.LiveSession, error) {
	if err := s.getDB(ctx).Create(&session).Error; err != nil {
		return nil, err
	}

	return &session, nil
}

func (s *LiveSessionStore) List(ctx context.Context, filter *LiveSessionQueryFilter) ([]model.LiveSession, error) {
	var sessions []model.LiveSession
	tx := s.getDB(ctx)

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}

	if err := tx.Model(&sessions).Order("started_at").Find(&sessions).Error; err != nil {
		return nil, err
	}

	return sessions, nil
}

func (s *LiveSessionStore) End(ctx context.Context, id uint, errCode *model.LiveSessionError) error {
	updates := map[string]any{
		"ended_at": time.Now().UTC(),
		"error":    errCode,
	}

	result := s.getDB(ctx).Model(&model.LiveSession{}).
		Where("id = ? AND ended_at IS NULL", id).
		Updates(updates)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ErrRecordNotFound
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func (s *LiveSessionStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
