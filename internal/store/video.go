package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/streamhive/media-orchestrator/internal/store/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Video interface {
	Create(ctx context.Context, video model.Video) (*model.Video, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Video, error)
	Update(ctx context.Context, video model.Video) (*model.Video, error)
	List(ctx context.Context, filter *VideoQueryFilter) (model.VideoList, error)
	// IncreasePendingTranscode adds count to the fan-in counter of the video.
	IncreasePendingTranscode(ctx context.Context, id uuid.UUID, count int) error
	// DecreasePendingTranscode atomically decrements the fan-in counter and
	// returns the remaining count.
	DecreasePendingTranscode(ctx context.Context, id uuid.UUID) (int, error)
	InitialMigration(ctx context.Context) error
}

type VideoStore struct {
	db *gorm.DB
}

// Make sure we conform to Video interface
var _ Video = (*VideoStore)(nil)

func NewVideoStore(db *gorm.DB) Video {
	return &VideoStore{db: db}
}

func (s *VideoStore) InitialMigration(ctx context.Context) error {
	return s.getDB(ctx).AutoMigrate(&model.Video{})
}

func (s *VideoStore) Create(ctx context.Context, video model.Video) (*model.Video, error) {
	if err := s.getDB(ctx).Create(&video).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, err
	}

	return &video, nil
}

func (s *VideoStore) Get(ctx context.Context, id uuid.UUID) (*model.Video, error) {
	video := model.NewVideoFromID(id)
	if err := s.getDB(ctx).First(video).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	return video, nil
}

func (s *VideoStore) Update(ctx context.Context, video model.Video) (*model.Video, error) {
	if err := s.getDB(ctx).First(&model.Video{}, "id = ?", video.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	if tx := s.getDB(ctx).Clauses(clause.Returning{}).Save(&video); tx.Error != nil {
		return nil, tx.Error
	}

	return &video, nil
}

func (s *VideoStore) List(ctx context.Context, filter *VideoQueryFilter) (model.VideoList, error) {
	var videos model.VideoList
	tx := s.getDB(ctx)

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}

	if err := tx.Model(&videos).Order("created_at").Find(&videos).Error; err != nil {
		return nil, err
	}

	return videos, nil
}

func (s *VideoStore) IncreasePendingTranscode(ctx context.Context, id uuid.UUID, count int) error {
	result := s.getDB(ctx).Model(&model.Video{}).
		Where("id = ?", id).
		UpdateColumn("pending_transcode", gorm.Expr("pending_transcode + ?", count))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func (s *VideoStore) DecreasePendingTranscode(ctx context.Context, id uuid.UUID) (int, error) {
	result := s.getDB(ctx).Model(&model.Video{}).
		Where("id = ? AND pending_transcode > 0", id).
		UpdateColumn("pending_transcode", gorm.Expr("pending_transcode - 1"))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		// either the video is gone or the counter already hit zero
		video, err := s.Get(ctx, id)
		if err != nil {
			return 0, err
		}
		return video.PendingTranscode, nil
	}

	var remaining int
	if err := s.getDB(ctx).Model(&model.Video{}).
		Where("id = ?", id).
		Select("pending_transcode").
		Scan(&remaining).Error; err != nil {
		return 0, err
	}

	return remaining, nil
}

func (s *VideoStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
