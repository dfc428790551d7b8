package store

import (
	"context"

	"gorm.io/gorm"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	Job() Job
	Video() Video
	LiveSession() LiveSession
	InitialMigration() error
	Close() error
}

type DataStore struct {
	db          *gorm.DB
	job         Job
	video       Video
	liveSession LiveSession
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		db:          db,
		job:         NewJobStore(db),
		video:       NewVideoStore(db),
		liveSession: NewLiveSessionStore(db),
	}
}

func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db)
}

func (s *DataStore) Job() Job {
	return s.job
}

func (s *DataStore) Video() Video {
	return s.video
}

func (s *DataStore) LiveSession() LiveSession {
	return s.liveSession
}

func (s *DataStore) InitialMigration() error {
	ctx := context.Background()
	if err := s.job.InitialMigration(ctx); err != nil {
		return err
	}
	if err := s.video.InitialMigration(ctx); err != nil {
		return err
	}
	return s.liveSession.InitialMigration(ctx)
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
