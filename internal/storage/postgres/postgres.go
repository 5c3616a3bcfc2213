// Package postgres archives recharge runs in PostgreSQL through gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/chrissnell/gwrecharge/internal/database"
	"github.com/chrissnell/gwrecharge/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Store implements storage.RunStore on PostgreSQL
type Store struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// New connects to the database and migrates the runs table.
func New(ctx context.Context, connectionString string, logger *zap.SugaredLogger) (*Store, error) {
	db, err := database.CreateConnection(connectionString)
	if err != nil {
		return nil, err
	}
	return NewWithDB(ctx, db, logger)
}

// NewWithDB wraps an open gorm handle and migrates the runs table.
func NewWithDB(ctx context.Context, db *gorm.DB, logger *zap.SugaredLogger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	logger.Info("migrating recharge_runs table...")
	if err := db.WithContext(ctx).AutoMigrate(&storage.RunRecord{}); err != nil {
		return nil, fmt.Errorf("could not migrate recharge_runs table: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// SaveRun inserts or replaces a run
func (s *Store) SaveRun(ctx context.Context, rec storage.RunRecord) error {
	if err := s.db.WithContext(ctx).Save(&rec).Error; err != nil {
		s.logger.Errorf("could not store run %s: %v", rec.ID, err)
		return err
	}
	return nil
}

// GetRun returns one run including its result blob
func (s *Store) GetRun(ctx context.Context, id string) (storage.RunRecord, error) {
	var rec storage.RunRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.RunRecord{}, storage.ErrRunNotFound
	}
	if err != nil {
		return storage.RunRecord{}, fmt.Errorf("error querying database for run %s: %w", id, err)
	}
	return rec, nil
}

// ListRuns returns all runs, oldest first, without result blobs
func (s *Store) ListRuns(ctx context.Context) ([]storage.RunRecord, error) {
	var recs []storage.RunRecord
	err := s.db.WithContext(ctx).Omit("result").Order("created_at, id").Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("error querying database for runs: %w", err)
	}
	return recs, nil
}

// CheckHealth pings the underlying connection
func (s *Store) CheckHealth(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
