// Package database opens gorm connections with the service's logging.
package database

import (
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/chrissnell/gwrecharge/internal/log"
	"go.uber.org/zap"
)

// NewLogger returns a gorm logger writing through the zap base logger
func NewLogger() logger.Interface {
	return logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  logger.Warn, // Log level
			IgnoreRecordNotFoundError: true,        // Missing runs are reported to callers, not logged
			Colorful:                  false,
		},
	)
}

// Open opens a gorm connection on the given dialector
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{Logger: NewLogger()})
}

// CreateConnection is a helper function to create a PostgreSQL connection with standard GORM configuration
func CreateConnection(connectionString string) (*gorm.DB, error) {
	log.Info("connecting to PostgreSQL...")
	db, err := Open(postgres.Open(connectionString))
	if err != nil {
		log.Warnf("warning: unable to create a PostgreSQL connection: %v", err)
		return nil, err
	}
	return db, nil
}
