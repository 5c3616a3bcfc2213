// Package storage defines the archive of finished recharge runs and its backends.
package storage

import (
	"context"
	"errors"
	"time"
)

var ErrRunNotFound = errors.New("run not found")

// RunStore archives finished runs.
type RunStore interface {
	SaveRun(ctx context.Context, rec RunRecord) error
	GetRun(ctx context.Context, id string) (RunRecord, error)
	// ListRuns returns every archived run, oldest first, without result blobs.
	ListRuns(ctx context.Context) ([]RunRecord, error)
	Close() error
}

// HealthChecker is implemented by backends that can report on their connection.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// RunRecord is one archived run. Result holds the msgpack-encoded GLUE result
// and is empty for runs that produced none.
type RunRecord struct {
	ID          string    `gorm:"primaryKey;column:id"`
	CreatedAt   time.Time `gorm:"column:created_at;index"`
	FinishedAt  time.Time `gorm:"column:finished_at"`
	Status      string    `gorm:"column:status;not null"`
	Error       string    `gorm:"column:error"`
	GridSize    int       `gorm:"column:grid_size"`
	Behavioural int       `gorm:"column:behavioural"`
	Result      []byte    `gorm:"column:result"`
}

// TableName specifies the table name for RunRecord
func (RunRecord) TableName() string {
	return "recharge_runs"
}
