// Package managers owns the long-lived parts of the service: the run archive
// and the recharge runs submitted through the API.
package managers

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/chrissnell/gwrecharge/internal/glue"
	"github.com/chrissnell/gwrecharge/internal/recharge"
	"github.com/chrissnell/gwrecharge/internal/storage"
	"github.com/chrissnell/gwrecharge/internal/sweep"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusDone      Status = "done"
	StatusEmpty     Status = "empty" // finished without a behavioural model
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Finished reports whether the status is terminal
func (s Status) Finished() bool {
	switch s {
	case StatusDone, StatusEmpty, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

const archiveTimeout = 10 * time.Second

var (
	ErrRunNotFound  = storage.ErrRunNotFound
	ErrRunFinished  = errors.New("run already finished")
	ErrNoResult     = errors.New("run has no result")
	ErrShuttingDown = errors.New("run manager is shutting down")
)

// RunInfo is a snapshot of a run's state.
type RunInfo struct {
	ID          string     `json:"id" msgpack:"id"`
	Status      Status     `json:"status" msgpack:"status"`
	Progress    float64    `json:"progress" msgpack:"progress"`
	CreatedAt   time.Time  `json:"createdAt" msgpack:"createdAt"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty" msgpack:"finishedAt,omitempty"`
	Error       string     `json:"error,omitempty" msgpack:"error,omitempty"`
	GridSize    int        `json:"gridSize" msgpack:"gridSize"`
	Behavioural int        `json:"behavioural" msgpack:"behavioural"`
}

type run struct {
	info   RunInfo
	result *glue.Result
	cancel context.CancelFunc
}

// RunManager executes recharge evaluations. Runs proceed concurrently, up to
// a fixed number at a time, each on its own input snapshot. Finished runs are
// archived in the store, when there is one, and then dropped from memory.
type RunManager struct {
	ctx    context.Context
	wg     *sync.WaitGroup
	store  storage.RunStore
	logger *zap.SugaredLogger
	slots  chan struct{}

	mu   sync.RWMutex
	runs map[string]*run
}

// NewRunManager creates a RunManager. store may be nil. Runs are cancelled
// when ctx is done and every run goroutine is tracked by wg.
func NewRunManager(ctx context.Context, wg *sync.WaitGroup, store storage.RunStore, maxConcurrent int, logger *zap.SugaredLogger) *RunManager {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &RunManager{
		ctx:    ctx,
		wg:     wg,
		store:  store,
		logger: logger,
		slots:  make(chan struct{}, maxConcurrent),
		runs:   make(map[string]*run),
	}
}

// Submit validates the configuration and queues a new run.
func (m *RunManager) Submit(in recharge.Inputs, cfg recharge.Config) (RunInfo, error) {
	if m.ctx.Err() != nil {
		return RunInfo{}, ErrShuttingDown
	}
	if err := cfg.Validate(); err != nil {
		return RunInfo{}, err
	}
	grid, err := sweep.Grid(cfg.Cru, cfg.RASmax, cfg.Resolution)
	if err != nil {
		return RunInfo{}, err
	}

	ctx, cancel := context.WithCancel(m.ctx)
	r := &run{
		info: RunInfo{
			ID:        uuid.NewString(),
			Status:    StatusQueued,
			CreatedAt: time.Now().UTC(),
			GridSize:  len(grid),
		},
		cancel: cancel,
	}

	m.mu.Lock()
	m.runs[r.info.ID] = r
	info := r.info
	m.mu.Unlock()

	m.logger.Infof("queued run %s over %d grid points", info.ID, info.GridSize)
	m.wg.Add(1)
	go m.execute(ctx, r, in, cfg)
	return info, nil
}

func (m *RunManager) execute(ctx context.Context, r *run, in recharge.Inputs, cfg recharge.Config) {
	defer m.wg.Done()
	defer r.cancel()

	select {
	case m.slots <- struct{}{}:
		defer func() { <-m.slots }()
	case <-ctx.Done():
		m.finish(r, nil, ctx.Err())
		return
	}

	m.mu.Lock()
	r.info.Status = StatusRunning
	id := r.info.ID
	m.mu.Unlock()

	for u := range recharge.Start(ctx, in, cfg, m.logger.With("run", id)) {
		if u.Done {
			m.finish(r, u.Result, u.Err)
			continue
		}
		m.mu.Lock()
		r.info.Progress = u.Progress
		m.mu.Unlock()
	}
}

func (m *RunManager) finish(r *run, res *glue.Result, err error) {
	m.mu.Lock()
	now := time.Now().UTC()
	r.info.FinishedAt = &now
	switch {
	case err == nil:
		r.info.Status = StatusDone
		r.info.Progress = 100
		r.info.Behavioural = len(res.Models)
		r.result = res
	case errors.Is(err, recharge.ErrEmptyEnsemble):
		r.info.Status = StatusEmpty
		r.info.Error = err.Error()
	case errors.Is(err, context.Canceled):
		r.info.Status = StatusCancelled
	default:
		r.info.Status = StatusFailed
		r.info.Error = err.Error()
	}
	info := r.info
	m.mu.Unlock()

	m.logger.Infof("run %s finished: %s %s", info.ID, info.Status, info.Error)
	if m.archive(info, res) {
		m.mu.Lock()
		delete(m.runs, info.ID)
		m.mu.Unlock()
	}
}

// archive stores a finished run and reports whether it was stored.
func (m *RunManager) archive(info RunInfo, res *glue.Result) bool {
	if m.store == nil {
		return false
	}
	blob, err := storage.EncodeResult(res)
	if err != nil {
		m.logger.Errorf("run %s: %v", info.ID, err)
		return false
	}
	rec := storage.RunRecord{
		ID:          info.ID,
		CreatedAt:   info.CreatedAt,
		Status:      string(info.Status),
		Error:       info.Error,
		GridSize:    info.GridSize,
		Behavioural: info.Behavioural,
		Result:      blob,
	}
	if info.FinishedAt != nil {
		rec.FinishedAt = *info.FinishedAt
	}

	// the manager's context may already be cancelled during shutdown
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	if err := m.store.SaveRun(ctx, rec); err != nil {
		m.logger.Errorf("could not archive run %s: %v", info.ID, err)
		return false
	}
	return true
}

// Get returns the state of a run, from memory or the archive.
func (m *RunManager) Get(ctx context.Context, id string) (RunInfo, error) {
	m.mu.RLock()
	r, ok := m.runs[id]
	var info RunInfo
	if ok {
		info = r.info
	}
	m.mu.RUnlock()
	if ok {
		return info, nil
	}

	rec, err := m.getArchived(ctx, id)
	if err != nil {
		return RunInfo{}, err
	}
	return infoFromRecord(rec), nil
}

// Result returns the GLUE result of a finished run. ErrNoResult is returned,
// along with the run's state, for runs that have none.
func (m *RunManager) Result(ctx context.Context, id string) (*glue.Result, RunInfo, error) {
	m.mu.RLock()
	r, ok := m.runs[id]
	var info RunInfo
	var res *glue.Result
	if ok {
		info, res = r.info, r.result
	}
	m.mu.RUnlock()

	if !ok {
		rec, err := m.getArchived(ctx, id)
		if err != nil {
			return nil, RunInfo{}, err
		}
		info = infoFromRecord(rec)
		if res, err = storage.DecodeResult(rec.Result); err != nil {
			return nil, info, err
		}
	}
	if res == nil {
		return nil, info, ErrNoResult
	}
	return res, info, nil
}

// List returns every known run, oldest first.
func (m *RunManager) List(ctx context.Context) ([]RunInfo, error) {
	m.mu.RLock()
	infos := make([]RunInfo, 0, len(m.runs))
	seen := make(map[string]bool, len(m.runs))
	for id, r := range m.runs {
		infos = append(infos, r.info)
		seen[id] = true
	}
	m.mu.RUnlock()

	if m.store != nil {
		recs, err := m.store.ListRuns(ctx)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			if !seen[rec.ID] {
				infos = append(infos, infoFromRecord(rec))
			}
		}
	}

	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.Before(infos[j].CreatedAt)
		}
		return infos[i].ID < infos[j].ID
	})
	return infos, nil
}

// Cancel stops a queued or running run at its next grid point.
func (m *RunManager) Cancel(ctx context.Context, id string) error {
	m.mu.RLock()
	r, ok := m.runs[id]
	finished := ok && r.info.Status.Finished()
	m.mu.RUnlock()

	if !ok {
		if _, err := m.getArchived(ctx, id); err != nil {
			return err
		}
		return ErrRunFinished
	}
	if finished {
		return ErrRunFinished
	}
	m.logger.Infof("cancelling run %s", id)
	r.cancel()
	return nil
}

func (m *RunManager) getArchived(ctx context.Context, id string) (storage.RunRecord, error) {
	if m.store == nil {
		return storage.RunRecord{}, ErrRunNotFound
	}
	return m.store.GetRun(ctx, id)
}

func infoFromRecord(rec storage.RunRecord) RunInfo {
	info := RunInfo{
		ID:          rec.ID,
		Status:      Status(rec.Status),
		CreatedAt:   rec.CreatedAt,
		Error:       rec.Error,
		GridSize:    rec.GridSize,
		Behavioural: rec.Behavioural,
	}
	if info.Status == StatusDone {
		info.Progress = 100
	}
	if !rec.FinishedAt.IsZero() {
		finished := rec.FinishedAt
		info.FinishedAt = &finished
	}
	return info
}
