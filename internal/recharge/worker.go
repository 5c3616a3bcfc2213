package recharge

import (
	"context"

	"github.com/chrissnell/gwrecharge/internal/glue"
	"go.uber.org/zap"
)

// Update is one message of a running evaluation. Progress updates carry only
// Progress; the terminal update has Done set and carries Result or Err.
type Update struct {
	Progress float64
	Done     bool
	Result   *glue.Result
	Err      error
}

// Start runs Evaluate on its own goroutine. The returned channel delivers
// strictly increasing progress updates, then exactly one terminal update, and
// is then closed. Progress updates are dropped once ctx is done; the terminal
// update is always delivered, so the caller must drain the channel.
func Start(ctx context.Context, in Inputs, cfg Config, logger *zap.SugaredLogger) <-chan Update {
	ch := make(chan Update, 1)
	go func() {
		defer close(ch)
		res, err := Evaluate(ctx, in, cfg, func(p float64) {
			select {
			case ch <- Update{Progress: p}:
			case <-ctx.Done():
			}
		}, logger)
		ch <- Update{Done: true, Result: res, Err: err}
	}()
	return ch
}
