package workgroup

import (
	"context"
	"time"

	"github.com/meidoworks/orgsync/shared/logging"
)

var _workgroupLogger = logging.NewLogger("WorkGroup")

type workGroup interface {
	Run(name string, f func() bool)
	RunContext(ctx context.Context, name string, f func(ctx context.Context) bool) <-chan struct{}
}

var defaultFailOverWorkGroup = failOverWorkGroup{}

// failOverWorkGroup restarts a task after it panics or returns false.
// A task returning true is considered shut down.
type failOverWorkGroup struct {
	restartDelay time.Duration
}

func (f failOverWorkGroup) Run(name string, fn func() bool) {
	f.RunContext(context.Background(), name, func(context.Context) bool {
		return fn()
	})
}

// RunContext stops restarting once ctx is done. The returned channel is closed
// when the task has shut down for good.
func (f failOverWorkGroup) RunContext(ctx context.Context, name string, fn func(ctx context.Context) bool) <-chan struct{} {
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		for {
			if f.runOnce(ctx, name, fn) {
				return
			}
			if ctx.Err() != nil {
				_workgroupLogger.Infof("WorkGroup stops task [%s]: %s", name, ctx.Err())
				return
			}
			if f.restartDelay > 0 {
				timer := time.NewTimer(f.restartDelay)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					_workgroupLogger.Infof("WorkGroup stops task [%s]: %s", name, ctx.Err())
					return
				}
			}
			_workgroupLogger.Infof("WorkGroup reports restarting task [%s] after last task complete", name)
		}
	}()
	return stopped
}

func (f failOverWorkGroup) runOnce(ctx context.Context, name string, fn func(ctx context.Context) bool) (shutdown bool) {
	defer func() {
		if err := recover(); err != nil {
			_workgroupLogger.Errorf("WorkGroup will restart task [%s] after reporting panic: %v", name, err)
			shutdown = false
		}
	}()
	return fn(ctx)
}

func WithFailOver() workGroup {
	return defaultFailOverWorkGroup
}

// WithFailOverDelay waits delay between two runs of a task.
func WithFailOverDelay(delay time.Duration) workGroup {
	return failOverWorkGroup{restartDelay: delay}
}
