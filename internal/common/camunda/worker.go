// internal/common/camunda/worker.go
package camunda

import (
	"fmt"
	"time"

	"template-validator/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// WorkerOptions describes one job subscription.
type WorkerOptions struct {
	TaskType       string
	MaxJobsActive  int
	Timeout        time.Duration
	FetchVariables []string
	Handler        worker.JobHandler
}

// Worker is an open job subscription for a single task type.
type Worker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// NewWorker opens a job worker on the client's broker connection.
func NewWorker(client *Client, opts WorkerOptions, log logger.Logger) (*Worker, error) {
	if client == nil || client.GetClient() == nil {
		return nil, fmt.Errorf("camunda client is required for %s", opts.TaskType)
	}
	if opts.Handler == nil {
		return nil, fmt.Errorf("handler is required for %s", opts.TaskType)
	}

	builder := client.GetClient().NewJobWorker().
		JobType(opts.TaskType).
		Handler(opts.Handler).
		MaxJobsActive(opts.MaxJobsActive).
		Timeout(opts.Timeout).
		Name(fmt.Sprintf("%s-worker", opts.TaskType))
	if len(opts.FetchVariables) > 0 {
		builder = builder.FetchVariables(opts.FetchVariables...)
	}

	w := &Worker{
		worker:   builder.Open(),
		logger:   log,
		taskType: opts.TaskType,
	}

	log.Info("worker started", map[string]interface{}{
		"taskType":      opts.TaskType,
		"maxJobsActive": opts.MaxJobsActive,
		"timeout":       opts.Timeout.String(),
	})

	return w, nil
}

// Close stops polling and waits for in-flight jobs. The broker connection stays open.
func (w *Worker) Close() {
	if w == nil || w.worker == nil {
		return
	}
	w.logger.Info("stopping worker", map[string]interface{}{"taskType": w.taskType})
	w.worker.Close()
	w.worker.AwaitClose()
	w.worker = nil
}
