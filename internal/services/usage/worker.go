package usage

import (
	"context"
	"sync"

	"github.com/advisorai/admission-gate/internal/models"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Worker records audit rows off the request path through a bounded
// channel. A full buffer drops the record rather than blocking
// admission.
type Worker struct {
	service  *Service
	tasks    chan RecordTask
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}
}

// RecordTask represents one queued audit record.
type RecordTask struct {
	Params    models.RecordUsageParams
	RequestID string
}

// NewWorker creates a recording worker pool with the specified size.
func NewWorker(service *Service, poolSize, bufferSize int) *Worker {
	w := &Worker{
		service: service,
		tasks:   make(chan RecordTask, bufferSize),
		stopped: make(chan struct{}),
	}

	for range poolSize {
		w.wg.Add(1)
		go w.run()
	}

	return w
}

// Submit queues one audit record. Never blocks.
func (w *Worker) Submit(params models.RecordUsageParams, requestID string) {
	select {
	case <-w.stopped:
		fiberlog.Warnf("[%s] Worker stopped, cannot submit usage recording task", requestID)
		return
	case w.tasks <- RecordTask{Params: params, RequestID: requestID}:
	default:
		fiberlog.Warnf("[%s] Usage recording buffer full, dropping task", requestID)
	}
}

func (w *Worker) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopped:
			return
		case task := <-w.tasks:
			_, err := w.service.RecordUsage(context.Background(), task.Params)
			if err != nil {
				fiberlog.Errorf("[%s] Failed to record usage: %v", task.RequestID, err)
			}
		}
	}
}

// Stop gracefully stops the worker pool.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopped)
		close(w.tasks)
		w.wg.Wait()
	})
}
