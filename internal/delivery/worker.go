package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"membership/internal/card"
	"membership/internal/logger"
	"membership/internal/metrics"
	"membership/internal/queue"
	"membership/internal/student"
)

// Students loads the record a job refers to.
type Students interface {
	Get(ctx context.Context, id uuid.UUID) (student.Student, error)
}

// Deliverer is implemented by Service.
type Deliverer interface {
	Deliver(ctx context.Context, st student.Student, reason Reason) error
}

// Worker consumes delivery jobs from a queue.
type Worker struct {
	q           queue.Queue
	students    Students
	deliverer   Deliverer
	concurrency int
	log         *logger.Logger
	metrics     *metrics.Metrics
}

// NewWorker creates a worker running up to concurrency deliveries at once.
func NewWorker(q queue.Queue, students Students, d Deliverer, concurrency int, log *logger.Logger, m *metrics.Metrics) *Worker {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Worker{q: q, students: students, deliverer: d, concurrency: concurrency, log: log, metrics: m}
}

// Run processes jobs until ctx is cancelled. Jobs already taken from the
// queue run to completion before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	messages, err := w.q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("failed to consume queue: %w", err)
	}

	w.log.Info("Worker: started, waiting for jobs", "concurrency", w.concurrency)
	jobCtx := context.WithoutCancel(ctx)
	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range messages {
				w.handle(jobCtx, msg)
			}
		}()
	}
	wg.Wait()
	w.log.Info("Worker: stopped")
	return nil
}

func (w *Worker) handle(ctx context.Context, msg queue.Message) {
	if msg.Type != JobType {
		w.log.Warn("Worker: ignoring message", "type", msg.Type)
		return
	}
	var job Job
	if err := msg.Decode(&job); err != nil {
		w.log.Error("Worker: malformed job", "error", err)
		return
	}

	st, err := w.students.Get(ctx, job.StudentID)
	if err != nil {
		w.log.Warn("Worker: student unavailable", "student_id", job.StudentID, "error", err)
		w.metrics.ObserveDelivery(string(job.Reason), "skipped")
		return
	}

	err = w.deliverer.Deliver(ctx, st, job.Reason)
	outcome := outcomeOf(err)
	w.metrics.ObserveDelivery(string(job.Reason), outcome)
	if err != nil {
		w.log.Error("Worker: delivery failed", "student_id", job.StudentID, "reason", job.Reason, "outcome", outcome, "error", err)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "sent"
	case errors.Is(err, card.ErrInvalidInput):
		return "invalid_student"
	case errors.Is(err, card.ErrGeneration):
		return "generation_failed"
	case errors.Is(err, ErrDelivery):
		return "send_failed"
	default:
		return "error"
	}
}
