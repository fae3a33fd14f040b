package delivery

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"membership/internal/mailer"
	"membership/internal/queue"
)

// JobType is the queue message type of card deliveries.
const JobType = "card.deliver"

// Reason says why a card is being sent.
type Reason string

const (
	ReasonWelcome Reason = "welcome"
	ReasonResend  Reason = "resend"
)

func (r Reason) mailKind() (mailer.Kind, bool) {
	switch r {
	case ReasonWelcome:
		return mailer.KindWelcome, true
	case ReasonResend:
		return mailer.KindResend, true
	}
	return "", false
}

// Job asks a worker to deliver a student's ID card.
type Job struct {
	StudentID   uuid.UUID `json:"student_id"`
	Reason      Reason    `json:"reason"`
	RequestedBy string    `json:"requested_by,omitempty"`
}

// Publisher queues delivery jobs.
type Publisher struct {
	q queue.Queue
}

// NewPublisher creates a publisher on q.
func NewPublisher(q queue.Queue) *Publisher {
	return &Publisher{q: q}
}

// Publish queues job.
func (p *Publisher) Publish(ctx context.Context, job Job) error {
	if _, ok := job.Reason.mailKind(); !ok {
		return fmt.Errorf("unknown delivery reason %q", job.Reason)
	}
	msg, err := queue.NewMessage(JobType, job)
	if err != nil {
		return err
	}
	return p.q.Publish(ctx, msg)
}

// EnqueueWelcome queues the welcome email of a new student.
func (p *Publisher) EnqueueWelcome(ctx context.Context, studentID uuid.UUID) error {
	return p.Publish(ctx, Job{StudentID: studentID, Reason: ReasonWelcome})
}

// EnqueueResend queues a copy of the card requested by an administrator.
func (p *Publisher) EnqueueResend(ctx context.Context, studentID uuid.UUID, requestedBy string) error {
	return p.Publish(ctx, Job{StudentID: studentID, Reason: ReasonResend, RequestedBy: requestedBy})
}
