// Package delivery renders a student's ID card, emails it and always removes
// the temporary file afterwards.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/google/uuid"

	"membership/internal/card"
	"membership/internal/logger"
	"membership/internal/mailer"
	"membership/internal/metrics"
	"membership/internal/student"
)

// ErrDelivery matches every DeliveryError.
var ErrDelivery = errors.New("failed to deliver ID card")

// DeliveryError reports that a generated card could not be emailed.
type DeliveryError struct {
	StudentID uuid.UUID
	Email     string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s to %s: %v", ErrDelivery, e.Email, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func (e *DeliveryError) Is(target error) bool { return target == ErrDelivery }

// Generator produces a card file and hands its ownership to the caller.
type Generator interface {
	Generate(ctx context.Context, id card.Identity) (string, error)
}

// Service runs the generate, send, delete cycle.
type Service struct {
	cards   Generator
	mail    mailer.Mailer
	locker  Locker
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewService creates a delivery service. m may be nil.
func NewService(cards Generator, mail mailer.Mailer, locker Locker, log *logger.Logger, m *metrics.Metrics) *Service {
	if locker == nil {
		locker = NewKeyedMutex()
	}
	return &Service{cards: cards, mail: mail, locker: locker, log: log, metrics: m}
}

// Deliver emails st a freshly generated ID card. Deliveries for the same
// student run one at a time, and the card file is removed on every return
// path, including a failed or panicking send.
func (s *Service) Deliver(ctx context.Context, st student.Student, reason Reason) error {
	kind, ok := reason.mailKind()
	if !ok {
		return fmt.Errorf("unknown delivery reason %q", reason)
	}
	id := st.Identity()
	if err := id.Validate(); err != nil {
		return err
	}

	unlock, err := s.locker.Lock(ctx, id.AccountID)
	if err != nil {
		return fmt.Errorf("failed to lock card for %s: %w", st.ID, err)
	}
	defer unlock()

	start := time.Now()
	path, err := s.cards.Generate(ctx, id)
	if err != nil {
		return err
	}
	s.metrics.ObserveRender(time.Since(start))
	defer s.remove(path)

	msg, err := mailer.CardEmail(kind, st.Email, st.Name, path)
	if err != nil {
		return &DeliveryError{StudentID: st.ID, Email: st.Email, Err: err}
	}
	if err := s.mail.Send(ctx, msg); err != nil {
		s.log.Error("Delivery: failed to send id card", "student_id", st.ID, "email", st.Email, "reason", reason, "error", err)
		return &DeliveryError{StudentID: st.ID, Email: st.Email, Err: err}
	}

	s.log.Info("Delivery: id card sent", "student_id", st.ID, "email", st.Email, "reason", reason)
	return nil
}

func (s *Service) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.Error("Delivery: failed to remove card file", "path", path, "error", err)
	}
}
