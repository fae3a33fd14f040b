package student

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"membership/internal/logger"
)

// ErrCardQueue is returned when an ID card request cannot be queued.
var ErrCardQueue = errors.New("card delivery unavailable")

// Store is the persistence the service needs.
type Store interface {
	Create(ctx context.Context, s Student) (Student, error)
	GetByID(ctx context.Context, id uuid.UUID) (Student, error)
	GetByGoogleID(ctx context.Context, googleID string) (Student, error)
	GetByUniqueID(ctx context.Context, uniqueID string) (Student, error)
	List(ctx context.Context, limit, offset int) ([]Student, error)
	Update(ctx context.Context, s Student) (Student, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// CardQueue schedules ID card deliveries off the request path.
type CardQueue interface {
	EnqueueWelcome(ctx context.Context, studentID uuid.UUID) error
	EnqueueResend(ctx context.Context, studentID uuid.UUID, requestedBy string) error
}

// Service implements student registration, profile management and verification.
type Service struct {
	store Store
	cards CardQueue
	log   *logger.Logger
}

// NewService creates a service.
func NewService(store Store, cards CardQueue, log *logger.Logger) *Service {
	return &Service{store: store, cards: cards, log: log}
}

// RegisterFromProfile returns the student linked to the profile's account,
// creating one with a fresh unique id on first sign-in. A new student gets a
// welcome card queued; failing to queue it does not fail registration.
func (s *Service) RegisterFromProfile(ctx context.Context, p Profile) (Student, bool, error) {
	if strings.TrimSpace(p.GoogleID) == "" || strings.TrimSpace(p.Email) == "" {
		return Student{}, false, fmt.Errorf("%w: profile must carry an account id and email", ErrValidation)
	}

	existing, err := s.store.GetByGoogleID(ctx, p.GoogleID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Student{}, false, err
	}

	name := strings.TrimSpace(p.Name)
	if name == "" {
		name, _, _ = strings.Cut(p.Email, "@")
	}
	created, err := s.store.Create(ctx, Student{
		ID:       uuid.New(),
		GoogleID: p.GoogleID,
		Name:     name,
		Email:    strings.ToLower(strings.TrimSpace(p.Email)),
		UniqueID: uuid.NewString(),
	})
	if errors.Is(err, ErrDuplicate) {
		// Lost a race with a concurrent first sign-in of the same account.
		existing, err := s.store.GetByGoogleID(ctx, p.GoogleID)
		return existing, false, err
	}
	if err != nil {
		return Student{}, false, err
	}
	s.log.Info("Student: registered", "id", created.ID, "email", created.Email)

	if err := s.cards.EnqueueWelcome(ctx, created.ID); err != nil {
		s.log.Error("Student: failed to queue welcome card", "id", created.ID, "error", err)
	}
	return created, true, nil
}

// Get returns a student by record id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Student, error) {
	return s.store.GetByID(ctx, id)
}

// MaxListLimit caps the page size of List.
const MaxListLimit = 200

// List returns a page of students.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Student, error) {
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.store.List(ctx, limit, offset)
}

// UpdateProfile applies a student's own changes. Email cannot be changed this way.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, u Update) (Student, error) {
	u.Email = nil
	return s.update(ctx, id, u, false)
}

// AdminUpdate applies an administrator's changes, including email.
func (s *Service) AdminUpdate(ctx context.Context, id uuid.UUID, u Update) (Student, error) {
	return s.update(ctx, id, u, true)
}

func (s *Service) update(ctx context.Context, id uuid.UUID, u Update, allowEmail bool) (Student, error) {
	u = u.normalized()
	if err := u.Validate(); err != nil {
		return Student{}, err
	}
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return Student{}, err
	}
	u.apply(&current, allowEmail)
	updated, err := s.store.Update(ctx, current)
	if err != nil {
		return Student{}, err
	}
	s.log.Info("Student: updated", "id", id)
	return updated, nil
}

// Delete removes a student.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("Student: deleted", "id", id)
	return nil
}

// Verify looks up the student whose card carries uniqueID. An unknown id
// yields ErrNotFound.
func (s *Service) Verify(ctx context.Context, uniqueID string) (Student, error) {
	uniqueID = strings.TrimSpace(uniqueID)
	if uniqueID == "" {
		return Student{}, fmt.Errorf("%w: unique id is required", ErrValidation)
	}
	st, err := s.store.GetByUniqueID(ctx, uniqueID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.log.Info("Student: verification failed", "unique_id", uniqueID)
		}
		return Student{}, err
	}
	return st, nil
}

// RequestCard queues a fresh copy of the student's ID card.
func (s *Service) RequestCard(ctx context.Context, id uuid.UUID, requestedBy string) error {
	if _, err := s.store.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.cards.EnqueueResend(ctx, id, requestedBy); err != nil {
		return fmt.Errorf("%w: %w", ErrCardQueue, err)
	}
	s.log.Info("Student: id card requested", "id", id, "requested_by", requestedBy)
	return nil
}
