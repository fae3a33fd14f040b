// Package admin manages club administrators, who sign in with an
// allow-listed Google account.
package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"membership/internal/logger"
)

var (
	ErrNotFound   = errors.New("admin not found")
	ErrNotAllowed = errors.New("account is not an administrator")
)

// Admin is a club administrator.
type Admin struct {
	ID        uuid.UUID `json:"id"`
	GoogleID  string    `json:"-"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository persists admins in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Upsert inserts a, or refreshes name and email when the Google account is
// already known.
func (r *Repository) Upsert(ctx context.Context, a Admin) (Admin, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO admins (id, google_id, name, email)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (google_id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email
		RETURNING id, created_at
	`, a.ID, a.GoogleID, a.Name, a.Email)
	if err := row.Scan(&a.ID, &a.CreatedAt); err != nil {
		return Admin{}, fmt.Errorf("failed to upsert admin: %w", err)
	}
	return a, nil
}

// GetByID returns an admin by record id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Admin, error) {
	var a Admin
	err := r.db.QueryRowContext(ctx, `
		SELECT id, google_id, name, email, created_at FROM admins WHERE id = $1
	`, id).Scan(&a.ID, &a.GoogleID, &a.Name, &a.Email, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Admin{}, ErrNotFound
	}
	if err != nil {
		return Admin{}, fmt.Errorf("failed to get admin: %w", err)
	}
	return a, nil
}

// Store is the persistence the service needs.
type Store interface {
	Upsert(ctx context.Context, a Admin) (Admin, error)
	GetByID(ctx context.Context, id uuid.UUID) (Admin, error)
}

// Service signs administrators in.
type Service struct {
	store   Store
	allowed map[string]struct{}
	log     *logger.Logger
}

// NewService creates a service admitting only the given email addresses.
func NewService(store Store, allowedEmails []string, log *logger.Logger) *Service {
	allowed := make(map[string]struct{}, len(allowedEmails))
	for _, e := range allowedEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			allowed[e] = struct{}{}
		}
	}
	if len(allowed) == 0 {
		log.Warn("Admin: ADMIN_EMAILS is empty, nobody can sign in as administrator")
	}
	return &Service{store: store, allowed: allowed, log: log}
}

// SignIn records the admin behind a verified Google account.
func (s *Service) SignIn(ctx context.Context, googleID, name, email string) (Admin, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, ok := s.allowed[email]; !ok || googleID == "" {
		s.log.Warn("Admin: rejected sign-in", "email", email)
		return Admin{}, ErrNotAllowed
	}
	a, err := s.store.Upsert(ctx, Admin{GoogleID: googleID, Name: name, Email: email})
	if err != nil {
		return Admin{}, err
	}
	s.log.Info("Admin: signed in", "id", a.ID, "email", a.Email)
	return a, nil
}

// Get returns an admin by record id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Admin, error) {
	return s.store.GetByID(ctx, id)
}
