package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"membership/internal/admin"
	"membership/internal/student"
)

// Kind says which kind of account a principal is.
type Kind string

const (
	KindAdmin   Kind = RoleAdmin
	KindStudent Kind = RoleStudent
)

// ErrUnknownPrincipal is returned when a token names no live account.
var ErrUnknownPrincipal = errors.New("unknown principal")

// Principal is the authenticated caller. Exactly one of Admin and Student
// is set, matching Kind.
type Principal struct {
	Kind    Kind
	Admin   *admin.Admin
	Student *student.Student
}

// ID returns the record id of the caller.
func (p Principal) ID() uuid.UUID {
	switch p.Kind {
	case KindAdmin:
		return p.Admin.ID
	case KindStudent:
		return p.Student.ID
	}
	return uuid.Nil
}

// Email returns the caller's email address.
func (p Principal) Email() string {
	switch p.Kind {
	case KindAdmin:
		return p.Admin.Email
	case KindStudent:
		return p.Student.Email
	}
	return ""
}

// Admins loads admins by record id.
type Admins interface {
	Get(ctx context.Context, id uuid.UUID) (admin.Admin, error)
}

// Students loads students by record id.
type Students interface {
	Get(ctx context.Context, id uuid.UUID) (student.Student, error)
}

// Resolver turns verified claims into a Principal.
type Resolver struct {
	admins   Admins
	students Students
}

// NewResolver creates a resolver backed by the given lookups.
func NewResolver(admins Admins, students Students) *Resolver {
	return &Resolver{admins: admins, students: students}
}

// Resolve loads the account named by claims.
func (r *Resolver) Resolve(ctx context.Context, claims Claims) (Principal, error) {
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: bad subject", ErrUnknownPrincipal)
	}

	switch claims.Role {
	case RoleAdmin:
		a, err := r.admins.Get(ctx, id)
		if errors.Is(err, admin.ErrNotFound) {
			return Principal{}, ErrUnknownPrincipal
		}
		if err != nil {
			return Principal{}, fmt.Errorf("failed to load admin: %w", err)
		}
		return Principal{Kind: KindAdmin, Admin: &a}, nil
	case RoleStudent:
		st, err := r.students.Get(ctx, id)
		if errors.Is(err, student.ErrNotFound) {
			return Principal{}, ErrUnknownPrincipal
		}
		if err != nil {
			return Principal{}, fmt.Errorf("failed to load student: %w", err)
		}
		return Principal{Kind: KindStudent, Student: &st}, nil
	}
	return Principal{}, fmt.Errorf("%w: role %q", ErrUnknownPrincipal, claims.Role)
}
