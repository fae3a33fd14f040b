package student

import (
	"errors"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"

	"membership/internal/card"
)

var (
	// ErrNotFound is returned when no student matches a lookup.
	ErrNotFound = errors.New("student not found")
	// ErrValidation wraps every profile validation failure.
	ErrValidation = errors.New("invalid student data")
	// ErrEmailTaken is returned when another student already uses an email.
	ErrEmailTaken = errors.New("email already registered")
)

// Student is a registered club member.
type Student struct {
	ID           uuid.UUID `json:"id"`
	GoogleID     string    `json:"google_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	UniqueID     string    `json:"unique_id"`
	Age          *int      `json:"age,omitempty"`
	PhoneNumber  string    `json:"phone_number,omitempty"`
	PassoutYear  *int      `json:"passout_year,omitempty"`
	Department   string    `json:"department,omitempty"`
	Team         string    `json:"team,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Public is a student without the external account id, as shown to admins.
type Public struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	UniqueID     string    `json:"unique_id"`
	Age          *int      `json:"age,omitempty"`
	PhoneNumber  string    `json:"phone_number,omitempty"`
	PassoutYear  *int      `json:"passout_year,omitempty"`
	Department   string    `json:"department,omitempty"`
	Team         string    `json:"team,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Public drops the external account id.
func (s Student) Public() Public {
	return Public{
		ID:           s.ID,
		Name:         s.Name,
		Email:        s.Email,
		UniqueID:     s.UniqueID,
		Age:          s.Age,
		PhoneNumber:  s.PhoneNumber,
		PassoutYear:  s.PassoutYear,
		Department:   s.Department,
		Team:         s.Team,
		RegisteredAt: s.RegisteredAt,
	}
}

// Identity returns the fields printed on the student's ID card.
func (s Student) Identity() card.Identity {
	return card.Identity{
		AccountID: s.GoogleID,
		UniqueID:  s.UniqueID,
		Name:      s.Name,
		Email:     s.Email,
	}
}

// Profile is what the identity provider tells us about a signing-in student.
type Profile struct {
	GoogleID string
	Name     string
	Email    string
}

// Update carries optional profile changes. Nil fields are left untouched.
// Email is only honoured for admin updates.
type Update struct {
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	Age         *int    `json:"age"`
	PhoneNumber *string `json:"phone_number"`
	PassoutYear *int    `json:"passout_year"`
	Department  *string `json:"department"`
	Team        *string `json:"team"`
}

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 \-]{5,18}[0-9]$`)

// Validate checks the supplied fields.
func (u Update) Validate() error {
	err := validation.ValidateStruct(&u,
		validation.Field(&u.Name, validation.NilOrNotEmpty, validation.By(notBlank), validation.Length(1, 120)),
		validation.Field(&u.Email, validation.NilOrNotEmpty, validation.By(notBlank), validation.Length(3, 254), is.EmailFormat),
		validation.Field(&u.Age, validation.Min(10), validation.Max(100)),
		validation.Field(&u.PhoneNumber, validation.Match(phonePattern)),
		validation.Field(&u.PassoutYear, validation.Min(1971), validation.Max(2100)),
		validation.Field(&u.Department, validation.Length(0, 120)),
		validation.Field(&u.Team, validation.Length(0, 120)),
	)
	if err != nil {
		return errors.Join(ErrValidation, err)
	}
	return nil
}

func notBlank(value any) error {
	iv, _ := validation.Indirect(value)
	if v, ok := iv.(string); ok && v != "" && strings.TrimSpace(v) == "" {
		return errors.New("cannot be blank")
	}
	return nil
}

// normalized returns a copy with names and emails trimmed and emails
// lowercased, matching how sign-in stores them.
func (u Update) normalized() Update {
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		u.Name = &name
	}
	if u.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*u.Email))
		u.Email = &email
	}
	return u
}

func (u Update) apply(s *Student, allowEmail bool) {
	if u.Name != nil {
		s.Name = *u.Name
	}
	if allowEmail && u.Email != nil {
		s.Email = *u.Email
	}
	if u.Age != nil {
		s.Age = u.Age
	}
	if u.PhoneNumber != nil {
		s.PhoneNumber = *u.PhoneNumber
	}
	if u.PassoutYear != nil {
		s.PassoutYear = u.PassoutYear
	}
	if u.Department != nil {
		s.Department = *u.Department
	}
	if u.Team != nil {
		s.Team = *u.Team
	}
}
