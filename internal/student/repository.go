package student

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicate is returned when an insert collides with an existing record
// on something other than the email address.
var ErrDuplicate = errors.New("student already exists")

const uniqueViolation = "23505"

const studentColumns = `id, google_id, name, email, unique_id, age, phone_number, passout_year, department, team, registered_at, updated_at`

// Repository persists students in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStudent(row scanner) (Student, error) {
	var (
		s            Student
		age, passout sql.NullInt32
	)
	err := row.Scan(&s.ID, &s.GoogleID, &s.Name, &s.Email, &s.UniqueID, &age, &s.PhoneNumber,
		&passout, &s.Department, &s.Team, &s.RegisteredAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Student{}, ErrNotFound
		}
		return Student{}, err
	}
	s.Age = intPtr(age)
	s.PassoutYear = intPtr(passout)
	return s, nil
}

func intPtr(v sql.NullInt32) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int32)
	return &i
}

func nullInt(v *int) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*v), Valid: true}
}

// Create inserts a new student.
func (r *Repository) Create(ctx context.Context, s Student) (Student, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO students (id, google_id, name, email, unique_id, age, phone_number, passout_year, department, team)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING registered_at, updated_at
	`, s.ID, s.GoogleID, s.Name, s.Email, s.UniqueID, nullInt(s.Age), s.PhoneNumber, nullInt(s.PassoutYear), s.Department, s.Team)
	if err := row.Scan(&s.RegisteredAt, &s.UpdatedAt); err != nil {
		return Student{}, classify(err, "failed to create student")
	}
	return s, nil
}

// GetByID returns a student by record id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Student, error) {
	return r.getOne(ctx, "id", id)
}

// GetByGoogleID returns a student by external account id.
func (r *Repository) GetByGoogleID(ctx context.Context, googleID string) (Student, error) {
	return r.getOne(ctx, "google_id", googleID)
}

// GetByUniqueID returns the student whose card carries uniqueID.
func (r *Repository) GetByUniqueID(ctx context.Context, uniqueID string) (Student, error) {
	return r.getOne(ctx, "unique_id", uniqueID)
}

func (r *Repository) getOne(ctx context.Context, column string, value any) (Student, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE `+column+` = $1`, value)
	s, err := scanStudent(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Student{}, fmt.Errorf("failed to get student by %s: %w", column, err)
	}
	return s, err
}

// List returns students ordered by registration time, newest first.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Student, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+studentColumns+` FROM students
		ORDER BY registered_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	out := []Student{}
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	return out, nil
}

// Update writes the mutable fields of s. The unique and external account
// ids are never changed.
func (r *Repository) Update(ctx context.Context, s Student) (Student, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE students
		SET name = $2, email = $3, age = $4, phone_number = $5, passout_year = $6,
		    department = $7, team = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, s.ID, s.Name, s.Email, nullInt(s.Age), s.PhoneNumber, nullInt(s.PassoutYear), s.Department, s.Team)
	if err := row.Scan(&s.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Student{}, ErrNotFound
		}
		return Student{}, classify(err, "failed to update student")
	}
	return s, nil
}

// Delete removes a student.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete student: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete student: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func classify(err error, msg string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		if strings.Contains(pgErr.ConstraintName, "email") {
			return ErrEmailTaken
		}
		return ErrDuplicate
	}
	return fmt.Errorf("%s: %w", msg, err)
}
