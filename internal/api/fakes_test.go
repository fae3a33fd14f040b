package api

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"membership/internal/admin"
	"membership/internal/oauth"
	"membership/internal/student"
)

type fakeStudents struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]student.Student
	cardErr error
	cards   []string
}

func newFakeStudents(list ...student.Student) *fakeStudents {
	f := &fakeStudents{byID: map[uuid.UUID]student.Student{}}
	for _, s := range list {
		f.byID[s.ID] = s
	}
	return f
}

func (f *fakeStudents) RegisterFromProfile(_ context.Context, p student.Profile) (student.Student, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.byID {
		if s.GoogleID == p.GoogleID {
			return s, false, nil
		}
		if s.Email == p.Email {
			return student.Student{}, false, student.ErrEmailTaken
		}
	}
	s := student.Student{
		ID:           uuid.New(),
		GoogleID:     p.GoogleID,
		Name:         p.Name,
		Email:        p.Email,
		UniqueID:     uuid.NewString(),
		RegisteredAt: time.Now(),
	}
	f.byID[s.ID] = s
	return s, true, nil
}

func (f *fakeStudents) Get(_ context.Context, id uuid.UUID) (student.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	return s, nil
}

func (f *fakeStudents) List(_ context.Context, _, _ int) ([]student.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]student.Student, 0, len(f.byID))
	for _, s := range f.byID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeStudents) update(id uuid.UUID, u student.Update, allowEmail bool) (student.Student, error) {
	if err := u.Validate(); err != nil {
		return student.Student{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	if u.Name != nil {
		s.Name = *u.Name
	}
	if u.Team != nil {
		s.Team = *u.Team
	}
	if allowEmail && u.Email != nil {
		s.Email = *u.Email
	}
	f.byID[id] = s
	return s, nil
}

func (f *fakeStudents) UpdateProfile(_ context.Context, id uuid.UUID, u student.Update) (student.Student, error) {
	return f.update(id, u, false)
}

func (f *fakeStudents) AdminUpdate(_ context.Context, id uuid.UUID, u student.Update) (student.Student, error) {
	return f.update(id, u, true)
}

func (f *fakeStudents) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return student.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeStudents) Verify(_ context.Context, uniqueID string) (student.Student, error) {
	uniqueID = strings.TrimSpace(uniqueID)
	if uniqueID == "" {
		return student.Student{}, student.ErrValidation
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.byID {
		if s.UniqueID == uniqueID {
			return s, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}

func (f *fakeStudents) RequestCard(ctx context.Context, id uuid.UUID, requestedBy string) error {
	if _, err := f.Get(ctx, id); err != nil {
		return err
	}
	if f.cardErr != nil {
		return fmt.Errorf("%w: %w", student.ErrCardQueue, f.cardErr)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cards = append(f.cards, id.String()+" by "+requestedBy)
	return nil
}

type fakeAdmins struct {
	mu      sync.Mutex
	allowed string
	byID    map[uuid.UUID]admin.Admin
}

func (f *fakeAdmins) SignIn(_ context.Context, googleID, name, email string) (admin.Admin, error) {
	if email != f.allowed {
		return admin.Admin{}, admin.ErrNotAllowed
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byID {
		if a.GoogleID == googleID {
			return a, nil
		}
	}
	a := admin.Admin{ID: uuid.New(), GoogleID: googleID, Name: name, Email: email}
	f.byID[a.ID] = a
	return a, nil
}

func (f *fakeAdmins) Get(_ context.Context, id uuid.UUID) (admin.Admin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return admin.Admin{}, admin.ErrNotFound
	}
	return a, nil
}

type fakeSignIn struct {
	profiles map[string]oauth.Profile
}

func (f fakeSignIn) AuthCodeURL(state string) string {
	return "https://accounts.example/auth?state=" + url.QueryEscape(state)
}

func (f fakeSignIn) Exchange(_ context.Context, code string) (oauth.Profile, error) {
	p, ok := f.profiles[code]
	if !ok {
		return oauth.Profile{}, fmt.Errorf("%w: bad code", oauth.ErrExchange)
	}
	return p, nil
}

type checker bool

func (c checker) Healthy(context.Context) bool { return bool(c) }
