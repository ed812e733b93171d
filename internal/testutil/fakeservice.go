// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"geotask/internal/remote"
	"geotask/internal/service"
	"geotask/internal/task"
)

// FakeService is an in-memory implementation of service.Service for testing.
type FakeService struct {
	mu     sync.Mutex
	tasks  []task.Record
	nextID int
	calls  []string

	// Token is returned by Login. Defaults to "fake-token".
	Token string

	// Password, when set, is the only password Login accepts.
	Password string

	// Account is returned by Me.
	Account task.Record

	// StripOnList removes these fields from records returned by List,
	// simulating a backend that does not echo them back.
	StripOnList []string

	// Error injection for testing
	LoginErr  error
	MeErr     error
	ListErr   error
	CreateErr error
	UpdateErr error
	RemoveErr error
}

// NewFakeService creates an empty FakeService.
func NewFakeService() *FakeService {
	return &FakeService{}
}

// AddTask stores a copy of rec and returns its id. A missing id is assigned.
func (f *FakeService) AddTask(rec task.Record) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec = rec.Clone()
	if rec == nil {
		rec = task.Record{}
	}
	id, err := rec.ID()
	if err != nil {
		id = f.newID()
		rec["id"] = id
	}
	f.tasks = append(f.tasks, rec)
	return id
}

// Task returns the stored record with the given id.
func (f *FakeService) Task(id string) (task.Record, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.indexOf(id); i >= 0 {
		return f.tasks[i].Clone(), true
	}
	return nil, false
}

// Calls returns the operations performed so far, e.g. "list" or "remove t1".
func (f *FakeService) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Login implements service.Service.
func (f *FakeService) Login(ctx context.Context, email, password string) (string, error) {
	f.record("login " + email)
	if f.LoginErr != nil {
		return "", f.LoginErr
	}
	if f.Password != "" && password != f.Password {
		return "", fmt.Errorf("%w: wrong password", service.ErrInvalidCredentials)
	}
	if f.Token == "" {
		return "fake-token", nil
	}
	return f.Token, nil
}

// Me implements service.Service.
func (f *FakeService) Me(ctx context.Context) (task.Record, error) {
	f.record("me")
	if f.MeErr != nil {
		return nil, f.MeErr
	}
	return f.Account.Clone(), nil
}

// List implements service.Service.
func (f *FakeService) List(ctx context.Context) ([]task.Record, error) {
	f.record("list")
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]task.Record, len(f.tasks))
	for i, rec := range f.tasks {
		c := rec.Clone()
		for _, field := range f.StripOnList {
			delete(c, field)
		}
		out[i] = c
	}
	return out, nil
}

// Create implements service.Service.
func (f *FakeService) Create(ctx context.Context, params service.CreateParams) (task.Record, error) {
	f.record("create " + params.Title)
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := task.Record{
		"id":        f.newID(),
		"title":     params.Title,
		"completed": false,
		"photoUri":  params.Photo,
	}
	if params.Coordinates != nil {
		rec["latitude"] = params.Coordinates.Latitude
		rec["longitude"] = params.Coordinates.Longitude
	}
	if params.Address != "" {
		rec["address"] = params.Address
	}
	f.tasks = append(f.tasks, rec)
	return rec.Clone(), nil
}

// UpdateCompleted implements service.Service.
func (f *FakeService) UpdateCompleted(ctx context.Context, id string, completed bool) (task.Record, error) {
	f.record(fmt.Sprintf("update %s %t", id, completed))
	if f.UpdateErr != nil {
		return nil, f.UpdateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexOf(id)
	if i < 0 {
		return nil, notFound(id)
	}
	f.tasks[i].SetCompleted(completed)
	return f.tasks[i].Clone(), nil
}

// Remove implements service.Service.
func (f *FakeService) Remove(ctx context.Context, id string) error {
	f.record("remove " + id)
	if f.RemoveErr != nil {
		return f.RemoveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexOf(id)
	if i < 0 {
		return notFound(id)
	}
	f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
	return nil
}

func (f *FakeService) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *FakeService) newID() string {
	f.nextID++
	return fmt.Sprintf("t%d", f.nextID)
}

func (f *FakeService) indexOf(id string) int {
	for i, rec := range f.tasks {
		if got, _ := rec.ID(); got == id {
			return i
		}
	}
	return -1
}

func notFound(id string) error {
	return &remote.RequestError{Status: http.StatusNotFound, Path: "/todos/" + id, Message: "not found"}
}

var _ service.Service = (*FakeService)(nil)
