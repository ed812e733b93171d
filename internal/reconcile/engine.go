// Package reconcile keeps a local task list coherent under optimistic mutation
// while the remote list remains the source of truth.
//
// Every mutation is applied locally first, sent to the backend, and then
// either confirmed or reverted. A refresh always replaces the whole local list
// with the authoritative one (last refresh wins); locally known addresses and
// coordinates are merged into fields the backend leaves empty.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"geotask/internal/device"
	"geotask/internal/events"
	"geotask/internal/geocode"
	"geotask/internal/overlay"
	"geotask/internal/remote"
	"geotask/internal/service"
	"geotask/internal/task"
)

var (
	// ErrTitleRequired is returned by CreateAndSync for a blank title.
	ErrTitleRequired = errors.New("title is required")

	// ErrTaskNotFound is returned when an id is not in the local list.
	ErrTaskNotFound = errors.New("task not found")
)

// Reporter surfaces errors to the user.
type Reporter interface {
	Report(err error)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(error)

func (f ReporterFunc) Report(err error) { f(err) }

// Entry is one task in the local list.
type Entry struct {
	ID     string
	Record task.Record
	State  State

	// prev is the pre-mutation record while a mutation is pending.
	prev task.Record
}

// Engine owns the local task list.
//
// Every error returned by Refresh, CreateAndSync, Toggle and Remove has
// already been passed to the Reporter, as have failures of the refresh that
// follows a rejected mutation.
type Engine struct {
	svc      service.Service
	overlay  overlay.Store
	photos   device.PhotoSource
	locator  device.Locator
	geocoder geocode.ReverseGeocoder
	events   events.Publisher
	reporter Reporter
	log      *slog.Logger

	mu      sync.Mutex
	entries []Entry
}

// Option configures an Engine.
type Option func(*Engine)

// WithDevice sets the photo and position sources used by CreateAndSync.
func WithDevice(photos device.PhotoSource, locator device.Locator) Option {
	return func(e *Engine) {
		e.photos = photos
		e.locator = locator
	}
}

// WithGeocoder enables reverse geocoding of new task positions.
func WithGeocoder(g geocode.ReverseGeocoder) Option {
	return func(e *Engine) { e.geocoder = g }
}

// WithPublisher sets the lifecycle event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.events = p }
}

// WithReporter sets the error reporter.
func WithReporter(r Reporter) Option {
	return func(e *Engine) { e.reporter = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates an Engine over svc. A nil store keeps overlay entries in memory.
func New(svc service.Service, store overlay.Store, opts ...Option) *Engine {
	if store == nil {
		store = overlay.NewMemoryStore()
	}
	e := &Engine{
		svc:      svc,
		overlay:  store,
		events:   events.Nop{},
		reporter: ReporterFunc(func(error) {}),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Entries returns a snapshot of the local list.
func (e *Engine) Entries() []Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Entry, len(e.entries))
	for i, en := range e.entries {
		out[i] = Entry{ID: en.ID, Record: en.Record.Clone(), State: en.State}
	}
	return out
}

// Tasks returns the records of the local list in order.
func (e *Engine) Tasks() []task.Record {
	entries := e.Entries()
	out := make([]task.Record, len(entries))
	for i, en := range entries {
		out[i] = en.Record
	}
	return out
}

// Refresh replaces the local list with the authoritative one.
func (e *Engine) Refresh(ctx context.Context) error {
	if err := e.refresh(ctx); err != nil {
		e.reporter.Report(err)
		return err
	}
	return nil
}

func (e *Engine) refresh(ctx context.Context) error {
	records, err := e.svc.List(ctx)
	if err != nil {
		return err
	}

	fresh := make([]Entry, 0, len(records))
	for _, rec := range records {
		id, err := rec.ID()
		if err != nil {
			e.log.Warn("skipping task without identifier", "title", rec.Title())
			continue
		}
		merged := rec.Clone()
		merged["id"] = id
		if oe, ok, err := e.overlay.Get(ctx, id); err != nil {
			e.log.Warn("read overlay", "id", id, "err", err)
		} else if ok {
			merged = overlay.Apply(merged, oe)
		}
		state, _ := Transition(Synced, Reload)
		fresh = append(fresh, Entry{ID: id, Record: merged, State: state})
	}

	e.mu.Lock()
	e.entries = fresh
	e.mu.Unlock()
	return nil
}

// CreateAndSync acquires a photo and the current position, creates the task,
// inserts it at the front of the local list and then refreshes.
// Reverse geocoding is best effort. A refresh failure after a successful
// create is reported but not returned.
func (e *Engine) CreateAndSync(ctx context.Context, title string, useCamera bool) (task.Record, error) {
	created, err := e.create(ctx, title, useCamera)
	if err != nil {
		e.reporter.Report(err)
		return nil, err
	}
	if err := e.refresh(ctx); err != nil {
		e.reporter.Report(fmt.Errorf("refresh after create: %w", err))
	}
	return created, nil
}

func (e *Engine) create(ctx context.Context, title string, useCamera bool) (task.Record, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if e.photos == nil || e.locator == nil {
		return nil, fmt.Errorf("%w: no device configured", device.ErrPermissionDenied)
	}

	photo, err := e.photos.Acquire(ctx, useCamera)
	if err != nil {
		return nil, err
	}
	var created task.Record
	defer func() { e.release(photo, created) }()

	params := service.CreateParams{Title: title, Photo: photo}
	pos, err := e.locator.CurrentPosition(ctx)
	switch {
	case errors.Is(err, device.ErrPositionUnavailable):
		e.log.Warn("creating task without a position", "err", err)
	case err != nil:
		return nil, err
	default:
		params.Coordinates = &pos
		params.Address = e.reverse(ctx, pos)
	}

	created, err = e.svc.Create(ctx, params)
	if err != nil {
		return nil, err
	}

	id, idErr := created.ID()
	if idErr != nil {
		e.log.Warn("created task has no identifier", "title", title)
	} else {
		oe := overlay.Entry{Address: params.Address, Coordinates: params.Coordinates}
		if !oe.Empty() {
			if err := e.overlay.Put(ctx, id, oe); err != nil {
				e.log.Warn("write overlay", "id", id, "err", err)
			}
		}
		e.publish(ctx, events.TaskCreated, id)
	}

	// The server already accepted the task.
	state, _ := Transition(Synced, Mutate)
	state, _ = Transition(state, Confirm)
	e.mu.Lock()
	e.entries = append([]Entry{{ID: id, Record: created.Clone(), State: state}}, e.entries...)
	e.mu.Unlock()
	return created, nil
}

// release hands a temporary photo back to its source unless rec still refers
// to the local file.
func (e *Engine) release(photo string, rec task.Record) {
	r, ok := e.photos.(device.Releaser)
	if !ok || refersTo(rec, photo) {
		return
	}
	if err := r.Release(photo); err != nil {
		e.log.Warn("release photo", "path", photo, "err", err)
	}
}

func refersTo(rec task.Record, path string) bool {
	u := task.FileURL(path)
	for _, v := range rec {
		if s, ok := v.(string); ok && (s == path || s == u) {
			return true
		}
	}
	return false
}

func (e *Engine) reverse(ctx context.Context, pos task.Coordinates) string {
	if e.geocoder == nil {
		return ""
	}
	addr, err := e.geocoder.Reverse(ctx, pos)
	if err != nil {
		e.log.Warn("reverse geocode", "position", pos.String(), "err", err)
		return ""
	}
	return addr
}

// Toggle flips the completion flag of the task with the given id. On failure
// the previous value is restored and the list refreshed.
func (e *Engine) Toggle(ctx context.Context, id string) (task.Record, error) {
	e.mu.Lock()
	i := e.indexOf(id)
	if i < 0 {
		e.mu.Unlock()
		err := fmt.Errorf("%w: %s", ErrTaskNotFound, id)
		e.reporter.Report(err)
		return nil, err
	}
	en := &e.entries[i]
	prev := en.Record.Clone()
	target := !prev.Completed()
	en.prev = prev
	en.Record = prev.Clone()
	en.Record.SetCompleted(target)
	en.State, _ = Transition(en.State, Mutate)
	optimistic := en.Record.Clone()
	e.mu.Unlock()

	confirmed, err := e.svc.UpdateCompleted(ctx, id, target)
	if err != nil {
		e.settle(id, Reject, nil)
		e.fail(ctx, err)
		return nil, err
	}

	merged := optimistic
	for k, v := range confirmed {
		merged[k] = v
	}
	merged["id"] = id
	e.settle(id, Confirm, merged)

	typ := events.TaskReopened
	if merged.Completed() {
		typ = events.TaskCompleted
	}
	e.publish(ctx, typ, id)

	if err := e.refresh(ctx); err != nil {
		e.reporter.Report(fmt.Errorf("refresh after update: %w", err))
	}
	return merged, nil
}

// Remove deletes the task with the given id, dropping it from the local list
// first. On failure the entry is put back and the list refreshed.
func (e *Engine) Remove(ctx context.Context, id string) error {
	e.mu.Lock()
	i := e.indexOf(id)
	if i < 0 {
		e.mu.Unlock()
		err := fmt.Errorf("%w: %s", ErrTaskNotFound, id)
		e.reporter.Report(err)
		return err
	}
	removed := e.entries[i]
	e.entries = append(e.entries[:i:i], e.entries[i+1:]...)
	e.mu.Unlock()

	if err := e.svc.Remove(ctx, id); err != nil {
		state, _ := Transition(OptimisticPending, Reject)
		removed.State = state
		removed.prev = nil
		e.mu.Lock()
		if e.indexOf(id) < 0 {
			at := min(i, len(e.entries))
			e.entries = append(e.entries[:at], append([]Entry{removed}, e.entries[at:]...)...)
		}
		e.mu.Unlock()
		e.fail(ctx, err)
		return err
	}

	e.publish(ctx, events.TaskRemoved, id)
	return nil
}

// settle resolves the pending mutation on id. On Reject the pre-mutation
// record is restored; on Confirm rec replaces the entry.
func (e *Engine) settle(id string, sig Signal, rec task.Record) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexOf(id)
	if i < 0 {
		// A concurrent refresh already replaced the list.
		return
	}
	en := &e.entries[i]
	next, err := Transition(en.State, sig)
	if err != nil {
		e.log.Debug("ignoring stale transition", "id", id, "err", err)
		return
	}
	switch sig {
	case Reject:
		if en.prev != nil {
			en.Record = en.prev
		}
	case Confirm:
		en.Record = rec
	}
	en.prev = nil
	en.State = next
}

// fail reports err and resynchronizes with the server. After a session
// expiry the local revert stands on its own; a refresh would only fail again.
func (e *Engine) fail(ctx context.Context, err error) {
	e.reporter.Report(err)
	if errors.Is(err, remote.ErrSessionExpired) {
		return
	}
	if rerr := e.refresh(ctx); rerr != nil {
		e.reporter.Report(fmt.Errorf("refresh after failure: %w", rerr))
	}
}

func (e *Engine) publish(ctx context.Context, typ, id string) {
	if err := e.events.Publish(ctx, events.New(typ, id)); err != nil {
		e.log.Warn("publish event", "type", typ, "id", id, "err", err)
	}
}

// indexOf must be called with mu held.
func (e *Engine) indexOf(id string) int {
	for i, en := range e.entries {
		if en.ID == id {
			return i
		}
	}
	return -1
}
