// Package device provides the photo and position sources used when creating a task.
package device

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"geotask/internal/config"
	"geotask/internal/task"
)

var (
	// ErrPermissionDenied is returned when a device capability is refused.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrPhotoCancelled is returned when no photo was captured or selected.
	ErrPhotoCancelled = errors.New("photo acquisition cancelled")

	// ErrPositionUnavailable is returned when no position is known.
	ErrPositionUnavailable = errors.New("position unavailable")
)

// PhotoSource returns a local file path to a captured or selected image.
type PhotoSource interface {
	Acquire(ctx context.Context, useCamera bool) (string, error)
}

// Releaser is implemented by photo sources that create temporary files.
// Release is called once the task no longer needs the local copy.
type Releaser interface {
	Release(path string) error
}

// Locator returns the current device position.
type Locator interface {
	CurrentPosition(ctx context.Context) (task.Coordinates, error)
}

// Photos acquires images from a gallery file or an external camera command.
type Photos struct {
	// Gallery is the selected file. Empty means the selection was cancelled.
	Gallery string

	// CameraCommand is run with an output path appended as its last argument.
	CameraCommand string

	// Dir receives camera captures. Defaults to os.TempDir().
	Dir string

	mu       sync.Mutex
	captured map[string]bool
}

// Acquire implements PhotoSource.
func (p *Photos) Acquire(ctx context.Context, useCamera bool) (string, error) {
	if useCamera {
		return p.capture(ctx)
	}
	if strings.TrimSpace(p.Gallery) == "" {
		return "", ErrPhotoCancelled
	}
	if err := checkImage(p.Gallery); err != nil {
		return "", err
	}
	return p.Gallery, nil
}

func (p *Photos) capture(ctx context.Context) (string, error) {
	fields := strings.Fields(p.CameraCommand)
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: camera (set %sCAMERA_COMMAND)", ErrPermissionDenied, config.EnvPrefix)
	}
	dir := p.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	out := filepath.Join(dir, "geotask-"+uuid.NewString()+".jpg")

	cmd := exec.CommandContext(ctx, fields[0], append(fields[1:], out)...)
	cmd.Stdin = os.Stdin
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		_ = os.Remove(out)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", ErrPhotoCancelled
		}
		return "", fmt.Errorf("camera: %w", err)
	}
	if err := checkImage(out); err != nil {
		_ = os.Remove(out)
		return "", err
	}
	p.mu.Lock()
	if p.captured == nil {
		p.captured = make(map[string]bool)
	}
	p.captured[out] = true
	p.mu.Unlock()
	return out, nil
}

// Release removes a camera capture. Gallery files are left alone.
func (p *Photos) Release(path string) error {
	p.mu.Lock()
	ok := p.captured[path]
	delete(p.captured, path)
	p.mu.Unlock()
	if !ok {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// checkImage rejects missing or empty files as a cancelled acquisition.
func checkImage(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s not found", ErrPhotoCancelled, path)
	}
	if err != nil {
		return err
	}
	if info.IsDir() || info.Size() == 0 {
		return fmt.Errorf("%w: %s is not an image", ErrPhotoCancelled, path)
	}
	return nil
}

// StaticLocator reports a configured position once permission is granted.
type StaticLocator struct {
	Granted  bool
	Position *task.Coordinates
}

// LocatorFromConfig builds a StaticLocator from the location settings.
func LocatorFromConfig(cfg *config.Config) (*StaticLocator, error) {
	l := &StaticLocator{Granted: cfg.LocationGranted()}
	if cfg.Location == "" {
		return l, nil
	}
	c, ok := task.ParseCoordinates(cfg.Location)
	if !ok {
		return nil, fmt.Errorf("invalid %sLOCATION: %q (want \"lat,lon\")", config.EnvPrefix, cfg.Location)
	}
	l.Position = &c
	return l, nil
}

// CurrentPosition implements Locator.
func (l *StaticLocator) CurrentPosition(ctx context.Context) (task.Coordinates, error) {
	if !l.Granted {
		return task.Coordinates{}, fmt.Errorf("%w: location", ErrPermissionDenied)
	}
	if l.Position == nil {
		return task.Coordinates{}, ErrPositionUnavailable
	}
	return *l.Position, nil
}
