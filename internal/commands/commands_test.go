package commands_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"geotask/internal/commands"
	"geotask/internal/config"
	"geotask/internal/device"
	"geotask/internal/exitcode"
	"geotask/internal/reconcile"
	"geotask/internal/remote"
	"geotask/internal/session"
	"geotask/internal/task"
	"geotask/internal/testutil"
)

var madrid = &task.Coordinates{Latitude: 40.4, Longitude: -3.7}

// newDeps wires an engine over svc the way the CLI does, reporting to errOut.
func newDeps(svc *testutil.FakeService, errOut io.Writer, locator device.Locator) *commands.Deps {
	if locator == nil {
		locator = &device.StaticLocator{Granted: true, Position: madrid}
	}
	photos := &device.Photos{}
	engine := reconcile.New(svc, nil,
		reconcile.WithDevice(photos, locator),
		reconcile.WithReporter(reconcile.ReporterFunc(func(err error) {
			fmt.Fprintf(errOut, "error: %v\n", err)
		})),
	)
	return &commands.Deps{
		Service:  svc,
		Engine:   engine,
		Sessions: session.NewStore(session.NewMemoryKV()),
		Photos:   photos,
		LoggedIn: true,
	}
}

func testConfig(t *testing.T, quiet bool) *config.Config {
	t.Helper()
	cfg, err := config.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cfg.Quiet = quiet
	return cfg
}

// runCommand is a helper to run a command with FakeService. args may carry
// command flags; they are parsed the way the dispatcher parses them.
func runCommand(t *testing.T, cmd commands.Command, svc *testutil.FakeService, args []string, quiet bool) (stdout, stderr string, code int) {
	t.Helper()
	return runWith(t, cmd, testConfig(t, quiet), svc, nil, args)
}

func runWith(t *testing.T, cmd commands.Command, cfg *config.Config, svc *testutil.FakeService, locator device.Locator, args []string) (stdout, stderr string, code int) {
	t.Helper()

	fs := newFlagSet(cmd)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	var outBuf, errBuf bytes.Buffer
	var deps *commands.Deps
	if svc != nil {
		deps = newDeps(svc, &errBuf, locator)
	}
	code = cmd.Run(context.Background(), cfg, deps, fs.Args(), &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

func newFlagSet(cmd commands.Command) *flag.FlagSet {
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	cmd.RegisterFlags(fs)
	return fs
}

func writePhoto(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photo.jpg")
	if err := os.WriteFile(path, []byte("\xff\xd8\xff\xe0jpeg"), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

// Tests for version command
func TestVersionCommand(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.VersionCmd{}, nil, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "geotask 0.1.0\n" {
		t.Errorf("expected version output, got %q", stdout)
	}
}

// Tests for help command
func TestHelpCommand(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.HelpCmd{}, nil, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if !strings.Contains(stdout, "Usage:") || !strings.Contains(stdout, "geotask add") {
		t.Errorf("unexpected help output: %q", stdout)
	}
}

// Tests for list command
func TestListCommand_WithTasks(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddTask(task.Record{"title": "Buy milk", "address": "Main St", "latitude": 1.5, "longitude": 2.5})
	svc.AddTask(task.Record{"title": "Walk dog", "completed": true})

	stdout, stderr, code := runCommand(t, &commands.ListCmd{}, svc, nil, false)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	want := "   1  [ ] Buy milk\n      Main St (1.5,2.5)\n   2  [x] Walk dog\n"
	if stdout != want {
		t.Errorf("expected %q, got %q", want, stdout)
	}
}

func TestListCommand_Empty(t *testing.T) {
	stdout, _, code := runCommand(t, &commands.ListCmd{}, testutil.NewFakeService(), nil, false)
	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "no tasks found\n" {
		t.Errorf("expected 'no tasks found', got %q", stdout)
	}
}

func TestListCommand_EmptyQuiet(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.ListCmd{}, testutil.NewFakeService(), nil, true)
	if code != exitcode.Success || stdout != "" || stderr != "" {
		t.Errorf("got code %d stdout %q stderr %q", code, stdout, stderr)
	}
}

func TestListCommand_JSON(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddTask(task.Record{"_id": "x9", "title": "Photo walk", "photoUri": "https://cdn/x9.jpg"})

	stdout, _, code := runCommand(t, &commands.ListCmd{}, svc, []string{"--format", "json"}, false)
	if code != exitcode.Success {
		t.Fatalf("expected success, got %d", code)
	}
	var got []map[string]any
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}
	if len(got) != 1 || got[0]["id"] != "x9" || got[0]["photo"] != "https://cdn/x9.jpg" || got[0]["state"] != "synced" {
		t.Errorf("got %v", got)
	}
}

func TestListCommand_UnknownFormat(t *testing.T) {
	svc := testutil.NewFakeService()
	_, stderr, code := runCommand(t, &commands.ListCmd{}, svc, []string{"--format", "xml"}, false)
	if code != exitcode.UserError || stderr != "error: unknown format: xml\n" {
		t.Errorf("got code %d stderr %q", code, stderr)
	}
	if len(svc.Calls()) != 0 {
		t.Errorf("backend should not be called, got %v", svc.Calls())
	}
}

func TestListCommand_BackendError(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.ListErr = &remote.RequestError{Status: 500, Path: "/todos", Message: "boom"}

	_, stderr, code := runCommand(t, &commands.ListCmd{}, svc, nil, false)
	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
	if strings.Count(stderr, "error:") != 1 || !strings.Contains(stderr, "boom") {
		t.Errorf("expected the error reported once, got %q", stderr)
	}
}

func TestListCommand_SessionExpired(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.ListErr = &remote.SessionExpiredError{Message: "token expired"}

	_, _, code := runCommand(t, &commands.ListCmd{}, svc, nil, false)
	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
}

// Tests for add command
func TestAddCommand_Success(t *testing.T) {
	svc := testutil.NewFakeService()
	photo := writePhoto(t)

	stdout, stderr, code := runCommand(t, &commands.AddCmd{}, svc, []string{"--photo", photo, "Fix", "the", "bench"}, false)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	if stdout != "ok t1\n" {
		t.Errorf("expected 'ok t1', got %q", stdout)
	}
	rec, ok := svc.Task("t1")
	if !ok {
		t.Fatal("task not created")
	}
	if rec.Title() != "Fix the bench" || rec["photoUri"] != photo {
		t.Errorf("got %v", rec)
	}
	if c, ok := task.CoordinatesOf(rec); !ok || c != *madrid {
		t.Errorf("coordinates = %v, %v", c, ok)
	}
}

func TestAddCommand_Quiet(t *testing.T) {
	stdout, _, code := runCommand(t, &commands.AddCmd{}, testutil.NewFakeService(), []string{"-p", writePhoto(t), "Quiet"}, true)
	if code != exitcode.Success || stdout != "" {
		t.Errorf("got code %d stdout %q", code, stdout)
	}
}

func TestAddCommand_UserErrors(t *testing.T) {
	photo := writePhoto(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no title", []string{"--photo", photo}, "error: title required\n"},
		{"blank title", []string{"--photo", photo, "  "}, "error: title required\n"},
		{"no photo", []string{"Title"}, "error: photo required (--photo <file> or --camera)\n"},
		{"both sources", []string{"--photo", photo, "--camera", "Title"}, "error: cannot use both --photo and --camera\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := testutil.NewFakeService()
			_, stderr, code := runCommand(t, &commands.AddCmd{}, svc, tt.args, false)
			if code != exitcode.UserError {
				t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
			}
			if stderr != tt.want {
				t.Errorf("expected %q, got %q", tt.want, stderr)
			}
			if len(svc.Calls()) != 0 {
				t.Errorf("backend should not be called, got %v", svc.Calls())
			}
		})
	}
}

func TestAddCommand_DeviceErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		locator device.Locator
	}{
		{"missing photo file", []string{"--photo", filepath.Join(t.TempDir(), "nope.jpg"), "Title"}, nil},
		{"no camera configured", []string{"--camera", "Title"}, nil},
		{"location denied", []string{"--photo", writePhoto(t), "Title"}, &device.StaticLocator{Granted: false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := testutil.NewFakeService()
			_, stderr, code := runWith(t, &commands.AddCmd{}, testConfig(t, false), svc, tt.locator, tt.args)
			if code != exitcode.DeviceError {
				t.Errorf("expected exit code %d, got %d (stderr %q)", exitcode.DeviceError, code, stderr)
			}
			for _, call := range svc.Calls() {
				if strings.HasPrefix(call, "create") {
					t.Errorf("task should not be created, calls %v", svc.Calls())
				}
			}
		})
	}
}

func TestAddCommand_NoPositionStillCreates(t *testing.T) {
	svc := testutil.NewFakeService()
	_, stderr, code := runWith(t, &commands.AddCmd{}, testConfig(t, false), svc,
		&device.StaticLocator{Granted: true}, []string{"--photo", writePhoto(t), "Indoors"})
	if code != exitcode.Success {
		t.Fatalf("expected success, got %d (stderr %q)", code, stderr)
	}
	rec, _ := svc.Task("t1")
	if _, ok := task.CoordinatesOf(rec); ok {
		t.Errorf("expected no coordinates, got %v", rec)
	}
}

func TestAddCommand_BackendError(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.CreateErr = errors.New("upload exploded")

	_, stderr, code := runCommand(t, &commands.AddCmd{}, svc, []string{"--photo", writePhoto(t), "T"}, false)
	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
	if stderr != "error: upload exploded\n" {
		t.Errorf("got %q", stderr)
	}
}

// Tests for done command
func TestDoneCommand_Toggles(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddTask(task.Record{"title": "First"})
	id := svc.AddTask(task.Record{"title": "Second"})

	stdout, stderr, code := runCommand(t, &commands.DoneCmd{}, svc, []string{"2"}, false)
	if code != exitcode.Success {
		t.Fatalf("expected success, got %d (stderr %q)", code, stderr)
	}
	if stdout != "ok completed\n" {
		t.Errorf("got %q", stdout)
	}
	if rec, _ := svc.Task(id); !rec.Completed() {
		t.Error("task should be completed")
	}

	stdout, _, code = runCommand(t, &commands.DoneCmd{}, svc, []string{id}, false)
	if code != exitcode.Success || stdout != "ok reopened\n" {
		t.Errorf("got code %d stdout %q", code, stdout)
	}
	if rec, _ := svc.Task(id); rec.Completed() {
		t.Error("task should be reopened")
	}
}

func TestDoneCommand_RefErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no ref", nil, "error: task reference required\n"},
		{"out of range", []string{"3"}, "error: task number out of range: 3\n"},
		{"unknown id", []string{"nope"}, "error: task not found: nope\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := testutil.NewFakeService()
			svc.AddTask(task.Record{"title": "Only"})
			_, stderr, code := runCommand(t, &commands.DoneCmd{}, svc, tt.args, false)
			if code != exitcode.UserError {
				t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
			}
			if stderr != tt.want {
				t.Errorf("expected %q, got %q", tt.want, stderr)
			}
		})
	}
}

func TestDoneCommand_Rejected(t *testing.T) {
	svc := testutil.NewFakeService()
	id := svc.AddTask(task.Record{"title": "Stuck"})
	svc.UpdateErr = &remote.RequestError{Status: 409, Path: "/todos/" + id, Message: "conflict"}

	_, stderr, code := runCommand(t, &commands.DoneCmd{}, svc, []string{"1"}, false)
	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
	if !strings.Contains(stderr, "conflict") {
		t.Errorf("got %q", stderr)
	}
	if rec, _ := svc.Task(id); rec.Completed() {
		t.Error("task should be unchanged")
	}
}

// Tests for rm command
func TestRmCommand_Success(t *testing.T) {
	svc := testutil.NewFakeService()
	id := svc.AddTask(task.Record{"title": "Doomed"})

	stdout, _, code := runCommand(t, &commands.RmCmd{}, svc, []string{"1"}, false)
	if code != exitcode.Success || stdout != "ok\n" {
		t.Errorf("got code %d stdout %q", code, stdout)
	}
	if _, ok := svc.Task(id); ok {
		t.Error("task should be removed")
	}
}

func TestRmCommand_NoRef(t *testing.T) {
	svc := testutil.NewFakeService()
	_, stderr, code := runCommand(t, &commands.RmCmd{}, svc, nil, false)
	if code != exitcode.UserError || stderr != "error: task reference required\n" {
		t.Errorf("got code %d stderr %q", code, stderr)
	}
	if len(svc.Calls()) != 0 {
		t.Errorf("backend should not be called, got %v", svc.Calls())
	}
}

func TestRmCommand_Rejected(t *testing.T) {
	svc := testutil.NewFakeService()
	id := svc.AddTask(task.Record{"title": "Sticky"})
	svc.RemoveErr = &remote.RequestError{Status: 403, Path: "/todos/" + id, Message: "forbidden"}

	_, _, code := runCommand(t, &commands.RmCmd{}, svc, []string{"id:" + id}, false)
	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
	if _, ok := svc.Task(id); !ok {
		t.Error("task should still exist")
	}
}

// Tests for whoami command
func TestWhoamiCommand(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.Account = task.Record{"name": "Ada", "email": "ada@example.com", "roles": []any{"admin"}}

	stdout, _, code := runCommand(t, &commands.WhoamiCmd{}, svc, nil, false)
	if code != exitcode.Success {
		t.Fatalf("expected success, got %d", code)
	}
	if stdout != "email: ada@example.com\nname: Ada\n" {
		t.Errorf("got %q", stdout)
	}
}

func TestWhoamiCommand_Expired(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.MeErr = &remote.SessionExpiredError{}

	_, stderr, code := runCommand(t, &commands.WhoamiCmd{}, svc, nil, false)
	if code != exitcode.AuthError || stderr != "error: session expired\n" {
		t.Errorf("got code %d stderr %q", code, stderr)
	}
}
