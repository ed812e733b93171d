package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"geotask/internal/cli"
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

// testFactory creates a deps factory around the given FakeService.
func testFactory(svc *testutil.FakeService, loggedIn bool, sessions *session.Store) cli.DepsFactory {
	return func(ctx context.Context, cfg *config.Config, errOut io.Writer) (*commands.Deps, error) {
		photos := &device.Photos{}
		locator := &device.StaticLocator{Granted: true, Position: &task.Coordinates{Latitude: 1, Longitude: 2}}
		return &commands.Deps{
			Service: svc,
			Engine: reconcile.New(svc, nil,
				reconcile.WithDevice(photos, locator),
				reconcile.WithReporter(reconcile.ReporterFunc(func(err error) {
					fmt.Fprintf(errOut, "error: %v\n", err)
				}))),
			Sessions: sessions,
			Photos:   photos,
			LoggedIn: loggedIn,
		}, nil
	}
}

// configDir writes config.toml into a fresh directory. An empty toml sets only the API URL.
func configDir(t *testing.T, toml string) string {
	t.Helper()
	dir := t.TempDir()
	if toml == "" {
		toml = `api_url = "https://api.example.com"`
	}
	if err := os.WriteFile(filepath.Join(dir, config.ConfigFile), []byte(toml+"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	return dir
}

func run(d *cli.Dispatcher, args ...string) (stdout, stderr string, code int) {
	var outBuf, errBuf bytes.Buffer
	code = d.Run(context.Background(), args, &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(testutil.NewFakeService(), true, nil))

	_, stderr, code := run(dispatcher, "unknowncmd")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: unknown command: unknowncmd\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestDispatcher_FlagBeforeCommand(t *testing.T) {
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(testutil.NewFakeService(), true, nil))

	_, stderr, code := run(dispatcher, "--quiet")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: unknown command: --quiet\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestDispatcher_HelpAndVersionSkipFactory(t *testing.T) {
	factory := func(context.Context, *config.Config, io.Writer) (*commands.Deps, error) {
		t.Fatal("factory should not be called")
		return nil, nil
	}
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, factory)

	stdout, stderr, code := run(dispatcher, "help", "--config", t.TempDir())
	if code != exitcode.Success || stderr != "" || !strings.Contains(stdout, "Usage:") {
		t.Errorf("help: code %d stdout %q stderr %q", code, stdout, stderr)
	}

	stdout, _, code = run(dispatcher, "version", "--config", t.TempDir())
	if code != exitcode.Success || stdout != "geotask 0.1.0\n" {
		t.Errorf("version: code %d stdout %q", code, stdout)
	}
}

func TestDispatcher_UnknownFlag(t *testing.T) {
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(testutil.NewFakeService(), true, nil))

	_, stderr, code := run(dispatcher, "help", "--unknown")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: unknown flag: -unknown\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestDispatcher_MissingFlagValue(t *testing.T) {
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(testutil.NewFakeService(), true, nil))

	_, stderr, code := run(dispatcher, "list", "--format")
	if code != exitcode.UserError || stderr != "error: flag needs an argument: -format\n" {
		t.Errorf("got code %d stderr %q", code, stderr)
	}
}

func TestDispatcher_NoArgsLists(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddTask(task.Record{"title": "Default"})
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(svc, true, nil))

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("GEOTASK_API_URL", "https://api.example.com")
	stdout, stderr, code := run(dispatcher)
	if code != exitcode.Success {
		t.Fatalf("expected success, got %d (stderr %q)", code, stderr)
	}
	if stdout != "   1  [ ] Default\n" {
		t.Errorf("got %q", stdout)
	}
}

func TestDispatcher_InvalidConfig(t *testing.T) {
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(testutil.NewFakeService(), true, nil))

	_, stderr, code := run(dispatcher, "list", "--config", configDir(t, `backend = "carrier-pigeon"`))
	if code != exitcode.UserError || stderr != "error: unknown backend: carrier-pigeon\n" {
		t.Errorf("got code %d stderr %q", code, stderr)
	}
}

func TestDispatcher_NotLoggedIn(t *testing.T) {
	svc := testutil.NewFakeService()
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(svc, false, nil))

	_, stderr, code := run(dispatcher, "list", "--config", configDir(t, ""))
	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if stderr != "error: not logged in (run: geotask login)\n" {
		t.Errorf("got %q", stderr)
	}
	if len(svc.Calls()) != 0 {
		t.Errorf("backend should not be called, got %v", svc.Calls())
	}
}

func TestDispatcher_ProfileCheck(t *testing.T) {
	tests := []struct {
		name      string
		meErr     error
		account   task.Record
		code      int
		keepsSess bool
	}{
		{"valid", nil, task.Record{"email": "a@b"}, exitcode.Success, true},
		{"empty profile", nil, nil, exitcode.AuthError, false},
		{"rejected", &remote.RequestError{Status: 403, Path: "/me", Message: "forbidden"}, nil, exitcode.AuthError, false},
		{"expired", &remote.SessionExpiredError{}, nil, exitcode.AuthError, false},
		{"offline", errors.New("dial tcp: connection refused"), nil, exitcode.BackendError, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := testutil.NewFakeService()
			svc.MeErr = tt.meErr
			svc.Account = tt.account
			sessions := session.NewStore(session.NewMemoryKV())
			if err := sessions.Save(session.Session{Token: "tok", Email: "a@b"}); err != nil {
				t.Fatal(err)
			}
			dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(svc, true, sessions))

			dir := configDir(t, "api_url = \"https://api.example.com\"\nme_path = \"/me\"")
			_, stderr, code := run(dispatcher, "list", "--config", dir)
			if code != tt.code {
				t.Errorf("expected exit code %d, got %d (stderr %q)", tt.code, code, stderr)
			}
			if sessions.Current().Valid() != tt.keepsSess {
				t.Errorf("session valid = %t, want %t", sessions.Current().Valid(), tt.keepsSess)
			}
		})
	}
}

// TestDispatcher_EndToEnd drives the production wiring against a fake REST API.
func TestDispatcher_EndToEnd(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.Omit = []string{"latitude", "longitude"}

	dir := configDir(t, fmt.Sprintf("api_url = %q\nlocation = \"40.4168,-3.7038\"", api.URL))
	photo := filepath.Join(t.TempDir(), "bench.jpg")
	if err := os.WriteFile(photo, []byte("\xff\xd8\xff\xe0jpeg"), 0600); err != nil {
		t.Fatal(err)
	}
	d := cli.NewDispatcher(commands.DefaultRegistry, nil)

	if _, stderr, code := run(d, "list", "--config", dir); code != exitcode.AuthError {
		t.Fatalf("list before login: code %d stderr %q", code, stderr)
	}

	if stdout, stderr, code := run(d, "login", "--config", dir, "--email", "ada@example.com", "--password", "pw"); code != exitcode.Success || stdout != "ok\n" {
		t.Fatalf("login: code %d stdout %q stderr %q", code, stdout, stderr)
	}

	stdout, stderr, code := run(d, "add", "--config", dir, "--photo", photo, "Fix", "bench")
	if code != exitcode.Success || stdout != "ok 1\n" {
		t.Fatalf("add: code %d stdout %q stderr %q", code, stdout, stderr)
	}
	if api.Uploads() != 1 {
		t.Errorf("uploads = %d", api.Uploads())
	}
	stored := api.Tasks()
	if len(stored) != 1 || !strings.HasSuffix(fmt.Sprint(stored[0]["photoUri"]), "/uploads/bench.jpg") {
		t.Errorf("stored = %v", stored)
	}

	// The API drops coordinates from its list; the local overlay restores them.
	stdout, stderr, code = run(d, "list", "--config", dir, "--format", "json")
	if code != exitcode.Success {
		t.Fatalf("list: code %d stderr %q", code, stderr)
	}
	var views []map[string]any
	if err := json.Unmarshal([]byte(stdout), &views); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}
	if len(views) != 1 || views[0]["title"] != "Fix bench" {
		t.Fatalf("views = %v", views)
	}
	coords, _ := views[0]["coordinates"].(map[string]any)
	if coords["latitude"] != 40.4168 || coords["longitude"] != -3.7038 {
		t.Errorf("coordinates = %v", views[0]["coordinates"])
	}

	if stdout, stderr, code := run(d, "done", "--config", dir, "1"); code != exitcode.Success || stdout != "ok completed\n" {
		t.Fatalf("done: code %d stdout %q stderr %q", code, stdout, stderr)
	}
	if stored := api.Tasks(); stored[0]["completed"] != true {
		t.Errorf("completed = %v", stored[0]["completed"])
	}

	if stdout, stderr, code := run(d, "rm", "--config", dir, "id:1"); code != exitcode.Success || stdout != "ok\n" {
		t.Fatalf("rm: code %d stdout %q stderr %q", code, stdout, stderr)
	}
	if len(api.Tasks()) != 0 {
		t.Errorf("tasks left: %v", api.Tasks())
	}

	if stdout, _, code := run(d, "logout", "--config", dir); code != exitcode.Success || stdout != "ok\n" {
		t.Fatalf("logout: code %d stdout %q", code, stdout)
	}
	if _, _, code := run(d, "list", "--config", dir); code != exitcode.AuthError {
		t.Errorf("list after logout: code %d", code)
	}
}

func TestDispatcher_EndToEndExpiredToken(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	dir := configDir(t, fmt.Sprintf("api_url = %q", api.URL))
	d := cli.NewDispatcher(commands.DefaultRegistry, nil)

	if _, stderr, code := run(d, "login", "--config", dir, "--email", "a@b", "--password", "pw"); code != exitcode.Success {
		t.Fatalf("login: %d %q", code, stderr)
	}
	stale := session.NewStore(session.NewFileKV(filepath.Join(dir, config.SessionFile)))
	if err := stale.Save(session.Session{Token: "rotated", Email: "a@b"}); err != nil {
		t.Fatal(err)
	}

	_, stderr, code := run(d, "list", "--config", dir)
	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if stderr != "error: session expired: invalid token (run: geotask login)\n" {
		t.Errorf("got %q", stderr)
	}
	if _, stderr, code := run(d, "list", "--config", dir); code != exitcode.AuthError || stderr != "error: not logged in (run: geotask login)\n" {
		t.Errorf("session should be cleared: code %d stderr %q", code, stderr)
	}
}
