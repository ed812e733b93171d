package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"geotask/internal/config"
)

func TestNew_Defaults(t *testing.T) {
	cfg, err := config.New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if cfg.Backend != config.BackendREST || cfg.UploadMode != config.UploadMultipart {
		t.Errorf("unexpected defaults: %+v", cfg.Settings)
	}
	if cfg.TasksPath != "/todos" || cfg.LoginPath != "/auth/login" || cfg.ImagesPath != "/images" {
		t.Errorf("unexpected default paths: %+v", cfg.Settings)
	}
	if d, _ := cfg.Timeout(); d != config.DefaultRequestTimeout {
		t.Errorf("Timeout = %v", d)
	}
}

func TestDefaultConfigDir_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got := config.DefaultConfigDir(); got != filepath.Join("/tmp/xdg", config.AppName) {
		t.Errorf("DefaultConfigDir = %q", got)
	}
}

func TestLoad_Layering(t *testing.T) {
	dir := t.TempDir()
	toml := "api_url = \"https://file.example\"\ntasks_path = \"/tasks\"\nupload_mode = \"base64\"\n"
	if err := os.WriteFile(filepath.Join(dir, config.ConfigFile), []byte(toml), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GEOTASK_API_URL", "https://env.example")

	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIURL != "https://env.example" {
		t.Errorf("env should override file, got %q", cfg.APIURL)
	}
	if cfg.TasksPath != "/tasks" || cfg.UploadMode != config.UploadBase64 {
		t.Errorf("file values not applied: %+v", cfg.Settings)
	}
	if cfg.LoginPath != "/auth/login" {
		t.Errorf("default lost: %q", cfg.LoginPath)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, config.ConfigFile), []byte("api_url = "), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := config.Load(dir); err == nil {
		t.Error("expected error for invalid config.toml")
	}
}

func TestApplyEnv(t *testing.T) {
	cfg, _ := config.New(t.TempDir())
	env := map[string]string{
		"GEOTASK_REQUEST_TIMEOUT":     "2s",
		"GEOTASK_LOCATION_PERMISSION": "denied",
		"GEOTASK_S3_USE_SSL":          "false",
	}
	cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if d, err := cfg.Timeout(); err != nil || d != 2*time.Second {
		t.Errorf("Timeout = %v, %v", d, err)
	}
	if cfg.LocationGranted() {
		t.Error("location permission should be denied")
	}
	if cfg.S3SSL() {
		t.Error("S3SSL should be false")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{"ok", func(c *config.Config) { c.APIURL = "https://api" }, false},
		{"missing api url", func(c *config.Config) {}, true},
		{"googletasks needs no api url", func(c *config.Config) { c.Backend = config.BackendGoogleTasks }, false},
		{"unknown backend", func(c *config.Config) { c.Backend = "ftp" }, true},
		{"unknown upload mode", func(c *config.Config) { c.APIURL = "x"; c.UploadMode = "fax" }, true},
		{"s3 incomplete", func(c *config.Config) { c.APIURL = "x"; c.UploadMode = config.UploadS3 }, true},
		{"s3 complete", func(c *config.Config) {
			c.APIURL = "x"
			c.UploadMode = config.UploadS3
			c.S3Endpoint, c.S3AccessKey, c.S3SecretKey, c.S3Bucket = "e", "a", "s", "b"
		}, false},
		{"bad timeout", func(c *config.Config) { c.APIURL = "x"; c.RequestTimeout = "soon" }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, _ := config.New(t.TempDir())
			tc.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() err = %v; wantErr %v", err, tc.wantErr)
			}
		})
	}
}
