// Package config resolves the configuration directory and the API settings.
//
// Settings are layered: built-in defaults, then config.toml in the config
// directory, then a .env file in the working directory, then GEOTASK_* variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	// AppName is the application directory name.
	AppName = "geotask"

	// ConfigFile is the optional settings file inside the config directory.
	ConfigFile = "config.toml"

	// SessionFile stores the bearer token and email.
	SessionFile = "session.json"

	// OverlayFile is the sqlite database holding local overlay entries.
	OverlayFile = "overlay.db"

	// OAuthClientFile is the OAuth client credentials filename (googletasks backend).
	OAuthClientFile = "oauth_client.json"

	// TokenFile is the stored OAuth token filename (googletasks backend).
	TokenFile = "token.json"

	// EnvPrefix prefixes every environment variable read by Load.
	EnvPrefix = "GEOTASK_"
)

// Backends.
const (
	BackendREST        = "rest"
	BackendGoogleTasks = "googletasks"
)

// Upload modes.
const (
	UploadMultipart = "multipart"
	UploadBase64    = "base64"
	UploadS3        = "s3"
)

// Location permission states.
const (
	PermissionGranted = "granted"
	PermissionDenied  = "denied"
)

// DefaultRequestTimeout bounds every remote call.
const DefaultRequestTimeout = 15 * time.Second

// Settings are the recognized options. Field tags name the config.toml keys;
// the environment variable is EnvPrefix + upper-cased key.
type Settings struct {
	Backend            string `toml:"backend"`
	APIURL             string `toml:"api_url"`
	LoginPath          string `toml:"login_path"`
	TasksPath          string `toml:"tasks_path"`
	ImagesPath         string `toml:"images_path"`
	MePath             string `toml:"me_path"`
	UploadMode         string `toml:"upload_mode"`
	FileField          string `toml:"file_field"`
	ImageURLProp       string `toml:"image_url_prop"`
	TokenProp          string `toml:"token_prop"`
	RequestTimeout     string `toml:"request_timeout"`
	Location           string `toml:"location"`
	LocationPermission string `toml:"location_permission"`
	CameraCommand      string `toml:"camera_command"`
	GeocoderURL        string `toml:"geocoder_url"`
	S3Endpoint         string `toml:"s3_endpoint"`
	S3AccessKey        string `toml:"s3_access_key"`
	S3SecretKey        string `toml:"s3_secret_key"`
	S3Bucket           string `toml:"s3_bucket"`
	S3UseSSL           string `toml:"s3_use_ssl"`
	S3PublicURL        string `toml:"s3_public_url"`
	KafkaBroker        string `toml:"kafka_broker"`
	KafkaTopic         string `toml:"kafka_topic"`
}

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool

	Settings
}

// New creates a new Config with defaults and the default or specified config directory.
// If configDir is empty, uses XDG_CONFIG_HOME/geotask or $HOME/.config/geotask.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	return &Config{Dir: dir, Settings: Defaults()}, nil
}

// Load creates a Config and applies config.toml, .env and the environment.
func Load(configDir string) (*Config, error) {
	cfg, err := New(configDir)
	if err != nil {
		return nil, err
	}
	if err := cfg.LoadFile(); err != nil {
		return nil, err
	}
	dotenv, err := godotenv.Read()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}
	cfg.ApplyEnv(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	})
	return cfg, nil
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		Backend:            BackendREST,
		LoginPath:          "/auth/login",
		TasksPath:          "/todos",
		ImagesPath:         "/images",
		UploadMode:         UploadMultipart,
		FileField:          "image",
		ImageURLProp:       "photoUri",
		TokenProp:          "token",
		RequestTimeout:     DefaultRequestTimeout.String(),
		LocationPermission: PermissionGranted,
		S3UseSSL:           "true",
	}
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// LoadFile overlays config.toml onto the current settings. A missing file is not an error.
func (c *Config) LoadFile() error {
	data, err := os.ReadFile(c.FilePath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", ConfigFile, err)
	}
	if err := toml.Unmarshal(data, &c.Settings); err != nil {
		return fmt.Errorf("invalid %s: %w", ConfigFile, err)
	}
	return nil
}

// ApplyEnv overrides settings from variables returned by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	for key, field := range c.fields() {
		if v, ok := lookup(EnvPrefix + strings.ToUpper(key)); ok {
			*field = v
		}
	}
}

func (c *Config) fields() map[string]*string {
	s := &c.Settings
	return map[string]*string{
		"backend":             &s.Backend,
		"api_url":             &s.APIURL,
		"login_path":          &s.LoginPath,
		"tasks_path":          &s.TasksPath,
		"images_path":         &s.ImagesPath,
		"me_path":             &s.MePath,
		"upload_mode":         &s.UploadMode,
		"file_field":          &s.FileField,
		"image_url_prop":      &s.ImageURLProp,
		"token_prop":          &s.TokenProp,
		"request_timeout":     &s.RequestTimeout,
		"location":            &s.Location,
		"location_permission": &s.LocationPermission,
		"camera_command":      &s.CameraCommand,
		"geocoder_url":        &s.GeocoderURL,
		"s3_endpoint":         &s.S3Endpoint,
		"s3_access_key":       &s.S3AccessKey,
		"s3_secret_key":       &s.S3SecretKey,
		"s3_bucket":           &s.S3Bucket,
		"s3_use_ssl":          &s.S3UseSSL,
		"s3_public_url":       &s.S3PublicURL,
		"kafka_broker":        &s.KafkaBroker,
		"kafka_topic":         &s.KafkaTopic,
	}
}

// Validate checks settings that would otherwise fail on first use.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendREST:
		if c.APIURL == "" {
			return fmt.Errorf("%sAPI_URL not set", EnvPrefix)
		}
	case BackendGoogleTasks:
	default:
		return fmt.Errorf("unknown backend: %s", c.Backend)
	}

	switch c.UploadMode {
	case UploadMultipart, UploadBase64:
	case UploadS3:
		if c.S3Endpoint == "" || c.S3AccessKey == "" || c.S3SecretKey == "" || c.S3Bucket == "" {
			return fmt.Errorf("upload mode s3 requires %[1]sS3_ENDPOINT, %[1]sS3_ACCESS_KEY, %[1]sS3_SECRET_KEY and %[1]sS3_BUCKET", EnvPrefix)
		}
	default:
		return fmt.Errorf("unknown upload mode: %s", c.UploadMode)
	}

	if _, err := c.Timeout(); err != nil {
		return err
	}
	return nil
}

// Timeout returns the parsed request timeout.
func (c *Config) Timeout() (time.Duration, error) {
	if c.RequestTimeout == "" {
		return DefaultRequestTimeout, nil
	}
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid request timeout: %s", c.RequestTimeout)
	}
	return d, nil
}

// LocationGranted reports whether the device position may be read.
func (c *Config) LocationGranted() bool {
	return !strings.EqualFold(c.LocationPermission, PermissionDenied)
}

// S3SSL reports whether the S3 endpoint is reached over TLS.
func (c *Config) S3SSL() bool {
	return strings.EqualFold(c.S3UseSSL, "true")
}

// FilePath returns the path to config.toml.
func (c *Config) FilePath() string {
	return filepath.Join(c.Dir, ConfigFile)
}

// SessionPath returns the path to the persisted session.
func (c *Config) SessionPath() string {
	return filepath.Join(c.Dir, SessionFile)
}

// OverlayPath returns the path to the overlay database.
func (c *Config) OverlayPath() string {
	return filepath.Join(c.Dir, OverlayFile)
}

// OAuthClientPath returns the path to the OAuth client credentials file.
func (c *Config) OAuthClientPath() string {
	return filepath.Join(c.Dir, OAuthClientFile)
}

// TokenPath returns the path to the stored OAuth token file.
func (c *Config) TokenPath() string {
	return filepath.Join(c.Dir, TokenFile)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// HasOAuthClient checks if the OAuth client credentials file exists.
func (c *Config) HasOAuthClient() bool {
	_, err := os.Stat(c.OAuthClientPath())
	return err == nil
}

// HasToken checks if the OAuth token file exists.
func (c *Config) HasToken() bool {
	_, err := os.Stat(c.TokenPath())
	return err == nil
}

// RemoveToken deletes the OAuth token file.
func (c *Config) RemoveToken() error {
	return os.Remove(c.TokenPath())
}
