package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"geotask/internal/backend/googletasks"
	"geotask/internal/backend/restapi"
	"geotask/internal/commands"
	"geotask/internal/config"
	"geotask/internal/device"
	"geotask/internal/events"
	"geotask/internal/geocode"
	"geotask/internal/overlay"
	"geotask/internal/reconcile"
	"geotask/internal/remote"
	"geotask/internal/service"
	"geotask/internal/session"
	"geotask/internal/storage"
	"geotask/internal/task"
)

// NewLogger returns the process logger: text on stderr, debug level with --debug.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// DefaultFactory wires the configured backend, the overlay database, the
// event publisher and the device sources into a reconcile engine.
func DefaultFactory(ctx context.Context, cfg *config.Config, errOut io.Writer) (*commands.Deps, error) {
	log := NewLogger(cfg, errOut)
	slog.SetDefault(log)

	if err := cfg.EnsureDir(); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	deps := &commands.Deps{
		Sessions: session.NewStore(session.NewFileKV(cfg.SessionPath())),
	}
	fail := func(err error) (*commands.Deps, error) {
		_ = deps.Close()
		return nil, err
	}

	sess, err := deps.Sessions.Load()
	if err != nil {
		return fail(err)
	}

	var photos *storage.PhotoStore
	if cfg.UploadMode == config.UploadS3 {
		photos, err = storage.NewPhotoStore(storage.Options{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3SSL(),
			PublicURL: cfg.S3PublicURL,
		}, log)
		if err != nil {
			return fail(err)
		}
	}

	switch cfg.Backend {
	case config.BackendGoogleTasks:
		deps.LoggedIn = cfg.HasToken() && cfg.HasOAuthClient()
		if deps.LoggedIn {
			opts := []googletasks.Option{
				googletasks.WithNavigator(remote.NavigatorFunc(func() {
					log.Debug("oauth token rejected, login required")
				})),
			}
			if photos != nil {
				opts = append(opts, googletasks.WithPhotoUploader(photos))
			}
			gt, err := googletasks.New(ctx, cfg, opts...)
			if err != nil {
				return fail(err)
			}
			deps.Service = gt
		}
	default:
		timeout, err := cfg.Timeout()
		if err != nil {
			return fail(err)
		}
		api, err := remote.New(cfg.APIURL, deps.Sessions,
			remote.WithTimeout(timeout),
			remote.WithLogger(log),
			remote.WithNavigator(remote.NavigatorFunc(func() {
				log.Debug("session expired, login required")
			})),
		)
		if err != nil {
			return fail(err)
		}
		opts := restapi.OptionsFromConfig(cfg)
		if photos != nil {
			opts.Photos = photos
		}
		deps.Service = restapi.New(api, deps.Sessions, opts)
		deps.LoggedIn = sess.Valid()
	}

	store, err := overlay.OpenSQLite(cfg.OverlayPath())
	if err != nil {
		return fail(err)
	}
	deps.Closers = append(deps.Closers, store)

	var publisher events.Publisher = events.Nop{}
	if cfg.KafkaBroker != "" && cfg.KafkaTopic != "" {
		publisher = events.NewKafkaPublisher(cfg.KafkaBroker, cfg.KafkaTopic)
	}
	deps.Closers = append(deps.Closers, publisher)

	locator, err := device.LocatorFromConfig(cfg)
	if err != nil {
		return fail(err)
	}
	deps.Photos = &device.Photos{CameraCommand: cfg.CameraCommand}

	opts := []reconcile.Option{
		reconcile.WithDevice(deps.Photos, locator),
		reconcile.WithPublisher(publisher),
		reconcile.WithLogger(log),
		reconcile.WithReporter(reconcile.ReporterFunc(func(err error) {
			report(errOut, err)
		})),
	}
	if cfg.GeocoderURL != "" {
		opts = append(opts, reconcile.WithGeocoder(geocode.NewNominatim(cfg.GeocoderURL)))
	}
	svc := deps.Service
	if svc == nil {
		svc = unavailable{}
	}
	deps.Engine = reconcile.New(svc, store, opts...)
	return deps, nil
}

// report prints an engine error, with a login hint once the session is gone.
func report(w io.Writer, err error) {
	if errors.Is(err, remote.ErrSessionExpired) {
		fmt.Fprintf(w, "error: %v (run: geotask login)\n", err)
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
}

// unavailable stands in for a backend that has no credentials yet.
type unavailable struct{}

func (unavailable) Login(context.Context, string, string) (string, error) {
	return "", session.ErrNoSession
}
func (unavailable) Me(context.Context) (task.Record, error) { return nil, session.ErrNoSession }
func (unavailable) List(context.Context) ([]task.Record, error) {
	return nil, session.ErrNoSession
}
func (unavailable) Create(context.Context, service.CreateParams) (task.Record, error) {
	return nil, session.ErrNoSession
}
func (unavailable) UpdateCompleted(context.Context, string, bool) (task.Record, error) {
	return nil, session.ErrNoSession
}
func (unavailable) Remove(context.Context, string) error { return session.ErrNoSession }
