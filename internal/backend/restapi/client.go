// Package restapi implements the service.Service interface over the task REST API.
package restapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"geotask/internal/config"
	"geotask/internal/remote"
	"geotask/internal/service"
	"geotask/internal/session"
	"geotask/internal/task"
)

// PhotoUploader stores a photo out of band and returns its URL (s3 upload mode).
type PhotoUploader interface {
	PutPhoto(ctx context.Context, localPath string) (string, error)
}

// SessionSaver persists the session obtained at login.
type SessionSaver interface {
	Save(session.Session) error
}

// Options select API paths and the upload strategy.
type Options struct {
	LoginPath    string
	TasksPath    string
	ImagesPath   string
	MePath       string
	UploadMode   string
	FileField    string
	ImageURLProp string
	TokenProp    string

	// Photos is required when UploadMode is config.UploadS3.
	Photos PhotoUploader
}

// OptionsFromConfig copies the API settings out of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		LoginPath:    cfg.LoginPath,
		TasksPath:    cfg.TasksPath,
		ImagesPath:   cfg.ImagesPath,
		MePath:       cfg.MePath,
		UploadMode:   cfg.UploadMode,
		FileField:    cfg.FileField,
		ImageURLProp: cfg.ImageURLProp,
		TokenProp:    cfg.TokenProp,
	}
}

// Client implements service.Service over a remote.Client.
type Client struct {
	api      *remote.Client
	sessions SessionSaver
	opts     Options
}

// New creates a REST backend.
func New(api *remote.Client, sessions SessionSaver, opts Options) *Client {
	if opts.UploadMode == "" {
		opts.UploadMode = config.UploadMultipart
	}
	if opts.FileField == "" {
		opts.FileField = "image"
	}
	if opts.ImageURLProp == "" {
		opts.ImageURLProp = "photoUri"
	}
	return &Client{api: api, sessions: sessions, opts: opts}
}

// Login implements service.Service.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	resp, err := c.api.JSONWith(ctx, http.MethodPost, c.opts.LoginPath,
		map[string]string{"email": email, "password": password},
		remote.Options{SkipAuthRedirect: true})
	if err != nil {
		var re *remote.RequestError
		if errors.As(err, &re) && (re.Status == http.StatusUnauthorized || re.Status == http.StatusForbidden) {
			return "", fmt.Errorf("%w: %s", service.ErrInvalidCredentials, re.Message)
		}
		return "", err
	}

	m, _ := resp.(map[string]any)
	if failed(m) {
		msg := envelopeMessage(m)
		if msg == "" {
			msg = "login rejected"
		}
		return "", fmt.Errorf("%w: %s", service.ErrInvalidCredentials, msg)
	}

	token := pickToken(m, c.opts.TokenProp)
	if token == "" {
		return "", service.ErrTokenMissing
	}
	if err := c.sessions.Save(session.Session{Token: token, Email: email}); err != nil {
		return "", err
	}
	return token, nil
}

// Me implements service.Service.
func (c *Client) Me(ctx context.Context) (task.Record, error) {
	if c.opts.MePath == "" {
		return nil, nil
	}
	resp, err := c.api.Request(ctx, c.opts.MePath, remote.Options{Method: http.MethodGet})
	if err != nil {
		return nil, err
	}
	out, err := unwrap(resp)
	if err != nil {
		return nil, err
	}
	rec, _ := asRecord(out)
	if rec == nil {
		rec = task.Record{}
	}
	return rec, nil
}

// List implements service.Service.
func (c *Client) List(ctx context.Context) ([]task.Record, error) {
	resp, err := c.api.Request(ctx, c.opts.TasksPath, remote.Options{Method: http.MethodGet})
	if err != nil {
		return nil, err
	}
	out, err := unwrap(resp)
	if err != nil {
		return nil, err
	}
	items, ok := out.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: GET %s returned %T", service.ErrUnexpectedShape, c.opts.TasksPath, out)
	}

	result := make([]task.Record, 0, len(items))
	for i, item := range items {
		rec, ok := asRecord(item)
		if !ok {
			return nil, fmt.Errorf("%w: item %d is %T", service.ErrUnexpectedShape, i, item)
		}
		result = append(result, rec)
	}
	return result, nil
}

// UpdateCompleted implements service.Service.
func (c *Client) UpdateCompleted(ctx context.Context, id string, completed bool) (task.Record, error) {
	resp, err := c.api.JSON(ctx, http.MethodPatch, c.taskPath(id), map[string]bool{"completed": completed})
	if err != nil {
		return nil, err
	}
	out, err := unwrap(resp)
	if err != nil {
		return nil, err
	}
	rec, _ := asRecord(out)
	if rec == nil {
		rec = task.Record{}
	}
	return rec, nil
}

// Remove implements service.Service.
func (c *Client) Remove(ctx context.Context, id string) error {
	resp, err := c.api.Request(ctx, c.taskPath(id), remote.Options{Method: http.MethodDelete})
	if err != nil {
		return err
	}
	_, err = unwrap(resp)
	return err
}

func (c *Client) taskPath(id string) string {
	return c.opts.TasksPath + "/" + url.PathEscape(id)
}

var _ service.Service = (*Client)(nil)
