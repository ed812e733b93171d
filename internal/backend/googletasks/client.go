// Package googletasks implements the service.Service interface using Google Tasks API.
//
// Tasks live in the user's default list. Photo, coordinates and address travel
// in the task notes as a small JSON document.
package googletasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"

	"geotask/internal/config"
	"geotask/internal/remote"
	"geotask/internal/service"
	"geotask/internal/task"
)

const (
	// DefaultListID is the special ID for the default list.
	DefaultListID = "@default"

	// PageSize is the number of tasks per page.
	PageSize = 100

	// TasksScope is the OAuth scope for Google Tasks.
	TasksScope = "https://www.googleapis.com/auth/tasks"

	statusCompleted   = "completed"
	statusNeedsAction = "needsAction"
)

// ErrPasswordLogin is returned by Login; this backend authenticates with OAuth.
var ErrPasswordLogin = errors.New("googletasks backend uses OAuth login (run: geotask login)")

// PhotoUploader stores a photo and returns its URL.
type PhotoUploader interface {
	PutPhoto(ctx context.Context, localPath string) (string, error)
}

// Client implements service.Service using Google Tasks API.
type Client struct {
	svc       *tasks.Service
	timeout   time.Duration
	imageProp string
	photos    PhotoUploader

	// clearToken and nav run when the API rejects the credentials.
	clearToken func() error
	nav        remote.Navigator
}

// Option configures a Client.
type Option func(*Client)

// WithPhotoUploader stores photos out of band instead of referencing the local file.
func WithPhotoUploader(p PhotoUploader) Option {
	return func(c *Client) { c.photos = p }
}

// WithTokenRemover sets the function that deletes the stored OAuth token
// once the API rejects it.
func WithTokenRemover(remove func() error) Option {
	return func(c *Client) { c.clearToken = remove }
}

// WithNavigator sets the navigator signalled on session expiry.
func WithNavigator(n remote.Navigator) Option {
	return func(c *Client) { c.nav = n }
}

// New creates a new Google Tasks client.
// Requires oauth_client.json and token.json to exist.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	clientJSON, err := os.ReadFile(cfg.OAuthClientPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", config.OAuthClientFile, err)
	}

	oauthConfig, err := google.ConfigFromJSON(clientJSON, TasksScope)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", config.OAuthClientFile, err)
	}

	tokenData, err := os.ReadFile(cfg.TokenPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", config.TokenFile, err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(tokenData, &token); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", config.TokenFile, err)
	}

	// Token source refreshes on expiry.
	httpClient := oauth2.NewClient(ctx, oauthConfig.TokenSource(ctx, &token))

	opts = append([]Option{WithTokenRemover(cfg.RemoveToken)}, opts...)
	c, err := NewWithHTTPClient(ctx, httpClient, opts...)
	if err != nil {
		return nil, err
	}
	if d, err := cfg.Timeout(); err == nil {
		c.timeout = d
	}
	c.imageProp = cfg.ImageURLProp
	return c, nil
}

// NewWithHTTPClient creates a client with a custom HTTP client (for testing).
func NewWithHTTPClient(ctx context.Context, httpClient *http.Client, opts ...Option) (*Client, error) {
	svc, err := tasks.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create tasks service: %w", err)
	}
	c := &Client{svc: svc, timeout: config.DefaultRequestTimeout, imageProp: "photoUri"}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithEndpoint points the client at a different API root (for testing).
func (c *Client) WithEndpoint(url string) *Client {
	c.svc.BasePath = url
	return c
}

// Login implements service.Service.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	return "", ErrPasswordLogin
}

// Me implements service.Service. It validates the token by reading the default list.
func (c *Client) Me(ctx context.Context) (task.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	list, err := c.svc.Tasklists.Get(DefaultListID).Context(ctx).Do()
	if err != nil {
		return nil, c.wrapError(err)
	}
	return task.Record{"list": list.Title, "backend": config.BackendGoogleTasks}, nil
}

// List implements service.Service.
func (c *Client) List(ctx context.Context) ([]task.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result := []task.Record{}
	err := c.svc.Tasks.List(DefaultListID).
		MaxResults(PageSize).
		ShowCompleted(true).
		ShowHidden(true).
		ShowDeleted(false).
		Pages(ctx, func(resp *tasks.Tasks) error {
			for _, t := range resp.Items {
				result = append(result, toRecord(t))
			}
			return nil
		})
	if err != nil {
		return nil, c.wrapError(err)
	}
	return result, nil
}

// Create implements service.Service.
func (c *Client) Create(ctx context.Context, params service.CreateParams) (task.Record, error) {
	photoURL := ""
	if params.Photo != "" {
		if c.photos != nil {
			u, err := c.photos.PutPhoto(ctx, params.Photo)
			if err != nil {
				return nil, err
			}
			photoURL = u
		} else {
			photoURL = task.FileURL(params.Photo)
		}
	}

	notes, err := encodeNotes(params, photoURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	created, err := c.svc.Tasks.Insert(DefaultListID, &tasks.Task{Title: params.Title, Notes: notes}).Context(ctx).Do()
	if err != nil {
		return nil, c.wrapError(err)
	}
	return service.FillCreated(toRecord(created), params, photoURL, c.imageProp), nil
}

// UpdateCompleted implements service.Service.
func (c *Client) UpdateCompleted(ctx context.Context, id string, completed bool) (task.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	patch := &tasks.Task{Status: statusNeedsAction, NullFields: []string{"Completed"}}
	if completed {
		patch = &tasks.Task{Status: statusCompleted}
	}
	updated, err := c.svc.Tasks.Patch(DefaultListID, id, patch).Context(ctx).Do()
	if err != nil {
		return nil, c.wrapError(err)
	}
	return toRecord(updated), nil
}

// Remove implements service.Service.
func (c *Client) Remove(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.svc.Tasks.Delete(DefaultListID, id).Context(ctx).Do(); err != nil {
		return c.wrapError(err)
	}
	return nil
}

// notes is the JSON document stored in a task's notes.
type notes struct {
	PhotoURI  string   `json:"photoUri,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Address   string   `json:"address,omitempty"`
}

func encodeNotes(params service.CreateParams, photoURL string) (string, error) {
	n := notes{PhotoURI: photoURL, Address: params.Address}
	if params.Coordinates != nil {
		lat, lon := params.Coordinates.Latitude, params.Coordinates.Longitude
		n.Latitude, n.Longitude = &lat, &lon
	}
	data, err := json.Marshal(n)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// toRecord maps a Google task to a record. Notes that are not a JSON object
// are kept as plain text under "notes".
func toRecord(t *tasks.Task) task.Record {
	rec := task.Record{
		"id":        t.Id,
		"title":     t.Title,
		"completed": t.Status == statusCompleted,
	}
	if t.Due != "" {
		rec["due"] = t.Due
	}
	if t.Notes == "" {
		return rec
	}
	var extra map[string]any
	if err := json.Unmarshal([]byte(t.Notes), &extra); err != nil {
		rec["notes"] = t.Notes
		return rec
	}
	for k, v := range extra {
		if _, ok := rec[k]; !ok {
			rec[k] = v
		}
	}
	return rec
}

// wrapError maps API errors onto the remote error types. A rejected token is
// removed before the SessionExpiredError is returned.
func (c *Client) wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", remote.ErrRequestTimedOut, err)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			c.expire()
			return &remote.SessionExpiredError{Message: "token expired or revoked (run: geotask login)"}
		}
		msg := gerr.Message
		if msg == "" {
			msg = fmt.Sprintf("%d %s", gerr.Code, http.StatusText(gerr.Code))
		}
		return &remote.RequestError{Status: gerr.Code, Message: msg, Header: gerr.Header}
	}
	return err
}

func (c *Client) expire() {
	if c.clearToken != nil {
		if err := c.clearToken(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("remove rejected token", "err", err)
		}
	}
	if c.nav != nil {
		c.nav.ToLogin()
	}
}

var _ service.Service = (*Client)(nil)
