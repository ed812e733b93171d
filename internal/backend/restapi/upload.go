package restapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"geotask/internal/config"
	"geotask/internal/remote"
	"geotask/internal/service"
	"geotask/internal/storage"
	"geotask/internal/task"
)

// Create implements service.Service.
func (c *Client) Create(ctx context.Context, params service.CreateParams) (task.Record, error) {
	switch c.opts.UploadMode {
	case config.UploadMultipart:
		photoURL, err := c.uploadMultipart(ctx, params.Photo)
		if err != nil {
			return nil, err
		}
		return c.createWithURL(ctx, params, photoURL)

	case config.UploadS3:
		if c.opts.Photos == nil {
			return nil, fmt.Errorf("upload mode %s: no photo store configured", config.UploadS3)
		}
		photoURL, err := c.opts.Photos.PutPhoto(ctx, params.Photo)
		if err != nil {
			return nil, err
		}
		return c.createWithURL(ctx, params, photoURL)

	case config.UploadBase64:
		return c.createInline(ctx, params)
	}
	return nil, fmt.Errorf("unknown upload mode: %s", c.opts.UploadMode)
}

// uploadMultipart posts the photo to the images endpoint and returns its absolute URL.
func (c *Client) uploadMultipart(ctx context.Context, photo string) (string, error) {
	f, err := os.Open(photo)
	if err != nil {
		return "", fmt.Errorf("open photo: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, c.opts.FileField, filepath.Base(photo)))
	h.Set("Content-Type", storage.ContentType(photo))
	part, err := w.CreatePart(h)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("read photo: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	resp, err := c.api.Request(ctx, c.opts.ImagesPath, remote.Options{
		Method:      http.MethodPost,
		Body:        &buf,
		ContentType: w.FormDataContentType(),
	})
	if err != nil {
		return "", err
	}
	out, err := unwrap(resp)
	if err != nil {
		return "", err
	}

	photoURL := extractImageURL(out, c.api.ResolveURL)
	if photoURL == "" {
		return "", fmt.Errorf("%w: POST %s", service.ErrImageUploadFailed, c.opts.ImagesPath)
	}
	return photoURL, nil
}

func (c *Client) createWithURL(ctx context.Context, params service.CreateParams, photoURL string) (task.Record, error) {
	payload := taskPayload(params)
	payload["photoUri"] = photoURL

	created, err := c.postTask(ctx, payload)
	if err != nil {
		return nil, err
	}
	return service.FillCreated(created, params, photoURL, c.opts.ImageURLProp), nil
}

// createInline embeds the photo in the task payload as a data URL.
func (c *Client) createInline(ctx context.Context, params service.CreateParams) (task.Record, error) {
	data, err := os.ReadFile(params.Photo)
	if err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}
	payload := taskPayload(params)
	payload["imageBase64"] = "data:" + storage.ContentType(params.Photo) + ";base64," + base64.StdEncoding.EncodeToString(data)

	created, err := c.postTask(ctx, payload)
	if err != nil {
		return nil, err
	}
	return service.FillCreated(created, params, task.FileURL(params.Photo), c.opts.ImageURLProp), nil
}

func (c *Client) postTask(ctx context.Context, payload map[string]any) (task.Record, error) {
	resp, err := c.api.JSON(ctx, http.MethodPost, c.opts.TasksPath, payload)
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

func taskPayload(params service.CreateParams) map[string]any {
	payload := map[string]any{"title": params.Title}
	if params.Coordinates != nil {
		payload["latitude"] = params.Coordinates.Latitude
		payload["longitude"] = params.Coordinates.Longitude
	}
	if params.Address != "" {
		payload["address"] = params.Address
	}
	return payload
}

// extractImageURL probes direct URL fields, then path/key fields resolved against the origin.
func extractImageURL(v any, resolve func(string) string) string {
	if s, ok := v.(string); ok {
		if strings.TrimSpace(s) == "" {
			return ""
		}
		return resolve(s)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	data, _ := m["data"].(map[string]any)

	direct := []any{
		field(data, "url"), field(data, "photoUri"), field(data, "href"),
		m["url"], m["photoUri"], m["href"], m["data"],
	}
	for _, cand := range direct {
		if s, ok := cand.(string); ok && s != "" {
			return resolve(s)
		}
	}

	relative := []any{field(data, "path"), field(data, "key"), m["path"], m["key"]}
	for _, cand := range relative {
		if s, ok := cand.(string); ok && s != "" {
			return resolve(s)
		}
	}
	return ""
}

func field(m map[string]any, key string) any {
	if m == nil {
		return nil
	}
	return m[key]
}
