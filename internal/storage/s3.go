// Package storage uploads task photos to S3-compatible object storage.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// PhotoPrefix is the object key prefix for uploaded photos.
const PhotoPrefix = "photos/"

// Options configure a PhotoStore.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool

	// PublicURL is the base under which objects are served. When empty the
	// endpoint/bucket path-style URL is used.
	PublicURL string
}

// PhotoStore is a client for one S3 bucket.
type PhotoStore struct {
	client *minio.Client
	opts   Options
	log    *slog.Logger
}

// NewPhotoStore connects to the S3 endpoint described by opts.
func NewPhotoStore(opts Options, log *slog.Logger) (*PhotoStore, error) {
	if opts.Endpoint == "" || opts.AccessKey == "" || opts.SecretKey == "" || opts.Bucket == "" {
		return nil, fmt.Errorf("missing one or more required S3 settings: endpoint, access key, secret key, bucket")
	}
	if log == nil {
		log = slog.Default()
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	return &PhotoStore{client: client, opts: opts, log: log}, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (s *PhotoStore) EnsureBucket(ctx context.Context, region string) error {
	exists, err := s.client.BucketExists(ctx, s.opts.Bucket)
	if err != nil {
		return fmt.Errorf("error checking bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.opts.Bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.opts.Bucket, err)
	}
	return nil
}

// PutPhoto uploads the file at localPath and returns its public URL.
func (s *PhotoStore) PutPhoto(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open photo: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat photo: %w", err)
	}

	key := ObjectKey(localPath)
	_, err = s.client.PutObject(ctx, s.opts.Bucket, key, f, info.Size(),
		minio.PutObjectOptions{ContentType: ContentType(localPath)})
	if err != nil {
		return "", fmt.Errorf("failed to store photo in S3: %w", err)
	}

	u := ObjectURL(s.opts, key)
	s.log.Debug("stored photo", "bucket", s.opts.Bucket, "key", key, "size", info.Size())
	return u, nil
}

// ObjectKey returns a fresh object key for a photo, keeping its extension.
func ObjectKey(localPath string) string {
	ext := strings.ToLower(filepath.Ext(localPath))
	if ext == "" {
		ext = ".jpg"
	}
	return PhotoPrefix + uuid.NewString() + ext
}

// ContentType guesses the MIME type from the file extension, defaulting to JPEG.
func ContentType(localPath string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(localPath))); ct != "" {
		return ct
	}
	return "image/jpeg"
}

// ObjectURL returns the URL under which key is served.
func ObjectURL(opts Options, key string) string {
	if opts.PublicURL != "" {
		return strings.TrimRight(opts.PublicURL, "/") + "/" + key
	}
	scheme := "http"
	if opts.UseSSL {
		scheme = "https"
	}
	u := url.URL{Scheme: scheme, Host: opts.Endpoint, Path: "/" + path.Join(opts.Bucket, key)}
	return u.String()
}
