// Package storage keeps uploaded files in S3-compatible object storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Buckets   []string
}

type Store struct {
	client   *minio.Client
	endpoint string
	useSSL   bool
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}
	s := &Store{client: client, endpoint: cfg.Endpoint, useSSL: cfg.UseSSL}
	for _, bucket := range cfg.Buckets {
		if err := s.ensureBucket(ctx, bucket); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) ensureBucket(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}

func (s *Store) Put(ctx context.Context, bucket, objectPath string, body io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, bucket, objectPath, body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put object %s/%s: %w", bucket, objectPath, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, bucket, objectPath string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, bucket, objectPath, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s/%s: %w", bucket, objectPath, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", bucket, objectPath, err)
	}
	return data, nil
}

func (s *Store) Remove(ctx context.Context, bucket, objectPath string) error {
	if err := s.client.RemoveObject(ctx, bucket, objectPath, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s/%s: %w", bucket, objectPath, err)
	}
	return nil
}

func (s *Store) PresignGet(ctx context.Context, bucket, objectPath string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, bucket, objectPath, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s/%s: %w", bucket, objectPath, err)
	}
	return u.String(), nil
}

// PublicURL is the direct object URL, used for avatars and logos.
func (s *Store) PublicURL(bucket, objectPath string) string {
	return PublicURL(s.endpoint, s.useSSL, bucket, objectPath)
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.ListBuckets(ctx)
	return err
}

func PublicURL(endpoint string, useSSL bool, bucket, objectPath string) string {
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, endpoint, bucket, objectPath)
}

// Extension returns the lowercased extension of name without the dot,
// or "bin" when there is none.
func Extension(name string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	if ext == "" {
		return "bin"
	}
	return ext
}

func AvatarPath(userID, fileName string) string {
	return fmt.Sprintf("users/%s/avatar.%s", userID, Extension(fileName))
}

func LogoPath(organizationID, fileName string) string {
	return fmt.Sprintf("organizations/%s/logo.%s", organizationID, Extension(fileName))
}

// AttachmentPath prefixes the file with a fresh UUID so repeated uploads of
// the same name never collide.
func AttachmentPath(organizationID, negotiationID, fileName string) string {
	return fmt.Sprintf("%s/%s/%s-%s", organizationID, negotiationID, uuid.NewString(), SanitizeFileName(fileName))
}

// SanitizeFileName keeps the base name and replaces characters that are
// awkward in object keys.
func SanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "file"
	}
	return out
}
