// internal/storage/s3.go
//
// S3-compatible backend (MinIO client).
//
// Works against AWS S3, MinIO, and any provider exposing an S3 gateway,
// which also covers the managed-storage-API deployments.  The namespace
// prefix keeps several applications coexisting in one bucket.

package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Options carries the provider coordinates resolved from configuration.
type S3Options struct {
	Endpoint  string // host[:port], no scheme
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	Prefix    string // namespace root inside the bucket
	UseSSL    bool
}

// S3 implements Backend over an S3-compatible object store.
type S3 struct {
	client *minio.Client
	opts   S3Options
}

var _ Backend = (*S3)(nil)
var _ PrefixDeleter = (*S3)(nil)

// NewS3 builds the client.  No network call is made until first use.
func NewS3(opts S3Options) (*S3, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	return &S3{client: client, opts: opts}, nil
}

func (s *S3) Put(ctx context.Context, localPath, key, contentType string) error {
	if contentType == "" {
		contentType = GuessContentType(key)
	}
	full := joinPrefix(s.opts.Prefix, key)
	_, err := s.client.FPutObject(ctx, s.opts.Bucket, full, localPath,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("s3 put %q: %w", full, err)
	}
	return nil
}

func (s *S3) Get(ctx context.Context, key string) ([]byte, string, error) {
	full := joinPrefix(s.opts.Prefix, key)
	obj, err := s.client.GetObject(ctx, s.opts.Bucket, full, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("s3 get %q: %w", full, err)
	}
	defer obj.Close()

	// GetObject is lazy; absence surfaces on Stat or first Read.
	info, err := obj.Stat()
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, "", ErrNotExist
		}
		return nil, "", fmt.Errorf("s3 stat %q: %w", full, err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", fmt.Errorf("s3 read %q: %w", full, err)
	}
	return data, info.ContentType, nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	full := joinPrefix(s.opts.Prefix, key)
	err := s.client.RemoveObject(ctx, s.opts.Bucket, full, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("s3 delete %q: %w", full, err)
	}
	return nil
}

func (s *S3) List(ctx context.Context, prefix string) ([]string, error) {
	full := joinPrefix(s.opts.Prefix, prefix)
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.opts.Bucket, minio.ListObjectsOptions{
		Prefix:    full + "/",
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("s3 list %q: %w", full, obj.Err)
		}
		keys = append(keys, s.stripPrefix(obj.Key))
	}
	return keys, nil
}

// DeletePrefix streams every matching key into the bulk-remove API.
// A listing error truncates the stream, so it must surface as a failed
// delete; returning nil here would leave orphans the caller never hears
// about.
func (s *S3) DeletePrefix(ctx context.Context, prefix string) error {
	full := joinPrefix(s.opts.Prefix, prefix)
	objects := make(chan minio.ObjectInfo)
	var listErr error
	go func() {
		defer close(objects)
		for obj := range s.client.ListObjects(ctx, s.opts.Bucket, minio.ListObjectsOptions{
			Prefix:    full + "/",
			Recursive: true,
		}) {
			if obj.Err != nil {
				listErr = obj.Err
				return
			}
			objects <- obj
		}
	}()
	for res := range s.client.RemoveObjects(ctx, s.opts.Bucket, objects, minio.RemoveObjectsOptions{}) {
		if res.Err != nil {
			return fmt.Errorf("s3 delete prefix %q: %w", full, res.Err)
		}
	}
	// RemoveObjects drains only after the lister closes the channel, so
	// listErr is settled by the time the result loop above finishes.
	if listErr != nil {
		return fmt.Errorf("s3 list prefix %q: %w", full, listErr)
	}
	return nil
}

func (s *S3) PublicURL(key string) string {
	full := joinPrefix(s.opts.Prefix, key)
	if strings.HasSuffix(s.opts.Endpoint, "amazonaws.com") {
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.opts.Bucket, s.opts.Region, full)
	}
	scheme := "http"
	if s.opts.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.opts.Endpoint, s.opts.Bucket, full)
}

func (s *S3) SiteURL(siteID string) string {
	return s.PublicURL(siteID + "/index.html")
}

// stripPrefix converts a provider-absolute key back to caller form.
func (s *S3) stripPrefix(full string) string {
	p := strings.TrimSuffix(s.opts.Prefix, "/")
	if p != "" && strings.HasPrefix(full, p+"/") {
		return strings.TrimPrefix(full, p+"/")
	}
	return full
}
