// internal/storage/oss.go
//
// Aliyun OSS backend.
//
// Notes
// -----
// The classic OSS SDK does not thread context.Context through its calls;
// per-operation deadlines are approximated by the client's HTTP timeouts.
// Content type on the read path is derived from the key extension, which
// matches what Put stored for every object we own.

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	oss "github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// OSSOptions carries the Aliyun coordinates resolved from configuration.
type OSSOptions struct {
	Endpoint        string // e.g. "oss-cn-hangzhou.aliyuncs.com"
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	Prefix          string
}

// OSS implements Backend over an Aliyun OSS bucket.
type OSS struct {
	bucket *oss.Bucket
	opts   OSSOptions
}

var _ Backend = (*OSS)(nil)
var _ PrefixDeleter = (*OSS)(nil)

func NewOSS(opts OSSOptions) (*OSS, error) {
	client, err := oss.New(opts.Endpoint, opts.AccessKeyID, opts.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("oss client: %w", err)
	}
	bucket, err := client.Bucket(opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("oss bucket %q: %w", opts.Bucket, err)
	}
	return &OSS{bucket: bucket, opts: opts}, nil
}

func (o *OSS) Put(_ context.Context, localPath, key, contentType string) error {
	if contentType == "" {
		contentType = GuessContentType(key)
	}
	full := joinPrefix(o.opts.Prefix, key)
	if err := o.bucket.PutObjectFromFile(full, localPath, oss.ContentType(contentType)); err != nil {
		return fmt.Errorf("oss put %q: %w", full, err)
	}
	return nil
}

func (o *OSS) Get(_ context.Context, key string) ([]byte, string, error) {
	full := joinPrefix(o.opts.Prefix, key)
	body, err := o.bucket.GetObject(full)
	if err != nil {
		if isOSSNotFound(err) {
			return nil, "", ErrNotExist
		}
		return nil, "", fmt.Errorf("oss get %q: %w", full, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, "", fmt.Errorf("oss read %q: %w", full, err)
	}
	return data, GuessContentType(key), nil
}

func (o *OSS) Delete(_ context.Context, key string) error {
	full := joinPrefix(o.opts.Prefix, key)
	if err := o.bucket.DeleteObject(full); err != nil {
		return fmt.Errorf("oss delete %q: %w", full, err)
	}
	return nil
}

func (o *OSS) List(_ context.Context, prefix string) ([]string, error) {
	full := joinPrefix(o.opts.Prefix, prefix)
	var keys []string
	marker := ""
	for {
		res, err := o.bucket.ListObjects(oss.Prefix(full+"/"), oss.Marker(marker))
		if err != nil {
			return nil, fmt.Errorf("oss list %q: %w", full, err)
		}
		for _, obj := range res.Objects {
			keys = append(keys, o.stripPrefix(obj.Key))
		}
		if !res.IsTruncated {
			return keys, nil
		}
		marker = res.NextMarker
	}
}

func (o *OSS) DeletePrefix(ctx context.Context, prefix string) error {
	keys, err := o.List(ctx, prefix)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = joinPrefix(o.opts.Prefix, k)
	}
	if _, err := o.bucket.DeleteObjects(full); err != nil {
		return fmt.Errorf("oss delete prefix %q: %w", prefix, err)
	}
	return nil
}

func (o *OSS) PublicURL(key string) string {
	full := joinPrefix(o.opts.Prefix, key)
	return fmt.Sprintf("https://%s.%s/%s", o.opts.Bucket, o.opts.Endpoint, full)
}

func (o *OSS) SiteURL(siteID string) string {
	return o.PublicURL(siteID + "/index.html")
}

func (o *OSS) stripPrefix(full string) string {
	p := strings.TrimSuffix(o.opts.Prefix, "/")
	if p != "" && strings.HasPrefix(full, p+"/") {
		return strings.TrimPrefix(full, p+"/")
	}
	return full
}

// isOSSNotFound recognises the provider's NoSuchKey service error.
func isOSSNotFound(err error) bool {
	var se oss.ServiceError
	if errors.As(err, &se) {
		return se.Code == "NoSuchKey" || se.StatusCode == 404
	}
	return false
}
