// internal/storage/factory.go
//
// Backend selection.  One backend is built from validated configuration
// during bootstrap; nothing else in the process ever branches on the
// storage type.

package storage

import (
	"fmt"

	"github.com/yanizio/hoster/internal/config"
)

// New constructs the Backend named by cfg.Type.
func New(cfg config.Storage) (Backend, error) {
	switch cfg.Type {
	case "local":
		return NewLocal(cfg.Local.Root)
	case "s3":
		return NewS3(S3Options{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.Prefix,
			UseSSL:    cfg.S3.UseSSL,
		})
	case "oss":
		return NewOSS(OSSOptions{
			Endpoint:        cfg.OSS.Endpoint,
			AccessKeyID:     cfg.OSS.AccessKeyID,
			AccessKeySecret: cfg.OSS.AccessKeySecret,
			Bucket:          cfg.OSS.Bucket,
			Prefix:          cfg.Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
