// internal/config/secrets.go
//
// Vault secret-reference resolution.
//
// Any secret-bearing config field may hold `vault:<path>#<key>` instead
// of a literal value.  After unmarshal the loader swaps each reference
// for the KV-v2 value it points at.  The Vault client is only
// constructed when at least one reference is present, so deployments
// without Vault pay nothing.

package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/hoster/internal/vault"
)

const vaultPrefix = "vault:"

// secretFields enumerates every field allowed to carry a reference.
func secretFields(cfg *Config) []*string {
	return []*string{
		&cfg.Database.DSN,
		&cfg.Storage.S3.AccessKey,
		&cfg.Storage.S3.SecretKey,
		&cfg.Storage.OSS.AccessKeyID,
		&cfg.Storage.OSS.AccessKeySecret,
		&cfg.Session.Secret,
	}
}

// resolveSecrets replaces vault: references in place.
func resolveSecrets(ctx context.Context, cfg *Config) error {
	fields := secretFields(cfg)

	any := false
	for _, f := range fields {
		if strings.HasPrefix(*f, vaultPrefix) {
			any = true
			break
		}
	}
	if !any {
		return nil
	}

	cli, err := vault.New(ctx, zap.S().Infof)
	if err != nil {
		return fmt.Errorf("vault client: %w", err)
	}

	for _, f := range fields {
		if !strings.HasPrefix(*f, vaultPrefix) {
			continue
		}
		ref := strings.TrimPrefix(*f, vaultPrefix)
		path, key, ok := strings.Cut(ref, "#")
		if !ok {
			return fmt.Errorf("malformed vault reference %q (want vault:<path>#<key>)", *f)
		}
		val, err := cli.GetKV(ctx, path, key, time.Hour)
		if err != nil {
			return fmt.Errorf("resolve %q: %w", *f, err)
		}
		*f = val
	}
	return nil
}
