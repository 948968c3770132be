package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrSecretNotFound is returned when a secret has no value.
var ErrSecretNotFound = errors.New("secret not found")

// SecretRefPrefix marks a config value that names a secret instead of holding it,
// e.g. "secret:REDIS_PASSWORD".
const SecretRefPrefix = "secret:"

// SecretStore resolves named secrets.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
}

// EnvironmentSecretStore reads secrets from environment variables.
type EnvironmentSecretStore struct{}

func NewEnvironmentSecretStore() *EnvironmentSecretStore { return &EnvironmentSecretStore{} }

func (EnvironmentSecretStore) Get(_ context.Context, key string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}
	return v, nil
}

// GetWithDefault returns def when key is unset.
func (s EnvironmentSecretStore) GetWithDefault(ctx context.Context, key, def string) string {
	v, err := s.Get(ctx, key)
	if err != nil {
		return def
	}
	return v
}

// FileSecretStore reads one secret per file from a directory, as mounted by
// Docker or Kubernetes. Trailing newlines are trimmed.
type FileSecretStore struct {
	Dir string
}

func (s FileSecretStore) Get(_ context.Context, key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("%w: invalid key %q", ErrSecretNotFound, key)
	}
	data, err := os.ReadFile(filepath.Join(s.Dir, key)) // #nosec G304 - key has no separators
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("read secret %s: %w", key, err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// ResolveSecrets replaces "secret:NAME" references in credential fields
// with values from store.
func (c *Config) ResolveSecrets(ctx context.Context, store SecretStore) error {
	fields := []*string{&c.Storage.Redis.Password, &c.Storage.SQL.DSN}
	for i := range c.Security.APIKeys {
		fields = append(fields, &c.Security.APIKeys[i])
	}
	for _, f := range fields {
		name, ok := strings.CutPrefix(*f, SecretRefPrefix)
		if !ok {
			continue
		}
		v, err := store.Get(ctx, name)
		if err != nil {
			return err
		}
		*f = v
	}
	return nil
}
