package core

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by stores, caches and the service.
var (
	// ErrNotInitialized is returned when an operation runs before its dependencies are set up.
	ErrNotInitialized = errors.New("not initialized")
	// ErrClosed is returned by components used after Close.
	ErrClosed = errors.New("closed")
	// ErrStoreUnavailable wraps any backend I/O failure.
	ErrStoreUnavailable = errors.New("score store unavailable")
	// ErrPartialShardFailure is returned when at least one shard failed during a Top fan-out.
	ErrPartialShardFailure = errors.New("shard query failed")
	// ErrCacheFetch is returned to every caller waiting on a failed rank cache fetch.
	ErrCacheFetch = errors.New("rank cache fetch failed")
	// ErrInvalidConfig is returned by constructors given unusable configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// StoreError annotates a backend failure so that it matches ErrStoreUnavailable.
// The cause (including context errors) stays matchable through errors.Is.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
