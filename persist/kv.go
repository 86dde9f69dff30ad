// Package persist mirrors the durable slices of the session state into a
// key/value Persistent Store and hydrates them back at startup.
//
// Data flow:
//
//	session.Store --Event--> Syncer --Codec.Save--> KV
//	KV --Codec.Load--> Hydrate --> session.State
//
// Every slice loads independently: a missing, unreadable, or malformed
// entry resets only that slice to its default.
package persist

import (
	"context"
	"errors"
	"fmt"
)

// ErrQuotaExceeded is returned by a KV that has no room for a write.
var ErrQuotaExceeded = errors.New("persist: storage quota exceeded")

// KV is the Persistent Store collaborator: durable string storage keyed by
// stable names.
type KV interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}

// Error is a persistence failure on one key. It is logged, never shown to
// the user.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("persist: %s %q: %v", e.Op, e.Key, e.Err)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
