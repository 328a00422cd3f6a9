package session

import (
	"context"
	"errors"
	"time"
)

// Store errors.
var (
	// ErrNotFound is returned by Load when no snapshot exists for a
	// session or the snapshot has expired.
	ErrNotFound = errors.New("session: snapshot not found")

	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = errors.New("session: store closed")
)

// SnapshotStore persists per-connection render state (the committed
// tree and the component registry) so a client that drops and
// reconnects within the resume window continues from its last diff
// baseline instead of a full re-mount.
//
// Implementations must be safe for concurrent use.
type SnapshotStore interface {
	// Save persists a snapshot, overwriting any previous one for the
	// same session id.
	Save(ctx context.Context, snap *Snapshot, expiresAt time.Time) error

	// Load retrieves the snapshot for a session id. Returns
	// ErrNotFound when the session is unknown or expired.
	Load(ctx context.Context, sessionID string) (*Snapshot, error)

	// Delete removes a snapshot. Deleting a missing snapshot is not
	// an error.
	Delete(ctx context.Context, sessionID string) error

	// Close releases store resources.
	Close() error
}
