// Package formstate stores the form values of live sessions.
package formstate

import (
	"context"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/types"
)

// Store holds one flat value map per session. Writes are last-write-wins.
type Store interface {
	// Snapshot returns a copy of the session's values. An unknown session has
	// no values.
	Snapshot(ctx context.Context, sessionID string) (types.FormValues, error)

	// SetMany writes every entry of values.
	SetMany(ctx context.Context, sessionID string, values map[string]any) error

	// Delete removes keys. Missing keys are ignored.
	Delete(ctx context.Context, sessionID string, keys ...string) error

	// Drop forgets the session.
	Drop(ctx context.Context, sessionID string) error
}
