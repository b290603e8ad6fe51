// Package persistence stores persona save records. The logical contract —
// what a record contains — lives in the memory package; this package owns
// the backend plumbing, currently Redis.
package persistence

import (
	"context"
	"errors"

	"github.com/lorekeep-ai/sdk/memory"
)

// ErrNotFound is returned when no save record exists for a persona.
var ErrNotFound = errors.New("persistence: save record not found")

// Store persists persona save records. Implementations must be safe for
// concurrent use; records for different personas are independent.
type Store interface {
	// Save writes the record, replacing any previous one for the persona.
	Save(ctx context.Context, rec *memory.SaveRecord) error

	// Load returns the record for a persona, or ErrNotFound.
	Load(ctx context.Context, personaID string) (*memory.SaveRecord, error)

	// Delete removes a persona's record. Deleting a missing record is a
	// no-op.
	Delete(ctx context.Context, personaID string) error

	// List returns the persona ids with stored records, sorted.
	List(ctx context.Context) ([]string, error)
}
