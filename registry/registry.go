// Package registry coordinates persona ownership across processes. A
// memory.Store is single-writer; when several game servers can host the
// same persona, the directory arbitrates which process owns it.
//
// Ownership is an etcd lease: the holder claims a key, renews the lease in
// the background, and the claim evaporates when the holder crashes or
// releases it. Other processes can resolve a claim to find where a persona
// currently lives.
package registry

import (
	"context"
	"errors"
	"time"
)

// ErrPersonaOwned is returned by Acquire when another process already
// holds the persona.
var ErrPersonaOwned = errors.New("registry: persona is owned by another process")

// ErrClosed is returned by directory operations after Close.
var ErrClosed = errors.New("registry: directory is closed")

// PersonaClaim records who owns a persona and where it is served.
type PersonaClaim struct {
	// PersonaID is the persona being claimed.
	PersonaID string `json:"persona_id"`

	// OwnerID identifies the claiming process (typically a UUID).
	OwnerID string `json:"owner_id"`

	// Endpoint is where the owning process can be reached, host:port.
	Endpoint string `json:"endpoint"`

	// AcquiredAt is when the claim was taken.
	AcquiredAt time.Time `json:"acquired_at"`
}

// Config holds directory connection configuration.
type Config struct {
	// Endpoints is the list of etcd endpoints, e.g. ["localhost:2379"].
	Endpoints []string `json:"endpoints"`

	// Namespace is the etcd key prefix for persona claims. Claims are
	// stored under /{namespace}/persona/{persona-id}. Default: "lorekeep".
	Namespace string `json:"namespace"`

	// TTL is the claim lease time-to-live in seconds. A crashed owner's
	// claim expires after at most this long. Default: 30.
	TTL int `json:"ttl"`

	// TLS optionally secures the etcd connection.
	TLS *TLSConfig `json:"tls"`
}

// TLSConfig holds certificate paths for mutual TLS with etcd.
type TLSConfig struct {
	// Enabled determines whether TLS is active. If false, the other
	// fields are ignored.
	Enabled bool `json:"enabled"`

	// CertFile is the path to the client certificate (PEM).
	CertFile string `json:"cert_file"`

	// KeyFile is the path to the client private key (PEM).
	KeyFile string `json:"key_file"`

	// CAFile is the path to the certificate authority file (PEM).
	CAFile string `json:"ca_file"`
}

// Ownership is the persona arbitration interface implemented by Directory.
type Ownership interface {
	// Acquire claims exclusive ownership of a persona. Returns
	// ErrPersonaOwned if another live process holds it.
	Acquire(ctx context.Context, claim PersonaClaim) error

	// Release gives up ownership. Releasing an unheld persona is a no-op.
	Release(ctx context.Context, personaID string) error

	// Resolve returns the current claim for a persona, or nil when the
	// persona is unowned.
	Resolve(ctx context.Context, personaID string) (*PersonaClaim, error)

	// Close releases every held claim and stops background renewal.
	Close() error
}
