package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// Directory implements Ownership against an etcd cluster.
//
// Each held claim has a lease that a background goroutine renews every
// TTL/3. If the process dies, the lease expires and the persona becomes
// claimable again within TTL seconds.
//
// Thread-safety: all methods are safe for concurrent use.
type Directory struct {
	client    *clientv3.Client
	namespace string
	ttl       int

	mu         sync.Mutex
	leases     map[string]clientv3.LeaseID // persona ID -> lease
	cancelFns  map[string]context.CancelFunc
	wg         sync.WaitGroup
	closed     bool
	closedChan chan struct{}
}

// NewDirectory connects to etcd and verifies connectivity.
//
// The directory must be closed with Close() to release held claims and
// stop renewal goroutines.
func NewDirectory(cfg Config) (*Directory, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("registry endpoints cannot be empty")
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "lorekeep"
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30
	}

	clientCfg := clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: 5 * time.Second,
	}

	if cfg.TLS != nil && cfg.TLS.Enabled {
		tlsConfig, err := clientTLS(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
		clientCfg.TLS = tlsConfig
	}

	cli, err := clientv3.New(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err = cli.Get(ctx, "health-check")
	if err != nil && err != context.DeadlineExceeded {
		cli.Close()
		return nil, fmt.Errorf("etcd health check failed: %w", err)
	}

	return &Directory{
		client:     cli,
		namespace:  namespace,
		ttl:        ttl,
		leases:     make(map[string]clientv3.LeaseID),
		cancelFns:  make(map[string]context.CancelFunc),
		closedChan: make(chan struct{}),
	}, nil
}

// Acquire claims exclusive ownership of a persona.
//
// The claim is written only if the key does not exist (a compare on its
// create revision), so two processes racing for the same persona cannot
// both win. The loser gets ErrPersonaOwned.
func (d *Directory) Acquire(ctx context.Context, claim PersonaClaim) error {
	if claim.PersonaID == "" {
		return fmt.Errorf("persona claim missing persona id")
	}
	if claim.AcquiredAt.IsZero() {
		claim.AcquiredAt = time.Now().UTC()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	if _, held := d.leases[claim.PersonaID]; held {
		// Already ours; renewal goroutine is keeping it alive.
		return nil
	}

	leaseResp, err := d.client.Grant(ctx, int64(d.ttl))
	if err != nil {
		return fmt.Errorf("failed to create lease: %w", err)
	}

	data, err := json.Marshal(claim)
	if err != nil {
		return fmt.Errorf("failed to marshal persona claim: %w", err)
	}

	key := d.claimKey(claim.PersonaID)
	txn, err := d.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(clientv3.OpPut(key, string(data), clientv3.WithLease(leaseResp.ID))).
		Commit()
	if err != nil {
		d.client.Revoke(context.Background(), leaseResp.ID)
		return fmt.Errorf("failed to claim persona: %w", err)
	}
	if !txn.Succeeded {
		d.client.Revoke(context.Background(), leaseResp.ID)
		return ErrPersonaOwned
	}

	d.leases[claim.PersonaID] = leaseResp.ID

	renewCtx, cancel := context.WithCancel(context.Background())
	d.cancelFns[claim.PersonaID] = cancel

	d.wg.Add(1)
	go d.renew(renewCtx, leaseResp.ID, claim.PersonaID)

	return nil
}

// Release gives up ownership of a persona by revoking its lease, which
// deletes the claim immediately. Releasing an unheld persona is a no-op.
func (d *Directory) Release(ctx context.Context, personaID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}

	if cancel, exists := d.cancelFns[personaID]; exists {
		cancel()
		delete(d.cancelFns, personaID)
	}

	leaseID, held := d.leases[personaID]
	if !held {
		return nil
	}

	if _, err := d.client.Revoke(ctx, leaseID); err != nil {
		return fmt.Errorf("failed to revoke lease: %w", err)
	}
	delete(d.leases, personaID)

	return nil
}

// Resolve returns the current claim for a persona, whoever holds it, or
// nil when the persona is unowned.
func (d *Directory) Resolve(ctx context.Context, personaID string) (*PersonaClaim, error) {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	resp, err := d.client.Get(ctx, d.claimKey(personaID))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve persona: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, nil
	}

	var claim PersonaClaim
	if err := json.Unmarshal(resp.Kvs[0].Value, &claim); err != nil {
		return nil, fmt.Errorf("failed to unmarshal persona claim: %w", err)
	}
	return &claim, nil
}

// Held returns the persona ids this directory currently owns.
func (d *Directory) Held() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	ids := make([]string, 0, len(d.leases))
	for id := range d.leases {
		ids = append(ids, id)
	}
	return ids
}

// Close revokes every held claim, stops renewal goroutines, and closes
// the etcd connection. Subsequent calls are no-ops.
func (d *Directory) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true

	for _, cancel := range d.cancelFns {
		cancel()
	}
	d.cancelFns = make(map[string]context.CancelFunc)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	for id, leaseID := range d.leases {
		d.client.Revoke(ctx, leaseID)
		delete(d.leases, id)
	}
	cancel()

	close(d.closedChan)
	d.mu.Unlock()

	d.wg.Wait()

	return d.client.Close()
}

// renew keeps a claim's lease alive, renewing every TTL/3 seconds. It
// stops when the claim is released, the directory closes, or the lease
// becomes invalid.
func (d *Directory) renew(ctx context.Context, leaseID clientv3.LeaseID, personaID string) {
	defer d.wg.Done()

	interval := time.Duration(d.ttl) * time.Second / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.closedChan:
			return
		case <-ticker.C:
			if _, err := d.client.KeepAliveOnce(context.Background(), leaseID); err != nil {
				// Lease is gone; the persona is no longer ours.
				d.mu.Lock()
				delete(d.leases, personaID)
				delete(d.cancelFns, personaID)
				d.mu.Unlock()
				return
			}
		}
	}
}

// claimKey constructs the etcd key for a persona claim.
//
// Format: /namespace/persona/persona-id
func (d *Directory) claimKey(personaID string) string {
	return fmt.Sprintf("/%s/persona/%s", d.namespace, personaID)
}
