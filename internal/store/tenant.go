package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/safar/retail-ledger/internal/database"
	"github.com/safar/retail-ledger/internal/persist"
	"go.uber.org/zap"
)

var ErrBusy = errors.New("tenant busy, please try again later")

type Options struct {
	// Locker serializes writers across processes. Nil means this process is
	// the only writer.
	Locker          persist.Locker
	FlushMaxRetries int
	LockAttempts    int
	LockRetryDelay  time.Duration
}

// Tenant owns the collections of one tenant. Writers are serialized and each
// write is applied atomically to memory, then flushed to the store.
type Tenant struct {
	id     string
	store  persist.Store
	logger *zap.Logger
	opts   Options

	mu      sync.RWMutex
	live    *state
	encoded map[string][]byte
	pending map[string][]byte
}

func Open(ctx context.Context, tenantID string, store persist.Store, logger *zap.Logger, opts Options) (*Tenant, error) {
	if opts.LockAttempts <= 0 {
		opts.LockAttempts = 3
	}
	if opts.LockRetryDelay <= 0 {
		opts.LockRetryDelay = 100 * time.Millisecond
	}

	encoded := make(map[string][]byte, len(Keys))
	for _, key := range Keys {
		data, ok, err := store.Load(ctx, tenantID, key)
		if err != nil {
			return nil, fmt.Errorf("load tenant %s: %w", tenantID, err)
		}
		if ok {
			encoded[key] = data
		}
	}

	live, err := decodeState(encoded)
	if err != nil {
		return nil, fmt.Errorf("open tenant %s: %w", tenantID, err)
	}
	// Re-encode so defaults of missing collections compare equal on the first write.
	if encoded, err = encodeState(live); err != nil {
		return nil, err
	}

	return &Tenant{
		id:      tenantID,
		store:   store,
		logger:  logger.With(zap.String("tenant_id", tenantID)),
		opts:    opts,
		live:    live,
		encoded: encoded,
		pending: make(map[string][]byte),
	}, nil
}

func (t *Tenant) ID() string { return t.id }

// View runs fn over the committed state. fn must not mutate it.
func (t *Tenant) View(fn func(*UnitOfWork) error) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return fn(newUnitOfWork(t.live))
}

// Update runs fn over a private copy of the state. If fn fails the copy is
// dropped and nothing changes. Otherwise it replaces the live state and the
// changed collections are flushed as one batch. A failed flush does not fail
// the update; the batch stays pending until a later flush succeeds.
func (t *Tenant) Update(ctx context.Context, fn func(*UnitOfWork) error) error {
	if t.opts.Locker != nil {
		release, err := t.lock(ctx)
		if err != nil {
			return err
		}
		defer release()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	work, err := decodeState(t.encoded)
	if err != nil {
		return fmt.Errorf("copy tenant state: %w", err)
	}

	if err := fn(newUnitOfWork(work)); err != nil {
		return err
	}

	encoded, err := encodeState(work)
	if err != nil {
		return err
	}

	changed := changedCollections(t.encoded, encoded)
	t.live = work
	t.encoded = encoded
	for key, data := range changed {
		t.pending[key] = data
	}

	if err := t.flushLocked(ctx); err != nil {
		t.logger.Warn("flush deferred", zap.Int("pending", len(t.pending)), zap.Error(err))
	}
	return nil
}

// Flush retries any pending batch.
func (t *Tenant) Flush(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flushLocked(ctx)
}

// Pending lists the collections not yet saved.
func (t *Tenant) Pending() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	keys := make([]string, 0, len(t.pending))
	for _, key := range Keys {
		if _, ok := t.pending[key]; ok {
			keys = append(keys, key)
		}
	}
	return keys
}

func (t *Tenant) flushLocked(ctx context.Context) error {
	if len(t.pending) == 0 {
		return nil
	}

	batch := make(map[string][]byte, len(t.pending))
	for key, data := range t.pending {
		batch[key] = data
	}

	err := database.Retry(ctx, t.opts.FlushMaxRetries, func() error {
		return t.store.SaveBatch(ctx, t.id, batch)
	})
	if err != nil {
		return fmt.Errorf("flush %d collections: %w", len(batch), err)
	}

	t.pending = make(map[string][]byte)
	t.logger.Debug("flushed collections", zap.Int("count", len(batch)))
	return nil
}

func (t *Tenant) lock(ctx context.Context) (func(), error) {
	key := "lock:tenant:" + t.id
	value := uuid.New().String()

	for i := 0; i < t.opts.LockAttempts; i++ {
		ok, err := t.opts.Locker.AcquireLock(ctx, key, value)
		if err != nil {
			t.logger.Error("failed to acquire tenant lock", zap.Error(err))
		}
		if ok {
			return func() {
				if err := t.opts.Locker.ReleaseLock(context.Background(), key, value); err != nil {
					t.logger.Warn("failed to release tenant lock", zap.Error(err))
				}
			}, nil
		}

		select {
		case <-time.After(t.opts.LockRetryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, ErrBusy
}
