package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/safar/retail-ledger/internal/database"
	"github.com/safar/retail-ledger/internal/errs"
	"github.com/safar/retail-ledger/internal/models"
	"github.com/safar/retail-ledger/internal/persist"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func init() {
	database.BaseBackoff = time.Millisecond
}

type flakyStore struct {
	*persist.Memory
	mu       sync.Mutex
	failures int
	batches  []map[string][]byte
}

func (f *flakyStore) SaveBatch(ctx context.Context, tenantID string, batch map[string][]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return database.MarkTransient(errors.New("connection reset"))
	}
	f.batches = append(f.batches, batch)
	return f.Memory.SaveBatch(ctx, tenantID, batch)
}

func openTenant(t *testing.T, store persist.Store, opts Options) *Tenant {
	t.Helper()
	tenant, err := Open(context.Background(), "shop", store, zap.NewNop(), opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return tenant
}

func TestUpdateCommitsAndFlushesChangedCollections(t *testing.T) {
	store := &flakyStore{Memory: persist.NewMemory()}
	tenant := openTenant(t, store, Options{FlushMaxRetries: 2})
	ctx := context.Background()

	err := tenant.Update(ctx, func(u *UnitOfWork) error {
		_, err := u.Catalog().Upsert(models.Product{ID: "p1", Name: "Mug", Price: decimal.NewFromInt(5), Stock: 10})
		return err
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if len(store.batches) != 1 {
		t.Fatalf("Expected one batch, got %d", len(store.batches))
	}
	if _, ok := store.batches[0][KeyProducts]; !ok || len(store.batches[0]) != 1 {
		t.Errorf("Expected only products in the batch, got %v", keysOf(store.batches[0]))
	}

	reopened := openTenant(t, store.Memory, Options{})
	err = reopened.View(func(u *UnitOfWork) error {
		p, err := u.Catalog().Product("p1")
		if err != nil {
			return err
		}
		if p.Stock != 10 {
			t.Errorf("Expected stock 10 after reload, got %d", p.Stock)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestUpdateRollsBackOnError(t *testing.T) {
	store := persist.NewMemory()
	tenant := openTenant(t, store, Options{})
	ctx := context.Background()

	seed := func(u *UnitOfWork) error {
		u.AddSale(models.Sale{ID: "s1", Status: models.SaleStatusPendingApproval})
		_, err := u.Catalog().Upsert(models.Product{ID: "p1", Stock: 4})
		return err
	}
	if err := tenant.Update(ctx, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	boom := errors.New("boom")
	err := tenant.Update(ctx, func(u *UnitOfWork) error {
		s, _ := u.Sale("s1")
		s.Status = models.SaleStatusCompleted
		p, _ := u.Catalog().Product("p1")
		p.Stock = 0
		return boom
	})
	if err != boom {
		t.Fatalf("Expected boom, got %v", err)
	}

	tenant.View(func(u *UnitOfWork) error {
		s, _ := u.Sale("s1")
		if s.Status != models.SaleStatusPendingApproval {
			t.Errorf("Sale status leaked from failed update: %s", s.Status)
		}
		p, _ := u.Catalog().Product("p1")
		if p.Stock != 4 {
			t.Errorf("Stock leaked from failed update: %d", p.Stock)
		}
		return nil
	})
}

func TestFlushRetriesTransientFailures(t *testing.T) {
	store := &flakyStore{Memory: persist.NewMemory(), failures: 2}
	tenant := openTenant(t, store, Options{FlushMaxRetries: 3})

	err := tenant.Update(context.Background(), func(u *UnitOfWork) error {
		u.Settings().CommissionTrackingEnabled = true
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if pending := tenant.Pending(); len(pending) != 0 {
		t.Errorf("Expected nothing pending, got %v", pending)
	}
	if len(store.batches) != 1 {
		t.Errorf("Expected one successful batch, got %d", len(store.batches))
	}
}

func TestExhaustedFlushStaysPending(t *testing.T) {
	store := &flakyStore{Memory: persist.NewMemory(), failures: 10}
	tenant := openTenant(t, store, Options{FlushMaxRetries: 1})
	ctx := context.Background()

	err := tenant.Update(ctx, func(u *UnitOfWork) error {
		u.AddDeposit(models.Deposit{ID: "d1", Amount: decimal.NewFromInt(20), Status: models.ApprovalPending})
		return nil
	})
	if err != nil {
		t.Fatalf("Update should succeed despite flush failure: %v", err)
	}

	pending := tenant.Pending()
	if len(pending) != 1 || pending[0] != KeyDeposits {
		t.Fatalf("Expected deposits pending, got %v", pending)
	}

	tenant.View(func(u *UnitOfWork) error {
		if _, err := u.Deposit("d1"); err != nil {
			t.Errorf("Memory should remain the source of truth: %v", err)
		}
		return nil
	})

	store.mu.Lock()
	store.failures = 0
	store.mu.Unlock()

	if err := tenant.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if pending := tenant.Pending(); len(pending) != 0 {
		t.Errorf("Expected nothing pending after flush, got %v", pending)
	}
	if _, ok, _ := store.Memory.Load(ctx, "shop", KeyDeposits); !ok {
		t.Error("Deposits should be persisted after flush")
	}
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]string
}

func (l *fakeLocker) AcquireLock(_ context.Context, key, value string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return false, nil
	}
	l.held[key] = value
	return true, nil
}

func (l *fakeLocker) ReleaseLock(_ context.Context, key, value string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == value {
		delete(l.held, key)
	}
	return nil
}

func TestUpdateHonoursDistributedLock(t *testing.T) {
	locker := &fakeLocker{held: map[string]string{"lock:tenant:shop": "someone-else"}}
	tenant := openTenant(t, persist.NewMemory(), Options{
		Locker:         locker,
		LockAttempts:   2,
		LockRetryDelay: time.Millisecond,
	})

	err := tenant.Update(context.Background(), func(u *UnitOfWork) error { return nil })
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("Expected ErrBusy, got %v", err)
	}

	delete(locker.held, "lock:tenant:shop")
	if err := tenant.Update(context.Background(), func(u *UnitOfWork) error { return nil }); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(locker.held) != 0 {
		t.Error("Lock should be released after the update")
	}
}

func TestLookupsReportNotFound(t *testing.T) {
	tenant := openTenant(t, persist.NewMemory(), Options{})
	tenant.View(func(u *UnitOfWork) error {
		if _, err := u.Sale("missing"); !errors.Is(err, errs.ErrNotFound) {
			t.Errorf("Sale: expected not found, got %v", err)
		}
		if _, err := u.User("missing"); !errors.Is(err, errs.ErrNotFound) {
			t.Errorf("User: expected not found, got %v", err)
		}
		if _, err := u.ExpenseRequest("missing"); !errors.Is(err, errs.ErrNotFound) {
			t.Errorf("ExpenseRequest: expected not found, got %v", err)
		}
		return nil
	})
}

func keysOf(m map[string][]byte) []string {
	var out []string
	for k := range m {
		out = append(out, k)
	}
	return out
}
