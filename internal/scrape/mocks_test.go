package scrape

import (
	"context"
	"sync"
	"time"

	"github.com/dmatteo/changuito/internal/domain/catalog"
	"github.com/dmatteo/changuito/internal/domain/observation"
	"github.com/dmatteo/changuito/internal/domain/storefront"
	"github.com/dmatteo/changuito/internal/vtex"
)

// mockCatalog implements catalog.Repository with overridable funcs. Calls to
// methods without an override succeed and do nothing.
type mockCatalog struct {
	mu         sync.Mutex
	upserted   []catalog.Product
	upsertFn   func(ctx context.Context, p *catalog.Product) error
	existsFn   func(ctx context.Context, ean string) (bool, error)
	listEANsFn func(ctx context.Context) ([]string, error)
}

func (m *mockCatalog) Upsert(ctx context.Context, p *catalog.Product) error {
	m.mu.Lock()
	m.upserted = append(m.upserted, *p)
	m.mu.Unlock()
	if m.upsertFn != nil {
		return m.upsertFn(ctx, p)
	}
	return nil
}

func (m *mockCatalog) GetByEAN(context.Context, string) (*catalog.Product, error) {
	return nil, catalog.ErrNotFound
}

func (m *mockCatalog) Exists(ctx context.Context, ean string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, ean)
	}
	return true, nil
}

func (m *mockCatalog) ListEANs(ctx context.Context) ([]string, error) {
	if m.listEANsFn != nil {
		return m.listEANsFn(ctx)
	}
	return nil, nil
}

func (m *mockCatalog) ResetRelevance(context.Context) error { return nil }

func (m *mockCatalog) ApplyRelevanceRule(context.Context, catalog.RelevanceRule) (int64, error) {
	return 0, nil
}

// mockObservations implements observation.Repository, recording writes.
type mockObservations struct {
	mu       sync.Mutex
	upserted []observation.Observation
	updates  []observation.Update
	updateID []int64
	history  []observation.HistoryEntry
	marked   []int64

	upsertFn    func(ctx context.Context, o *observation.Observation) error
	listStaleFn func(ctx context.Context, limit int) ([]observation.Stale, error)
	applyFn     func(ctx context.Context, id int64, u observation.Update) error
	markFn      func(ctx context.Context, id int64, checkedAt time.Time) error
	appendFn    func(ctx context.Context, e *observation.HistoryEntry) error
}

func (m *mockObservations) Upsert(ctx context.Context, o *observation.Observation) error {
	m.mu.Lock()
	m.upserted = append(m.upserted, *o)
	m.mu.Unlock()
	if m.upsertFn != nil {
		return m.upsertFn(ctx, o)
	}
	return nil
}

func (m *mockObservations) ListStale(ctx context.Context, limit int) ([]observation.Stale, error) {
	if m.listStaleFn != nil {
		return m.listStaleFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockObservations) ApplyUpdate(ctx context.Context, id int64, u observation.Update) error {
	m.mu.Lock()
	m.updateID = append(m.updateID, id)
	m.updates = append(m.updates, u)
	m.mu.Unlock()
	if m.applyFn != nil {
		return m.applyFn(ctx, id, u)
	}
	return nil
}

func (m *mockObservations) MarkUnavailable(ctx context.Context, id int64, checkedAt time.Time) error {
	m.mu.Lock()
	m.marked = append(m.marked, id)
	m.mu.Unlock()
	if m.markFn != nil {
		return m.markFn(ctx, id, checkedAt)
	}
	return nil
}

func (m *mockObservations) AppendHistory(ctx context.Context, e *observation.HistoryEntry) error {
	m.mu.Lock()
	m.history = append(m.history, *e)
	m.mu.Unlock()
	if m.appendFn != nil {
		return m.appendFn(ctx, e)
	}
	return nil
}

// mockStorefronts implements storefront.Repository.
type mockStorefronts struct {
	getOrCreateFn func(ctx context.Context, name string) (*storefront.Storefront, error)
}

func (m *mockStorefronts) GetOrCreate(ctx context.Context, name string) (*storefront.Storefront, error) {
	if m.getOrCreateFn != nil {
		return m.getOrCreateFn(ctx, name)
	}
	return &storefront.Storefront{ID: 1, Name: name}, nil
}

// countingReconciler records every product it is asked to reconcile.
type countingReconciler struct {
	mu     sync.Mutex
	seen   []string
	result SaveResult
}

func (r *countingReconciler) Reconcile(_ context.Context, p *vtex.Product, _ int32) SaveResult {
	r.mu.Lock()
	r.seen = append(r.seen, p.EAN)
	r.mu.Unlock()
	return r.result
}
