package eviction

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lucasew/diskcache/internal/errutil"
	"github.com/lucasew/diskcache/internal/eviction/policy"
	"golang.org/x/sync/errgroup"
)

const defaultScanWorkers = 8

// Manager keeps a namespace within its limits.
//
// Totals are atomics so they can be read without locking. Every change to the
// tracked set (admission, eviction, removal, the scan merge) happens under mu,
// so two callers can never pick the same victim.
type Manager struct {
	store    Store
	policies []policy.Policy
	strategy Strategy
	now      func() time.Time
	logger   *slog.Logger
	workers  int

	mu         sync.Mutex
	totalBytes atomic.Int64
	totalCount atomic.Int64

	startOnce sync.Once
	ready     chan struct{}
	scanErr   error
}

type Option func(*Manager)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithScanWorkers bounds how many entries the startup scan loads in parallel.
func WithScanWorkers(n int) Option {
	return func(m *Manager) { m.workers = n }
}

// NewManager creates a new Manager. Policies are enforced in the given order
// on every admission.
func NewManager(store Store, policies []policy.Policy, strategy Strategy, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		policies: policies,
		strategy: strategy,
		now:      time.Now,
		logger:   slog.Default(),
		workers:  defaultScanWorkers,
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start runs the startup scan in the background. Calling it more than once has no effect.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		go func() {
			defer close(m.ready)
			m.scanErr = m.LoadInitialState(ctx)
			errutil.LogMsg(m.logger, m.scanErr, "Failed to load initial cache state")
		}()
	})
}

// Ready is closed once the startup scan has finished.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// WaitReady blocks until the startup scan has finished and returns its error.
func (m *Manager) WaitReady(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.ready:
		return m.scanErr
	}
}

// LoadInitialState scans the store and merges what it finds into the tracked set.
//
// Entries tracked meanwhile by Admit are kept as they are, and entries that
// disappeared before the merge are skipped. Limits are enforced afterwards,
// since admissions before the merge were checked against partial totals.
func (m *Manager) LoadInitialState(ctx context.Context) error {
	if m.store == nil {
		return fmt.Errorf("store not initialized")
	}

	names, err := m.store.Names()
	if err != nil {
		return fmt.Errorf("failed to walk cache: %w", err)
	}

	found := make([]*FileMetadata, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			meta, err := m.store.Stat(name)
			if err != nil {
				// Incomplete or corrupt pairs heal on access.
				m.logger.Debug("Skipping entry during scan", "name", name, "error", err)
				return nil
			}
			found[i] = &meta
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to scan cache: %w", err)
	}

	var metas []FileMetadata
	for _, meta := range found {
		if meta != nil {
			metas = append(metas, *meta)
		}
	}
	sort.SliceStable(metas, func(i, j int) bool {
		return metas[i].LastUsed.Before(metas[j].LastUsed)
	})

	m.mu.Lock()
	var count int
	var size int64
	for _, meta := range metas {
		if _, tracked := m.strategy.Lookup(meta.Name); tracked {
			continue
		}
		if !m.store.Exists(meta.Name) {
			continue
		}
		m.track(meta.Name, meta.Size, meta.LastUsed)
		count++
		size += meta.Size
	}
	evicted := m.enforce(policy.Usage{})
	m.mu.Unlock()

	m.logger.Info("Initial cache state loaded", "count", count, "size", size, "evicted", evicted)
	return nil
}

// Admit tracks a freshly written entry, evicting others until the namespace
// has room for it. Limits are checked in policy order, so with a count policy
// first a slot is freed before bytes are.
//
// An entry larger than a size limit on its own still ends up tracked, after
// everything else was evicted.
//
// The files of name may have been evicted between the caller writing them and
// this call, while a previous record of name was still tracked. Admit then
// tracks nothing and returns false.
func (m *Manager) Admit(name string, size int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.untrack(name)
	if !m.store.Exists(name) {
		m.logger.Debug("Entry evicted before admission", "name", name, "size", size)
		return false
	}
	evicted := m.enforce(policy.Usage{Bytes: size, Count: 1})
	m.track(name, size, m.now())
	if evicted > 0 {
		m.logger.Debug("Admitted entry", "name", name, "size", size, "evicted", evicted)
	}
	return true
}

// Touch marks name as used now. Totals are unchanged.
func (m *Manager) Touch(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strategy.OnAccess(name, m.now())
}

// Remove stops tracking name without deleting anything from disk.
func (m *Manager) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.untrack(name)
}

// Reset drops every tracked entry and zeroes the totals.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.strategy.Reset()
	m.totalBytes.Store(0)
	m.totalCount.Store(0)
}

// RunEviction evicts entries until every policy is satisfied and returns how many were evicted.
func (m *Manager) RunEviction() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enforce(policy.Usage{})
}

// Size returns the tracked total of data bytes.
func (m *Manager) Size() int64 {
	return m.totalBytes.Load()
}

// Count returns the number of tracked entries.
func (m *Manager) Count() int64 {
	return m.totalCount.Load()
}

// Tracked reports whether name is tracked and its size.
func (m *Manager) Tracked(name string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.strategy.Lookup(name)
	return v.Size, ok
}

// enforce evicts until the current totals plus incoming satisfy every policy.
// Callers must hold mu.
func (m *Manager) enforce(incoming policy.Usage) int {
	evicted := 0
	for _, p := range m.policies {
		for {
			usage := policy.Usage{
				Bytes: m.totalBytes.Load() + incoming.Bytes,
				Count: m.totalCount.Load() + incoming.Count,
			}
			over, err := p.Exceeded(usage)
			if err != nil {
				errutil.ReportError(m.logger, err, "Failed to check capacity policy", "policy", p.Name())
				break
			}
			if !over {
				break
			}
			if _, ok := m.evictOne(); !ok {
				break
			}
			evicted++
		}
	}
	return evicted
}

// evictOne deletes the least preferred tracked entry and returns its size.
// Callers must hold mu.
func (m *Manager) evictOne() (int64, bool) {
	victim, ok := m.strategy.Victim()
	if !ok {
		return 0, false
	}

	if err := m.store.Delete(victim.Name); err != nil {
		errutil.ReportError(m.logger, err, "Failed to remove file", "name", victim.Name)
	}

	// We assume it's gone.
	m.untrack(victim.Name)
	m.logger.Info("Evicted entry", "name", victim.Name, "size", victim.Size, "last_used", victim.At)
	return victim.Size, true
}

func (m *Manager) track(name string, size int64, at time.Time) {
	diff := m.strategy.OnAdd(name, size, at)
	m.totalBytes.Add(diff)
	m.totalCount.Add(1)
}

func (m *Manager) untrack(name string) {
	if size, ok := m.strategy.Remove(name); ok {
		m.totalBytes.Add(-size)
		m.totalCount.Add(-1)
	}
}
