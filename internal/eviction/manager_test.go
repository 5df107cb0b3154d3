package eviction_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lucasew/diskcache/internal/eviction"
	"github.com/lucasew/diskcache/internal/eviction/lru"
	"github.com/lucasew/diskcache/internal/eviction/policy"
	"github.com/lucasew/diskcache/internal/eviction/policy/maxcount"
	"github.com/lucasew/diskcache/internal/eviction/policy/maxsize"
)

// memStore is an in-memory eviction.Store.
type memStore struct {
	mu      sync.Mutex
	files   map[string]eviction.FileMetadata
	deleted []string
	// gate, when set, blocks Names until closed.
	gate chan struct{}
}

func newMemStore() *memStore {
	return &memStore{files: make(map[string]eviction.FileMetadata)}
}

func (s *memStore) put(name string, size int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = eviction.FileMetadata{Name: name, Size: size, LastUsed: at}
}

func (s *memStore) has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[name]
	return ok
}

func (s *memStore) Names() ([]string, error) {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for n := range s.files {
		names = append(names, n)
	}
	return names, nil
}

func (s *memStore) Stat(name string) (eviction.FileMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, ok := s.files[name]
	if !ok {
		return meta, errors.New("not found")
	}
	return meta, nil
}

func (s *memStore) Exists(name string) bool { return s.has(name) }

func (s *memStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, name)
	s.deleted = append(s.deleted, name)
	return nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func newManager(store *memStore, maxCount, maxBytes int64) *eviction.Manager {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	policies := []policy.Policy{
		&maxcount.Policy{MaxCount: maxCount},
		&maxsize.Policy{MaxBytes: maxBytes},
	}
	return eviction.NewManager(store, policies, lru.New(), eviction.WithClock(c.Now))
}

func admit(m *eviction.Manager, s *memStore, name string, size int64) {
	s.put(name, size, time.Time{})
	m.Admit(name, size)
}

func TestManager_CountLimit(t *testing.T) {
	store := newMemStore()
	mgr := newManager(store, 2, 1<<20)

	admit(mgr, store, "a", 10)
	admit(mgr, store, "b", 10)
	admit(mgr, store, "c", 10)

	if store.has("a") {
		t.Error("expected a to be evicted")
	}
	if !store.has("b") || !store.has("c") {
		t.Error("expected b and c to remain")
	}
	if mgr.Count() != 2 || mgr.Size() != 20 {
		t.Errorf("expected 2 entries / 20 bytes, got %d / %d", mgr.Count(), mgr.Size())
	}
}

func TestManager_TouchExtendsPriority(t *testing.T) {
	store := newMemStore()
	mgr := newManager(store, 2, 1<<20)

	admit(mgr, store, "a", 10)
	admit(mgr, store, "b", 10)
	mgr.Touch("a")
	admit(mgr, store, "c", 10)

	if store.has("b") {
		t.Error("expected b to be evicted")
	}
	if !store.has("a") {
		t.Error("touched entry a should survive")
	}
}

func TestManager_SizeLimit(t *testing.T) {
	store := newMemStore()
	mgr := newManager(store, 100, 50)

	admit(mgr, store, "file1", 20)
	admit(mgr, store, "file2", 20)
	admit(mgr, store, "file3", 20)

	if store.has("file1") {
		t.Error("expected file1 to be evicted")
	}
	if mgr.Size() != 40 {
		t.Errorf("expected 40 bytes, got %d", mgr.Size())
	}

	// An entry bigger than the whole namespace evicts everything else.
	admit(mgr, store, "huge", 80)
	if mgr.Count() != 1 || mgr.Size() != 80 {
		t.Errorf("expected single huge entry, got %d / %d", mgr.Count(), mgr.Size())
	}
	if !store.has("huge") {
		t.Error("oversized entry must still be stored")
	}
}

func TestManager_ReplaceSameName(t *testing.T) {
	store := newMemStore()
	mgr := newManager(store, 2, 1<<20)

	admit(mgr, store, "a", 10)
	admit(mgr, store, "b", 10)
	admit(mgr, store, "a", 30)

	if mgr.Count() != 2 || mgr.Size() != 40 {
		t.Errorf("expected 2 / 40, got %d / %d", mgr.Count(), mgr.Size())
	}
	if len(store.deleted) != 0 {
		t.Errorf("replacing an entry must not evict, deleted %v", store.deleted)
	}
}

func TestManager_AdmitEvictedWhileWriting(t *testing.T) {
	store := newMemStore()
	mgr := newManager(store, 2, 1<<20)

	admit(mgr, store, "a", 10)
	admit(mgr, store, "b", 10)

	// "a" is rewritten: the old record is still tracked when "c" needs a slot,
	// so the fresh files of "a" are evicted before "a" is admitted again.
	store.put("a", 15, time.Time{})
	admit(mgr, store, "c", 10)
	if store.has("a") {
		t.Fatal("expected a to be evicted")
	}

	if mgr.Admit("a", 15) {
		t.Error("admitting an entry whose files are gone must fail")
	}
	if mgr.Count() != 2 || mgr.Size() != 20 {
		t.Errorf("expected 2 / 20 for b and c, got %d / %d", mgr.Count(), mgr.Size())
	}
	if _, ok := mgr.Tracked("a"); ok {
		t.Error("a must not be tracked")
	}
}

func TestManager_RemoveAndReset(t *testing.T) {
	store := newMemStore()
	mgr := newManager(store, 10, 1<<20)

	admit(mgr, store, "a", 7)
	admit(mgr, store, "b", 5)

	mgr.Remove("a")
	if mgr.Count() != 1 || mgr.Size() != 5 {
		t.Errorf("expected 1 / 5, got %d / %d", mgr.Count(), mgr.Size())
	}
	mgr.Remove("a")
	if mgr.Count() != 1 {
		t.Error("removing an untracked name must not change totals")
	}

	mgr.Reset()
	if mgr.Count() != 0 || mgr.Size() != 0 {
		t.Errorf("expected zero totals after reset, got %d / %d", mgr.Count(), mgr.Size())
	}
}

func TestManager_LoadInitialState(t *testing.T) {
	store := newMemStore()
	base := time.Unix(1_600_000_000, 0)
	for i := 0; i < 5; i++ {
		store.put(fmt.Sprintf("file%d", i), 20, base.Add(time.Duration(i)*time.Minute))
	}

	mgr := newManager(store, 3, 1<<20)
	if err := mgr.LoadInitialState(context.Background()); err != nil {
		t.Fatalf("LoadInitialState failed: %v", err)
	}

	// The two oldest by last use are evicted once the scan corrects the totals.
	if store.has("file0") || store.has("file1") {
		t.Errorf("expected oldest files evicted, deleted %v", store.deleted)
	}
	if mgr.Count() != 3 || mgr.Size() != 60 {
		t.Errorf("expected 3 / 60, got %d / %d", mgr.Count(), mgr.Size())
	}
}

func TestManager_ColdStart(t *testing.T) {
	store := newMemStore()
	old := time.Unix(1_600_000_000, 0)
	store.put("old1", 10, old)
	store.put("old2", 10, old.Add(time.Second))
	store.gate = make(chan struct{})

	mgr := newManager(store, 2, 1<<20)
	mgr.Start(context.Background())

	// Before the scan completes admissions only see a cold baseline.
	admit(mgr, store, "new", 10)
	if !store.has("old1") || !store.has("old2") {
		t.Fatal("eviction should be deferred until the scan completes")
	}
	if mgr.Count() != 1 {
		t.Errorf("expected cold count 1, got %d", mgr.Count())
	}

	close(store.gate)
	if err := mgr.WaitReady(context.Background()); err != nil {
		t.Fatalf("WaitReady failed: %v", err)
	}

	if mgr.Count() != 2 {
		t.Errorf("expected count 2 after scan, got %d", mgr.Count())
	}
	if store.has("old1") {
		t.Error("oldest scanned entry should be evicted after the scan")
	}
	if !store.has("new") {
		t.Error("entry admitted during the scan is the most recent and must survive")
	}
}

func TestManager_WaitReadyContext(t *testing.T) {
	store := newMemStore()
	store.gate = make(chan struct{})
	defer close(store.gate)

	mgr := newManager(store, 2, 1<<20)
	mgr.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := mgr.WaitReady(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestManager_ConcurrentAdmit(t *testing.T) {
	store := newMemStore()
	mgr := newManager(store, 10, 1<<20)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			admit(mgr, store, fmt.Sprintf("f%d", i), 3)
		}()
	}
	wg.Wait()

	if mgr.Count() != 10 || mgr.Size() != 30 {
		t.Errorf("expected 10 / 30, got %d / %d", mgr.Count(), mgr.Size())
	}
}

func TestRegistry(t *testing.T) {
	s, err := eviction.GetStrategy("lru")
	if err != nil {
		t.Fatalf("GetStrategy failed: %v", err)
	}
	if s.Len() != 0 {
		t.Error("expected a fresh strategy")
	}
	if _, err := eviction.GetStrategy("nope"); err == nil {
		t.Error("expected error for unknown strategy")
	}

	defer func() {
		if recover() == nil {
			t.Error("registering lru twice should panic")
		}
	}()
	eviction.Register("lru", func() eviction.Strategy { return lru.New() })
}
