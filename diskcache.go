// Package diskcache is a typed key-value cache persisted in a local directory.
//
// Each key is stored as two sibling files: a JSON config holding the key, the
// value tag and the timestamps, and a data file holding the encoded payload.
// Entries may carry a TTL, and every namespace (one directory) is kept within
// a byte size and an entry count limit by evicting the least recently used
// entries.
//
// Failures never surface as panics or errors on the main API: writes report
// false, reads report a miss or return the caller's default, and the cause is
// logged. Corrupt or half-written entries are removed the next time their key
// is accessed.
package diskcache

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/lucasew/diskcache/internal/errutil"
	"github.com/lucasew/diskcache/internal/eviction"
	_ "github.com/lucasew/diskcache/internal/eviction/fifo"
	_ "github.com/lucasew/diskcache/internal/eviction/lru"
	"github.com/lucasew/diskcache/internal/eviction/policy"
	"github.com/lucasew/diskcache/internal/eviction/policy/maxcount"
	"github.com/lucasew/diskcache/internal/eviction/policy/maxsize"
	"github.com/lucasew/diskcache/internal/eviction/policy/minfree"
	"github.com/lucasew/diskcache/internal/filecodec"
	"golang.org/x/sync/singleflight"
)

// Options configures a Store. The zero value is an unlimited LRU namespace.
type Options struct {
	// SizeLimit bounds the total size of data files in bytes. Zero or negative means unlimited.
	SizeLimit int64
	// CountLimit bounds the number of entries. Zero or negative means unlimited.
	CountLimit int64
	// MinFreeBytes evicts entries while the filesystem has less free space than this.
	MinFreeBytes int64

	// Strategy names the eviction order, "lru" (default) or "fifo".
	Strategy string
	// HashAlgo derives file names from keys, "sha256" (default) or "sha512".
	HashAlgo string

	JSON   JSONEngine
	Images ImageCodec

	Logger *slog.Logger
	// Now replaces time.Now, mostly for tests.
	Now func() time.Time

	// WaitForScan makes Open block until the startup scan has finished.
	WaitForScan bool
	// ScanWorkers bounds the parallelism of the startup scan.
	ScanWorkers int
}

// EntryInfo describes a stored entry.
type EntryInfo struct {
	Key          string
	Tag          filecodec.Tag
	SaveTime     time.Time
	ValidTime    time.Duration
	LastModified time.Time
	Size         int64
	Expired      bool
}

// Permanent reports whether the entry has no TTL.
func (e EntryInfo) Permanent() bool {
	return e.ValidTime <= 0
}

const lockStripes = 256

// Store is one cache namespace.
//
// Calls are synchronous and safe for concurrent use. Operations on the same
// key are serialized; the startup scan is the only background work.
type Store struct {
	dir     *filecodec.Dir
	manager *eviction.Manager
	codecs  codecs
	logger  *slog.Logger
	now     func() time.Time

	locks  [lockStripes]sync.Mutex
	group  singleflight.Group
	cancel context.CancelFunc
}

// Open creates the namespace directory if needed and starts the startup scan.
//
// Until the scan finishes the size and count totals only include entries
// written through this Store, so eviction of pre-existing entries is deferred
// to the end of the scan. Use Options.WaitForScan or WaitReady when the limits
// must hold from the first call.
func Open(path string, opts Options) (*Store, error) {
	dir, err := filecodec.New(path, opts.HashAlgo)
	if err != nil {
		return nil, err
	}

	strategyName := opts.Strategy
	if strategyName == "" {
		strategyName = "lru"
	}
	strat, err := eviction.GetStrategy(strategyName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize eviction strategy: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("cache_dir", path)

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	// Count before size: first make room for one more entry, then for its bytes.
	var policies []policy.Policy
	if opts.CountLimit > 0 {
		policies = append(policies, &maxcount.Policy{MaxCount: opts.CountLimit})
	}
	if opts.SizeLimit > 0 {
		policies = append(policies, &maxsize.Policy{MaxBytes: opts.SizeLimit})
	}
	if opts.MinFreeBytes > 0 {
		policies = append(policies, &minfree.Policy{Path: path, MinFreeBytes: opts.MinFreeBytes, Logger: logger})
	}

	managerOpts := []eviction.Option{eviction.WithClock(now), eviction.WithLogger(logger)}
	if opts.ScanWorkers > 0 {
		managerOpts = append(managerOpts, eviction.WithScanWorkers(opts.ScanWorkers))
	}

	s := &Store{
		dir:     dir,
		manager: eviction.NewManager(evictionStore{dir}, policies, strat, managerOpts...),
		codecs:  codecs{json: opts.JSON, images: opts.Images},
		logger:  logger,
		now:     now,
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.manager.Start(ctx)

	if opts.WaitForScan {
		if err := s.manager.WaitReady(context.Background()); err != nil {
			cancel()
			return nil, err
		}
	}
	return s, nil
}

// Close stops the startup scan if it is still running and waits for it to
// return. The files stay on disk.
func (s *Store) Close() {
	s.cancel()
	<-s.manager.Ready()
}

// Dir returns the namespace directory.
func (s *Store) Dir() string {
	return s.dir.Path
}

// Ready is closed once the startup scan has finished.
func (s *Store) Ready() <-chan struct{} {
	return s.manager.Ready()
}

// WaitReady blocks until the startup scan has finished.
func (s *Store) WaitReady(ctx context.Context) error {
	return s.manager.WaitReady(ctx)
}

// Size returns the tracked total size of data files in bytes.
func (s *Store) Size() int64 {
	return s.manager.Size()
}

// Count returns the tracked number of entries.
func (s *Store) Count() int64 {
	return s.manager.Count()
}

// Put stores v under key, replacing any previous value. A ttl of zero or less
// never expires. It reports false if the entry could not be written.
func (s *Store) Put(key string, v Value, ttl time.Duration) bool {
	if err := s.put(key, v, ttl); err != nil {
		errutil.LogMsg(s.logger, err, "Failed to put entry", "key", key)
		return false
	}
	return true
}

func (s *Store) put(key string, v Value, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if v == nil {
		return fmt.Errorf("nil value")
	}

	data, err := v.encode(s.codecs)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", v.Tag(), err)
	}

	name := s.dir.Name(key)
	mu := s.lock(name)
	mu.Lock()
	defer mu.Unlock()

	existing, err := s.dir.ReadConfig(name)
	if err == nil && existing.Key != key {
		return fmt.Errorf("%w: %q and %q share file %s", ErrKeyCollision, key, existing.Key, name)
	}

	now := s.now().UnixMilli()
	if err := s.dir.WriteData(name, data); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	cfg := filecodec.Config{
		Key:          key,
		Tag:          v.Tag(),
		SaveTime:     now,
		ValidTime:    ttlMillis(ttl),
		LastModified: now,
	}
	if err := s.dir.WriteConfig(name, cfg); err != nil {
		// The new data must not be read through a stale config.
		errutil.LogMsg(s.logger, s.dir.Delete(name), "Failed to remove partial entry", "key", key)
		s.manager.Remove(name)
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	if !s.manager.Admit(name, int64(len(data))) {
		// Eviction removed the pair while it was being written.
		errutil.LogMsg(s.logger, s.dir.Delete(name), "Failed to remove partial entry", "key", key)
		return fmt.Errorf("%w: entry evicted while being written", ErrIO)
	}
	s.logger.Debug("Stored entry", "key", key, "type", cfg.Tag, "size", len(data))
	return nil
}

// Get returns the value stored under key. Missing, corrupt and expired
// entries are misses; the latter two are deleted.
func (s *Store) Get(key string) (Value, bool) {
	v, err := s.get(key, nil)
	if err != nil {
		s.logMiss(key, err)
		return nil, false
	}
	return v, true
}

// GetAs returns the value stored under key if it has the same type as def,
// and def otherwise.
func GetAs[T Value](s *Store, key string, def T) T {
	want := def.Tag()
	v, err := s.get(key, &want)
	if err != nil {
		s.logMiss(key, err)
		return def
	}
	t, ok := v.(T)
	if !ok {
		return def
	}
	return t
}

// GetInt returns the Int stored under key, or def.
func (s *Store) GetInt(key string, def int32) int32 {
	return int32(GetAs(s, key, Int(def)))
}

// GetLong returns the Long stored under key, or def.
func (s *Store) GetLong(key string, def int64) int64 {
	return int64(GetAs(s, key, Long(def)))
}

// GetFloat returns the Float stored under key, or def.
func (s *Store) GetFloat(key string, def float32) float32 {
	return float32(GetAs(s, key, Float(def)))
}

// GetDouble returns the Double stored under key, or def.
func (s *Store) GetDouble(key string, def float64) float64 {
	return float64(GetAs(s, key, Double(def)))
}

// GetBool returns the Bool stored under key, or def.
func (s *Store) GetBool(key string, def bool) bool {
	return bool(GetAs(s, key, Bool(def)))
}

// GetString returns the String stored under key, or def.
func (s *Store) GetString(key string, def string) string {
	return string(GetAs(s, key, String(def)))
}

// GetBytes returns the Bytes stored under key, or def.
func (s *Store) GetBytes(key string, def []byte) []byte {
	return []byte(GetAs(s, key, Bytes(def)))
}

// GetImage returns the Image stored under key, or def.
func (s *Store) GetImage(key string, def image.Image) image.Image {
	return GetAs(s, key, Image{Image: def}).Image
}

// GetEntity decodes the entity stored under key into out.
func (s *Store) GetEntity(key string, out any) bool {
	want := filecodec.TagEntity
	v, err := s.get(key, &want)
	if err == nil {
		err = v.(Entity).Decode(out)
	}
	if err != nil {
		s.logMiss(key, err)
		return false
	}
	return true
}

// GetObject decodes the gob object stored under key into out.
func (s *Store) GetObject(key string, out any) bool {
	want := filecodec.TagObject
	v, err := s.get(key, &want)
	if err == nil {
		err = v.(Object).Decode(out)
	}
	if err != nil {
		s.logMiss(key, err)
		return false
	}
	return true
}

// GetOrLoad returns the value under key, calling load to produce and store it
// on a miss. Concurrent callers for the same key share a single load.
func (s *Store) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) (Value, error)) (Value, error) {
	if v, ok := s.Get(key); ok {
		return v, nil
	}

	res, err, _ := s.group.Do(key, func() (interface{}, error) {
		// Double check, another caller may have stored it meanwhile
		if v, err := s.get(key, nil); err == nil {
			return v, nil
		}
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.put(key, v, ttl); err != nil {
			return nil, err
		}
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(Value), nil
}

// get reads key. When want is set, an entry with a different tag is a miss
// that leaves the entry untouched.
func (s *Store) get(key string, want *filecodec.Tag) (Value, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	name := s.dir.Name(key)
	mu := s.lock(name)
	mu.Lock()
	defer mu.Unlock()

	cfg, err := s.liveConfig(key, name)
	if err != nil {
		return nil, err
	}
	if want != nil && cfg.Tag != *want {
		return nil, fmt.Errorf("%w: stored %s, requested %s", ErrTypeMismatch, cfg.Tag, *want)
	}

	data, err := s.dir.ReadData(name)
	if err != nil {
		if errors.Is(err, filecodec.ErrMissingData) {
			s.heal(key, name)
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	v, err := decode(cfg.Tag, data, s.codecs)
	if err != nil {
		if errors.Is(err, ErrNoCodec) {
			return nil, err
		}
		s.heal(key, name)
		return nil, fmt.Errorf("%w: payload: %w", ErrCorrupt, err)
	}

	now := s.now()
	cfg.LastModified = max(now.UnixMilli(), cfg.SaveTime)
	errutil.LogMsg(s.logger, s.dir.WriteConfig(name, cfg), "Failed to refresh entry", "key", key)
	errutil.LogMsg(s.logger, s.dir.Touch(name, now), "Failed to touch data file", "key", key)
	s.manager.Touch(name)
	return v, nil
}

// liveConfig loads the config of key, deleting the entry if it is corrupt or
// expired. Callers must hold the key's lock.
func (s *Store) liveConfig(key, name string) (filecodec.Config, error) {
	cfg, err := s.dir.ReadConfig(name)
	switch {
	case errors.Is(err, filecodec.ErrNotFound):
		// A data file may have been left without its config.
		s.heal(key, name)
		return cfg, err
	case errors.Is(err, filecodec.ErrCorruptConfig):
		s.heal(key, name)
		return cfg, err
	case err != nil:
		return cfg, fmt.Errorf("%w: %w", ErrIO, err)
	}

	if cfg.Key != key {
		return cfg, fmt.Errorf("%w: %q is stored in the file of %q", ErrKeyCollision, cfg.Key, key)
	}
	if cfg.Expired(s.now().UnixMilli()) {
		s.heal(key, name)
		return cfg, ErrExpired
	}
	return cfg, nil
}

// heal removes whatever is left of an unusable entry.
func (s *Store) heal(key, name string) {
	if err := s.dir.Delete(name); err != nil {
		errutil.LogMsg(s.logger, err, "Failed to remove broken entry", "key", key)
		return
	}
	s.manager.Remove(name)
}

func (s *Store) logMiss(key string, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrExpired), errors.Is(err, ErrTypeMismatch):
		s.logger.Debug("Cache miss", "key", key, "reason", err)
	default:
		errutil.LogMsg(s.logger, err, "Failed to get entry", "key", key)
	}
}

// Remove deletes the entry under key. It reports true when nothing is left,
// including when there was no entry.
func (s *Store) Remove(key string) bool {
	if key == "" {
		return true
	}
	name := s.dir.Name(key)
	mu := s.lock(name)
	mu.Lock()
	defer mu.Unlock()

	if cfg, err := s.dir.ReadConfig(name); err == nil && cfg.Key != key {
		// The file belongs to another key.
		return true
	}
	if err := s.dir.Delete(name); err != nil {
		errutil.LogMsg(s.logger, err, "Failed to remove entry", "key", key)
		return false
	}
	s.manager.Remove(name)
	return true
}

// Clear deletes every file of the namespace and resets the totals.
func (s *Store) Clear() bool {
	err := s.dir.Clear()
	s.manager.Reset()
	if err != nil {
		errutil.LogMsg(s.logger, err, "Failed to clear cache")
		return false
	}
	s.logger.Info("Cache cleared")
	return true
}

// Contains reports whether key has a live entry. It does not refresh the entry.
func (s *Store) Contains(key string) bool {
	if key == "" {
		return false
	}
	name := s.dir.Name(key)
	rec, err := s.dir.Load(name)
	if err != nil {
		return false
	}
	return rec.Config.Key == key && !rec.Config.Expired(s.now().UnixMilli())
}

// IsDue reports whether key has an entry whose TTL has elapsed. Missing keys
// are not due. It does not delete or refresh anything.
func (s *Store) IsDue(key string) bool {
	if key == "" {
		return false
	}
	cfg, err := s.dir.ReadConfig(s.dir.Name(key))
	if err != nil || cfg.Key != key {
		return false
	}
	return cfg.Expired(s.now().UnixMilli())
}

// Keys describes every readable entry, expired ones included.
func (s *Store) Keys() []EntryInfo {
	return s.keys(func(EntryInfo) bool { return true })
}

// PermanentKeys describes every readable entry without a TTL.
func (s *Store) PermanentKeys() []EntryInfo {
	return s.keys(EntryInfo.Permanent)
}

func (s *Store) keys(filter func(EntryInfo) bool) []EntryInfo {
	now := s.now().UnixMilli()
	var out []EntryInfo
	err := s.dir.Walk(func(rec filecodec.Record, err error) error {
		if err != nil {
			return nil
		}
		info := EntryInfo{
			Key:          rec.Config.Key,
			Tag:          rec.Config.Tag,
			SaveTime:     time.UnixMilli(rec.Config.SaveTime),
			ValidTime:    time.Duration(rec.Config.ValidTime) * time.Millisecond,
			LastModified: time.UnixMilli(rec.Config.LastModified),
			Size:         rec.Size,
			Expired:      rec.Config.Expired(now),
		}
		if filter(info) {
			out = append(out, info)
		}
		return nil
	})
	errutil.LogMsg(s.logger, err, "Failed to list entries")
	return out
}

// ClearDue deletes every expired entry, along with corrupt or incomplete
// ones, and returns how many were deleted.
func (s *Store) ClearDue() int {
	return s.clearDue(nil)
}

// ClearDueProgress is ClearDue reporting each inspected entry to progress.
func (s *Store) ClearDueProgress(progress func(total int)) int {
	return s.clearDue(progress)
}

func (s *Store) clearDue(progress func(total int)) int {
	names, err := s.dir.Names()
	if err != nil {
		errutil.LogMsg(s.logger, err, "Failed to list entries")
		return 0
	}
	removed := 0
	for _, name := range names {
		if progress != nil {
			progress(len(names))
		}
		if s.sweep(name) {
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("Removed due entries", "count", removed)
	}
	return removed
}

func (s *Store) sweep(name string) bool {
	mu := s.lock(name)
	mu.Lock()
	defer mu.Unlock()

	rec, err := s.dir.Load(name)
	switch {
	case errors.Is(err, filecodec.ErrNotFound):
		return false
	case errors.Is(err, filecodec.ErrCorruptConfig), errors.Is(err, filecodec.ErrMissingData):
	case err != nil:
		errutil.LogMsg(s.logger, err, "Failed to inspect entry", "name", name)
		return false
	case !rec.Config.Expired(s.now().UnixMilli()):
		return false
	}

	if err := s.dir.Delete(name); err != nil {
		errutil.LogMsg(s.logger, err, "Failed to remove due entry", "name", name)
		return false
	}
	s.manager.Remove(name)
	return true
}

// lock returns the mutex guarding name. Names are hex digests, so the first
// byte spreads evenly over the stripes.
func (s *Store) lock(name string) *sync.Mutex {
	i, err := strconv.ParseUint(name[:2], 16, 8)
	if err != nil {
		i = 0
	}
	return &s.locks[i]
}

func ttlMillis(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	// Round sub-millisecond TTLs up so they do not become permanent.
	return max(ttl.Milliseconds(), 1)
}

// evictionStore exposes a namespace directory to the eviction manager. The
// last use of an entry is its config timestamp, not the file mtime.
type evictionStore struct {
	*filecodec.Dir
}

func (e evictionStore) Stat(name string) (eviction.FileMetadata, error) {
	rec, err := e.Load(name)
	if err != nil {
		return eviction.FileMetadata{}, err
	}
	return eviction.FileMetadata{
		Name:     name,
		Size:     rec.Size,
		LastUsed: time.UnixMilli(rec.Config.LastModified),
	}, nil
}
