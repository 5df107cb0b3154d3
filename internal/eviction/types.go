package eviction

import "time"

// FileMetadata describes an entry found on disk by the startup scan.
type FileMetadata struct {
	Name     string
	Size     int64
	LastUsed time.Time
}

// Victim is a tracked entry as seen by a strategy.
type Victim struct {
	Name string
	Size int64
	At   time.Time
}

// Store is the storage the manager tracks and evicts from.
type Store interface {
	// Names lists every entry currently on disk.
	Names() ([]string, error)

	// Stat returns the size and last use of an entry.
	Stat(name string) (FileMetadata, error)

	// Exists reports whether the entry is still present.
	Exists(name string) bool

	// Delete removes the entry from disk. Deleting a missing entry is not an error.
	Delete(name string) error
}

// Strategy orders tracked entries for eviction. Implementations must be safe
// for concurrent use.
type Strategy interface {
	// OnAdd is called when an entry is stored at time at.
	// It returns the change in total size managed by the strategy (e.g., if name is new, returns size; if updated, returns diff).
	OnAdd(name string, size int64, at time.Time) int64

	// OnAccess is called when an entry is read.
	OnAccess(name string, at time.Time)

	// Victim returns the entry that should be evicted next without removing it.
	Victim() (Victim, bool)

	// Lookup returns the tracked state of name.
	Lookup(name string) (Victim, bool)

	// Remove stops tracking name and returns its size.
	Remove(name string) (int64, bool)

	// Reset drops every tracked entry.
	Reset()

	// Len returns the number of tracked entries.
	Len() int
}
