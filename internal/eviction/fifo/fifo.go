// Package fifo evicts entries in the order they were stored, ignoring reads.
package fifo

import (
	"time"

	"github.com/lucasew/diskcache/internal/eviction"
	"github.com/lucasew/diskcache/internal/eviction/lru"
)

type FIFO struct {
	*lru.LRU
}

func init() {
	eviction.Register("fifo", func() eviction.Strategy {
		return New()
	})
}

func New() *FIFO {
	return &FIFO{LRU: lru.New()}
}

// OnAccess is a no-op: the store time alone decides the eviction order.
func (f *FIFO) OnAccess(string, time.Time) {}
