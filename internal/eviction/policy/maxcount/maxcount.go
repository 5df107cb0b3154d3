package maxcount

import "github.com/lucasew/diskcache/internal/eviction/policy"

// Policy triggers eviction when the namespace holds more than MaxCount entries.
type Policy struct {
	MaxCount int64
}

func (m *Policy) Exceeded(usage policy.Usage) (bool, error) {
	return usage.Count > m.MaxCount, nil
}

func (m *Policy) Name() string { return "max-count" }
