package maxsize

import "github.com/lucasew/diskcache/internal/eviction/policy"

// Policy triggers eviction when the namespace exceeds a fixed size.
type Policy struct {
	MaxBytes int64
}

func (m *Policy) Exceeded(usage policy.Usage) (bool, error) {
	return usage.Bytes > m.MaxBytes, nil
}

func (m *Policy) Name() string { return "max-size" }
