package policy

// Usage is the projected state of a namespace.
type Usage struct {
	Bytes int64
	Count int64
}

// Policy defines a limit the eviction manager enforces.
type Policy interface {
	// Exceeded reports whether usage is over the limit, meaning one more
	// entry has to be evicted.
	Exceeded(usage Usage) (bool, error)

	// Name identifies the policy in logs.
	Name() string
}
