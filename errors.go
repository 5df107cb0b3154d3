package diskcache

import (
	"errors"

	"github.com/lucasew/diskcache/internal/filecodec"
)

var (
	// ErrIO is returned when reading or writing an entry fails.
	ErrIO = errors.New("cache io failure")

	// ErrCorrupt is returned when an entry's config or payload cannot be decoded.
	ErrCorrupt = filecodec.ErrCorruptConfig

	// ErrNotFound is returned when a key has no entry.
	ErrNotFound = filecodec.ErrNotFound

	// ErrExpired is returned when an entry's TTL has elapsed. It is a normal miss.
	ErrExpired = errors.New("entry expired")

	// ErrKeyCollision is returned when another key already owns the file a key maps to.
	ErrKeyCollision = errors.New("key collision")

	// ErrEmptyKey is returned for operations on the empty key.
	ErrEmptyKey = errors.New("empty key")

	// ErrNoCodec is returned when an image or entity is used without the matching codec configured.
	ErrNoCodec = errors.New("no codec configured")

	// ErrTypeMismatch is returned when the stored tag differs from the requested one.
	ErrTypeMismatch = errors.New("type mismatch")
)
