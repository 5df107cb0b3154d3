package filecodec

import (
	"encoding/json"
	"fmt"
)

// Config is the metadata persisted next to each data file.
//
// Timestamps are Unix milliseconds. ValidTime is a duration in milliseconds;
// zero or negative means the entry never expires.
type Config struct {
	Key          string
	Tag          Tag
	SaveTime     int64
	ValidTime    int64
	LastModified int64
}

// wireConfig mirrors Config with pointer fields so that missing fields can be told apart from zero values.
type wireConfig struct {
	Key          *string `json:"key"`
	Type         *int    `json:"type"`
	SaveTime     *int64  `json:"saveTime"`
	ValidTime    *int64  `json:"validTime"`
	LastModified *int64  `json:"lastModified"`
}

func (c Config) MarshalJSON() ([]byte, error) {
	typ := int(c.Tag)
	return json.Marshal(wireConfig{
		Key:          &c.Key,
		Type:         &typ,
		SaveTime:     &c.SaveTime,
		ValidTime:    &c.ValidTime,
		LastModified: &c.LastModified,
	})
}

func (c *Config) UnmarshalJSON(b []byte) error {
	var w wireConfig
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptConfig, err)
	}
	switch {
	case w.Key == nil:
		return fmt.Errorf("%w: missing key", ErrCorruptConfig)
	case w.Type == nil:
		return fmt.Errorf("%w: missing type", ErrCorruptConfig)
	case w.SaveTime == nil:
		return fmt.Errorf("%w: missing saveTime", ErrCorruptConfig)
	case w.ValidTime == nil:
		return fmt.Errorf("%w: missing validTime", ErrCorruptConfig)
	case w.LastModified == nil:
		return fmt.Errorf("%w: missing lastModified", ErrCorruptConfig)
	}
	tag := Tag(*w.Type)
	if !tag.Valid() {
		return fmt.Errorf("%w: unknown type %d", ErrCorruptConfig, *w.Type)
	}
	*c = Config{
		Key:          *w.Key,
		Tag:          tag,
		SaveTime:     *w.SaveTime,
		ValidTime:    *w.ValidTime,
		LastModified: *w.LastModified,
	}
	return nil
}

// Permanent reports whether the entry has no TTL.
func (c Config) Permanent() bool {
	return c.ValidTime <= 0
}

// Expired reports whether the TTL has elapsed at nowMillis.
func (c Config) Expired(nowMillis int64) bool {
	if c.Permanent() {
		return false
	}
	return nowMillis >= c.SaveTime+c.ValidTime
}
