package filecodec

import "fmt"

// Tag identifies the payload encoding of an entry. It is persisted as an int
// in the config file, so the values must never be renumbered.
type Tag int

const (
	TagInt Tag = iota
	TagLong
	TagFloat
	TagDouble
	TagBool
	TagString
	TagBytes
	TagImage
	TagObject
	TagEntity
)

var tagNames = [...]string{
	TagInt:    "INT",
	TagLong:   "LONG",
	TagFloat:  "FLOAT",
	TagDouble: "DOUBLE",
	TagBool:   "BOOLEAN",
	TagString: "STRING",
	TagBytes:  "BYTES",
	TagImage:  "IMAGE",
	TagObject: "SERIALIZED_OBJECT",
	TagEntity: "ENTITY",
}

// Valid reports whether t is a known tag.
func (t Tag) Valid() bool {
	return t >= TagInt && t <= TagEntity
}

func (t Tag) String() string {
	if !t.Valid() {
		return fmt.Sprintf("Tag(%d)", int(t))
	}
	return tagNames[t]
}

// ParseTag resolves a tag from its name, case-sensitive.
func ParseTag(s string) (Tag, error) {
	for i, name := range tagNames {
		if name == s {
			return Tag(i), nil
		}
	}
	return 0, fmt.Errorf("unknown tag: %s", s)
}
