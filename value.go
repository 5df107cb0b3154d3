package diskcache

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"image"

	"github.com/lucasew/diskcache/internal/filecodec"
)

// Value is a cacheable value. The set of implementations is closed: Int,
// Long, Float, Double, Bool, String, Bytes, Image, Object and Entity. The
// variant picks the tag recorded on disk, and the tag alone picks the decoder
// on read.
type Value interface {
	Tag() filecodec.Tag
	encode(c codecs) ([]byte, error)
}

type (
	Int    int32
	Long   int64
	Float  float32
	Double float64
	Bool   bool
	String string
	Bytes  []byte
)

func (Int) Tag() filecodec.Tag    { return filecodec.TagInt }
func (Long) Tag() filecodec.Tag   { return filecodec.TagLong }
func (Float) Tag() filecodec.Tag  { return filecodec.TagFloat }
func (Double) Tag() filecodec.Tag { return filecodec.TagDouble }
func (Bool) Tag() filecodec.Tag   { return filecodec.TagBool }
func (String) Tag() filecodec.Tag { return filecodec.TagString }
func (Bytes) Tag() filecodec.Tag  { return filecodec.TagBytes }
func (Image) Tag() filecodec.Tag  { return filecodec.TagImage }
func (Object) Tag() filecodec.Tag { return filecodec.TagObject }
func (Entity) Tag() filecodec.Tag { return filecodec.TagEntity }

func (v Int) encode(codecs) ([]byte, error)    { return filecodec.EncodeInt(int64(v)), nil }
func (v Long) encode(codecs) ([]byte, error)   { return filecodec.EncodeInt(int64(v)), nil }
func (v Float) encode(codecs) ([]byte, error)  { return filecodec.EncodeFloat(float64(v), 32), nil }
func (v Double) encode(codecs) ([]byte, error) { return filecodec.EncodeFloat(float64(v), 64), nil }
func (v Bool) encode(codecs) ([]byte, error)   { return filecodec.EncodeBool(bool(v)), nil }
func (v String) encode(codecs) ([]byte, error) { return []byte(v), nil }

func (v Bytes) encode(codecs) ([]byte, error) {
	if v == nil {
		return []byte{}, nil
	}
	return v, nil
}

// Image is a picture stored through the configured ImageCodec.
type Image struct {
	image.Image
}

func (v Image) encode(c codecs) ([]byte, error) {
	if c.images == nil {
		return nil, ErrNoCodec
	}
	if v.Image == nil {
		return nil, fmt.Errorf("nil image")
	}
	return c.images.Encode(v.Image)
}

// Object is a Go value stored with encoding/gob.
//
// When writing, V holds the value. A value returned by the store only holds
// the encoded form; use Decode to fill a pointer of the original type.
type Object struct {
	V    any
	data []byte
}

func (v Object) encode(codecs) ([]byte, error) {
	if v.V == nil {
		return nil, fmt.Errorf("nil object")
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v.V); err != nil {
		return nil, fmt.Errorf("failed to encode object: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode fills out, which must be a pointer.
func (v Object) Decode(out any) error {
	return gob.NewDecoder(bytes.NewReader(v.data)).Decode(out)
}

// Entity is a structured value stored as UTF-8 JSON through the configured JSONEngine.
//
// When writing, V holds the value. A value returned by the store only holds
// the encoded form; use Decode to fill a pointer.
type Entity struct {
	V      any
	raw    []byte
	engine JSONEngine
}

func (v Entity) encode(c codecs) ([]byte, error) {
	if c.json == nil {
		return nil, ErrNoCodec
	}
	return c.json.Marshal(v.V)
}

// Raw returns the JSON text of a stored entity.
func (v Entity) Raw() []byte {
	return v.raw
}

// Decode fills out, which must be a pointer.
func (v Entity) Decode(out any) error {
	if v.engine == nil {
		return ErrNoCodec
	}
	return v.engine.Unmarshal(v.raw, out)
}

// decode turns a data file back into a Value according to its tag.
func decode(tag filecodec.Tag, data []byte, c codecs) (Value, error) {
	switch tag {
	case filecodec.TagInt:
		i, err := filecodec.DecodeInt(data, 32)
		return Int(i), err
	case filecodec.TagLong:
		i, err := filecodec.DecodeInt(data, 64)
		return Long(i), err
	case filecodec.TagFloat:
		f, err := filecodec.DecodeFloat(data, 32)
		return Float(f), err
	case filecodec.TagDouble:
		f, err := filecodec.DecodeFloat(data, 64)
		return Double(f), err
	case filecodec.TagBool:
		b, err := filecodec.DecodeBool(data)
		return Bool(b), err
	case filecodec.TagString:
		return String(data), nil
	case filecodec.TagBytes:
		return Bytes(data), nil
	case filecodec.TagImage:
		if c.images == nil {
			return nil, ErrNoCodec
		}
		img, err := c.images.Decode(data)
		if err != nil {
			return nil, err
		}
		return Image{Image: img}, nil
	case filecodec.TagObject:
		return Object{data: data}, nil
	case filecodec.TagEntity:
		if c.json == nil {
			return nil, ErrNoCodec
		}
		return Entity{raw: data, engine: c.json}, nil
	}
	return nil, fmt.Errorf("unknown tag %d", int(tag))
}
