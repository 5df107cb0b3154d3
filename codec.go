package diskcache

import (
	"bytes"
	"encoding/json"
	"image"
	"image/jpeg"
	"image/png"
)

// JSONEngine serializes Entity values.
type JSONEngine interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// ImageCodec serializes Image values.
type ImageCodec interface {
	Encode(img image.Image) ([]byte, error)
	Decode(data []byte) (image.Image, error)
}

// StdJSON is a JSONEngine backed by encoding/json.
type StdJSON struct{}

func (StdJSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (StdJSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// JPEG encodes images lossily with the given quality (1-100, 0 means jpeg.DefaultQuality).
type JPEG struct {
	Quality int
}

func (c JPEG) Encode(img image.Image) ([]byte, error) {
	q := c.Quality
	if q <= 0 {
		q = jpeg.DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (JPEG) Decode(data []byte) (image.Image, error) {
	return jpeg.Decode(bytes.NewReader(data))
}

// PNG encodes images losslessly.
type PNG struct{}

func (PNG) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (PNG) Decode(data []byte) (image.Image, error) {
	return png.Decode(bytes.NewReader(data))
}

type codecs struct {
	json   JSONEngine
	images ImageCodec
}
