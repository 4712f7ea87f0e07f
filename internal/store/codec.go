package store

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"unicode/utf8"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// Codec turns values into bytes and back. The store assumes nothing about
// the encoding beyond its length.
type Codec[V any] interface {
	Encode(v V) ([]byte, error)
	Decode(data []byte) (V, error)
}

// StringCodec stores strings as their raw UTF-8 bytes.
type StringCodec struct{}

func (StringCodec) Encode(v string) ([]byte, error) {
	return []byte(v), nil
}

func (StringCodec) Decode(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errors.New("value is not valid UTF-8")
	}
	return string(data), nil
}

// BytesCodec stores byte slices as is.
type BytesCodec struct{}

func (BytesCodec) Encode(v []byte) ([]byte, error) {
	return v, nil
}

func (BytesCodec) Decode(data []byte) ([]byte, error) {
	return data, nil
}

// JSONCodec encodes values with encoding/json.
type JSONCodec[V any] struct{}

func (JSONCodec[V]) Encode(v V) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec[V]) Decode(data []byte) (V, error) {
	var v V
	err := json.Unmarshal(data, &v)
	return v, err
}

// GobCodec encodes values with encoding/gob. Each value is a self-contained
// gob stream, so it carries its own type description.
type GobCodec[V any] struct{}

func (GobCodec[V]) Encode(v V) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (GobCodec[V]) Decode(data []byte) (V, error) {
	var v V
	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&v)
	return v, err
}

// ZstdCodec compresses the output of an inner codec with zstd.
type ZstdCodec[V any] struct {
	inner   Codec[V]
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewZstdCodec wraps inner. level is one of the zstd encoder levels; zero
// selects zstd.SpeedDefault.
func NewZstdCodec[V any](inner Codec[V], level zstd.EncoderLevel) (*ZstdCodec[V], error) {
	if level == 0 {
		level = zstd.SpeedDefault
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, err
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		encoder.Close()
		return nil, err
	}
	return &ZstdCodec[V]{inner: inner, encoder: encoder, decoder: decoder}, nil
}

func (c *ZstdCodec[V]) Encode(v V) ([]byte, error) {
	raw, err := c.inner.Encode(v)
	if err != nil {
		return nil, err
	}
	return c.encoder.EncodeAll(raw, nil), nil
}

func (c *ZstdCodec[V]) Decode(data []byte) (V, error) {
	raw, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		var zero V
		return zero, errors.Wrap(err, "zstd decode")
	}
	return c.inner.Decode(raw)
}

// Close releases the encoder and decoder.
func (c *ZstdCodec[V]) Close() {
	c.encoder.Close()
	c.decoder.Close()
}

// SnappyCodec compresses the output of an inner codec with snappy block
// encoding.
type SnappyCodec[V any] struct {
	Inner Codec[V]
}

func (c SnappyCodec[V]) Encode(v V) ([]byte, error) {
	raw, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, raw), nil
}

func (c SnappyCodec[V]) Decode(data []byte) (V, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		var zero V
		return zero, errors.Wrap(err, "snappy decode")
	}
	return c.Inner.Decode(raw)
}
