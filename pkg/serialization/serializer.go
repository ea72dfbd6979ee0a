// Package serialization provides the codec and compression pipeline used to
// persist FlowSim checkpoints. A Codec turns values into bytes; a Serializer
// wraps a codec with optional compression.
package serialization

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec converts values to and from bytes.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Name() string
}

// JSONCodec encodes values as JSON. Handy for debugging persisted state.
type JSONCodec struct{}

func (JSONCodec) Encode(v any) ([]byte, error)    { return json.Marshal(v) }
func (JSONCodec) Decode(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSONCodec) Name() string                    { return "json" }

// MsgpackCodec encodes values as MessagePack, the default for checkpoints:
// compact and fast for the large float-vector maps a checkpoint carries.
type MsgpackCodec struct{}

func (MsgpackCodec) Encode(v any) ([]byte, error)    { return msgpack.Marshal(v) }
func (MsgpackCodec) Decode(data []byte, v any) error { return msgpack.Unmarshal(data, v) }
func (MsgpackCodec) Name() string                    { return "msgpack" }

// CompressionType selects the compression applied after encoding.
type CompressionType string

const (
	CompressionNone CompressionType = "none"
	CompressionGzip CompressionType = "gzip"
	CompressionZstd CompressionType = "zstd"
)

// Config holds serializer settings.
type Config struct {
	Codec       Codec
	Compression CompressionType
}

// Serializer runs the encode+compress pipeline and its inverse.
type Serializer struct {
	config Config
}

// NewSerializer creates a serializer; a nil codec defaults to msgpack and an
// empty compression to none.
func NewSerializer(config Config) *Serializer {
	if config.Codec == nil {
		config.Codec = MsgpackCodec{}
	}
	if config.Compression == "" {
		config.Compression = CompressionNone
	}
	return &Serializer{config: config}
}

// DefaultSerializer returns the serializer used by the checkpoint savers:
// msgpack with zstd compression.
func DefaultSerializer() *Serializer {
	return NewSerializer(Config{Codec: MsgpackCodec{}, Compression: CompressionZstd})
}

// Serialize encodes and compresses a value.
func (s *Serializer) Serialize(v any) ([]byte, error) {
	data, err := s.config.Codec.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("%s encode: %w", s.config.Codec.Name(), err)
	}
	return s.compress(data)
}

// Deserialize decompresses and decodes into v.
func (s *Serializer) Deserialize(data []byte, v any) error {
	raw, err := s.decompress(data)
	if err != nil {
		return err
	}
	if err := s.config.Codec.Decode(raw, v); err != nil {
		return fmt.Errorf("%s decode: %w", s.config.Codec.Name(), err)
	}
	return nil
}

func (s *Serializer) compress(data []byte) ([]byte, error) {
	switch s.config.Compression {
	case CompressionNone:
		return data, nil
	case CompressionGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("gzip write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("gzip close: %w", err)
		}
		return buf.Bytes(), nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("unknown compression type %q", s.config.Compression)
	}
}

func (s *Serializer) decompress(data []byte) ([]byte, error) {
	switch s.config.Compression {
	case CompressionNone:
		return data, nil
	case CompressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)
	default:
		return nil, fmt.Errorf("unknown compression type %q", s.config.Compression)
	}
}
