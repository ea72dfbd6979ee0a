package serialization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializer_Roundtrip(t *testing.T) {
	payload := map[string][]float64{
		"e_feed":     {30, 69.5, 51.2, 18446},
		"e_effluent": {0.1, 0.2, 0.3},
	}

	configs := []struct {
		name   string
		config Config
	}{
		{name: "msgpack none", config: Config{Codec: MsgpackCodec{}, Compression: CompressionNone}},
		{name: "msgpack gzip", config: Config{Codec: MsgpackCodec{}, Compression: CompressionGzip}},
		{name: "msgpack zstd", config: Config{Codec: MsgpackCodec{}, Compression: CompressionZstd}},
		{name: "json zstd", config: Config{Codec: JSONCodec{}, Compression: CompressionZstd}},
	}

	for _, tt := range configs {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSerializer(tt.config)
			data, err := s.Serialize(payload)
			require.NoError(t, err)
			require.NotEmpty(t, data)

			restored := make(map[string][]float64)
			require.NoError(t, s.Deserialize(data, &restored))
			assert.Equal(t, payload, restored)
		})
	}
}

func TestSerializer_Defaults(t *testing.T) {
	s := NewSerializer(Config{})
	assert.Equal(t, "msgpack", s.config.Codec.Name())
	assert.Equal(t, CompressionNone, s.config.Compression)

	d := DefaultSerializer()
	assert.Equal(t, CompressionZstd, d.config.Compression)
}

func TestSerializer_UnknownCompression(t *testing.T) {
	s := NewSerializer(Config{Compression: CompressionType("lz77")})
	_, err := s.Serialize(map[string]int{"a": 1})
	assert.Error(t, err)
	assert.Error(t, s.Deserialize([]byte{1, 2, 3}, &struct{}{}))
}

func TestSerializer_CorruptData(t *testing.T) {
	s := DefaultSerializer()
	var out map[string][]float64
	assert.Error(t, s.Deserialize([]byte("not zstd at all"), &out))
}
