package compressor

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	codec := NewCodec()
	data := bytes.Repeat([]byte(`{"predictions":[542123.45,310000.5]}`), 64)

	for _, enc := range []ContentEncoding{ContentEncodingGzip, ContentEncodingDeflate, ContentEncodingBrotli} {
		t.Run(enc.String(), func(t *testing.T) {
			compressed, err := codec.Compress(enc, data)
			require.NoError(t, err)
			assert.Less(t, len(compressed), len(data))

			decompressed, err := codec.Decompress(enc, compressed)
			require.NoError(t, err)
			assert.Equal(t, data, decompressed)
		})
	}
}

func TestCodecReusesWriters(t *testing.T) {
	codec := NewCodec()

	first, err := codec.Compress(ContentEncodingGzip, []byte("first payload"))
	require.NoError(t, err)
	second, err := codec.Compress(ContentEncodingGzip, []byte("second payload"))
	require.NoError(t, err)

	out, err := codec.Decompress(ContentEncodingGzip, first)
	require.NoError(t, err)
	assert.Equal(t, "first payload", string(out))

	out, err = codec.Decompress(ContentEncodingGzip, second)
	require.NoError(t, err)
	assert.Equal(t, "second payload", string(out))
}

func TestCodecIdentityAndNil(t *testing.T) {
	codec := NewCodec()

	out, err := codec.Compress(ContentEncodingIdentity, []byte("plain"))
	assert.NoError(t, err)
	assert.Equal(t, "plain", string(out))

	out, err = codec.Compress(ContentEncodingGzip, nil)
	assert.NoError(t, err)
	assert.Nil(t, out)

	_, err = codec.Compress(ContentEncoding(42), []byte("x"))
	assert.ErrorIs(t, err, ErrUnknownContentEncoding)

	_, err = codec.Decompress(ContentEncodingGzip, []byte("not gzip"))
	assert.Error(t, err)
}

func TestDecompressLimit(t *testing.T) {
	codec := NewCodec()
	payload := []byte(strings.Repeat("a", 4096))

	for _, enc := range []ContentEncoding{ContentEncodingGzip, ContentEncodingDeflate, ContentEncodingBrotli} {
		t.Run(enc.String(), func(t *testing.T) {
			compressed, err := codec.Compress(enc, payload)
			require.NoError(t, err)
			require.Less(t, len(compressed), 1024)

			_, err = codec.DecompressLimit(enc, compressed, 1024)
			assert.ErrorIs(t, err, ErrTooLarge)

			out, err := codec.DecompressLimit(enc, compressed, int64(len(payload)))
			require.NoError(t, err)
			assert.Equal(t, payload, out)
		})
	}

	_, err := codec.DecompressLimit(ContentEncodingIdentity, payload, 10)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestParse(t *testing.T) {
	tests := map[string]ContentEncoding{
		"":         ContentEncodingIdentity,
		"identity": ContentEncodingIdentity,
		"gzip":     ContentEncodingGzip,
		" GZIP ":   ContentEncodingGzip,
		"x-gzip":   ContentEncodingGzip,
		"deflate":  ContentEncodingDeflate,
		"br":       ContentEncodingBrotli,
	}
	for header, want := range tests {
		got, err := Parse(header)
		assert.NoError(t, err, header)
		assert.Equal(t, want, got, header)
	}

	_, err := Parse("zstd")
	assert.ErrorIs(t, err, ErrUnknownContentEncoding)
}

func TestNegotiate(t *testing.T) {
	tests := []struct {
		accept string
		want   ContentEncoding
	}{
		{"", ContentEncodingIdentity},
		{"identity", ContentEncodingIdentity},
		{"gzip", ContentEncodingGzip},
		{"gzip, deflate, br", ContentEncodingBrotli},
		{"gzip;q=1.0, br;q=0.5", ContentEncodingGzip},
		{"br;q=0, gzip;q=0.2", ContentEncodingGzip},
		{"*", ContentEncodingBrotli},
		{"*;q=0.5, deflate", ContentEncodingDeflate},
		{"br;q=0, *", ContentEncodingGzip},
		{"zstd", ContentEncodingIdentity},
		{"*;q=0", ContentEncodingIdentity},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Negotiate(tt.accept), tt.accept)
	}
}
