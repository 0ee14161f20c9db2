// Package compressor implements the HTTP content codings the gateway speaks:
// br, gzip and deflate, with pooled writers.
package compressor

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

type ContentEncoding int

const (
	ContentEncodingIdentity ContentEncoding = iota
	ContentEncodingGzip
	ContentEncodingDeflate
	ContentEncodingBrotli
)

var (
	ErrUnknownContentEncoding = errors.New("unknown content encoding")
	ErrTooLarge               = errors.New("decoded payload too large")
)

// preference orders codings when the client weights them equally.
var preference = []ContentEncoding{ContentEncodingBrotli, ContentEncodingGzip, ContentEncodingDeflate}

// String returns the HTTP token for the coding, empty for identity.
func (e ContentEncoding) String() string {
	switch e {
	case ContentEncodingGzip:
		return "gzip"
	case ContentEncodingDeflate:
		return "deflate"
	case ContentEncodingBrotli:
		return "br"
	default:
		return ""
	}
}

// Parse maps a Content-Encoding header value to a ContentEncoding.
func Parse(header string) (ContentEncoding, error) {
	switch strings.ToLower(strings.TrimSpace(header)) {
	case "", "identity":
		return ContentEncodingIdentity, nil
	case "gzip", "x-gzip":
		return ContentEncodingGzip, nil
	case "deflate":
		return ContentEncodingDeflate, nil
	case "br":
		return ContentEncodingBrotli, nil
	default:
		return ContentEncodingIdentity, ErrUnknownContentEncoding
	}
}

// Negotiate picks the coding to answer an Accept-Encoding header with.
// Codings with q=0 are refused; "*" stands for every supported coding.
func Negotiate(acceptEncoding string) ContentEncoding {
	weights := map[ContentEncoding]float64{}
	wildcard := -1.0

	for _, part := range strings.Split(acceptEncoding, ",") {
		token, q := parseWeighted(part)
		if token == "" {
			continue
		}
		if token == "*" {
			wildcard = q
			continue
		}
		enc, err := Parse(token)
		if err != nil || enc == ContentEncodingIdentity {
			continue
		}
		weights[enc] = q
	}

	if wildcard >= 0 {
		for _, enc := range preference {
			if _, ok := weights[enc]; !ok {
				weights[enc] = wildcard
			}
		}
	}

	candidates := make([]ContentEncoding, 0, len(preference))
	for _, enc := range preference {
		if weights[enc] > 0 {
			candidates = append(candidates, enc)
		}
	}
	if len(candidates) == 0 {
		return ContentEncodingIdentity
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return weights[candidates[i]] > weights[candidates[j]]
	})
	return candidates[0]
}

func parseWeighted(part string) (string, float64) {
	fields := strings.Split(part, ";")
	token := strings.ToLower(strings.TrimSpace(fields[0]))
	q := 1.0
	for _, param := range fields[1:] {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || strings.TrimSpace(k) != "q" {
			continue
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			q = f
		}
	}
	return token, q
}

// Codec compresses and decompresses payloads, reusing writers between calls.
type Codec struct {
	byteReaderPool   sync.Pool
	gzipWriterPool   sync.Pool
	zlibWriterPool   sync.Pool
	brotliWriterPool sync.Pool
}

func NewCodec() *Codec {
	return &Codec{
		byteReaderPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewReader(nil)
			},
		},
		gzipWriterPool: sync.Pool{
			New: func() interface{} {
				return gzip.NewWriter(nil)
			},
		},
		zlibWriterPool: sync.Pool{
			New: func() interface{} {
				return zlib.NewWriter(nil)
			},
		},
		brotliWriterPool: sync.Pool{
			New: func() interface{} {
				return brotli.NewWriter(nil)
			},
		},
	}
}

type resetWriter interface {
	io.WriteCloser
	Reset(w io.Writer)
}

// Compress encodes data with tp. The returned slice is owned by the caller.
func (c *Codec) Compress(tp ContentEncoding, data []byte) ([]byte, error) {
	if data == nil {
		return nil, nil
	}

	var pool *sync.Pool
	switch tp {
	case ContentEncodingIdentity:
		return data, nil
	case ContentEncodingGzip:
		pool = &c.gzipWriterPool
	case ContentEncodingDeflate:
		pool = &c.zlibWriterPool
	case ContentEncodingBrotli:
		pool = &c.brotliWriterPool
	default:
		return nil, ErrUnknownContentEncoding
	}

	w := pool.Get().(resetWriter)
	defer pool.Put(w)

	var buf bytes.Buffer
	w.Reset(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress decodes data that was encoded with tp.
func (c *Codec) Decompress(tp ContentEncoding, data []byte) ([]byte, error) {
	return c.DecompressLimit(tp, data, 0)
}

// DecompressLimit decodes data like Decompress but fails with ErrTooLarge once
// the decoded payload exceeds limit bytes. A limit <= 0 means no limit.
func (c *Codec) DecompressLimit(tp ContentEncoding, data []byte, limit int64) ([]byte, error) {
	if data == nil {
		return nil, nil
	}

	byteReader := c.byteReaderPool.Get().(*bytes.Reader)
	defer c.byteReaderPool.Put(byteReader)
	byteReader.Reset(data)

	switch tp {
	case ContentEncodingIdentity:
		if limit > 0 && int64(len(data)) > limit {
			return nil, ErrTooLarge
		}
		return data, nil
	case ContentEncodingGzip:
		reader, err := gzip.NewReader(byteReader)
		if err != nil {
			return nil, err
		}
		defer reader.Close()
		return readAll(reader, limit)
	case ContentEncodingDeflate:
		reader, err := zlib.NewReader(byteReader)
		if err != nil {
			return nil, err
		}
		defer reader.Close()
		return readAll(reader, limit)
	case ContentEncodingBrotli:
		return readAll(brotli.NewReader(byteReader), limit)
	default:
		return nil, ErrUnknownContentEncoding
	}
}

func readAll(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	return data, nil
}
