// Package compress encodes request bodies for the evaluation service.
//
// Reports of large dependency trees repeat the same keys and license names
// many times, so they shrink well. ZSTD is the default; gzip is available
// for servers or proxies that do not understand zstd.
package compress

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/exploopio/depaudit/pkg/errors"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	AlgorithmZSTD Algorithm = "zstd"
	AlgorithmGzip Algorithm = "gzip"
	AlgorithmNone Algorithm = "none"
)

// ParseAlgorithm maps a configuration value to an Algorithm. The empty
// string and "off" mean no compression.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "off", "false":
		return AlgorithmNone, nil
	case "zstd":
		return AlgorithmZSTD, nil
	case "gzip":
		return AlgorithmGzip, nil
	default:
		return "", errors.E(errors.KindInvalidInput, "compress.ParseAlgorithm", fmt.Sprintf("unknown compression %q", s))
	}
}

// Level represents compression level.
type Level int

const (
	LevelFastest Level = 1
	LevelDefault Level = 3
	LevelBetter  Level = 6
	LevelBest    Level = 9
)

// DefaultMinSize is the body size below which compression is skipped.
const DefaultMinSize = 1024

// Compressor compresses request bodies.
type Compressor struct {
	algorithm Algorithm
	level     Level
	minSize   int
}

// NewCompressor creates a compressor. A level of 0 means LevelDefault.
func NewCompressor(algorithm Algorithm, level Level) *Compressor {
	if level == 0 {
		level = LevelDefault
	}
	return &Compressor{algorithm: algorithm, level: level, minSize: DefaultMinSize}
}

// WithMinSize sets the size below which Encode leaves bodies as they are.
func (c *Compressor) WithMinSize(n int) *Compressor {
	c.minSize = n
	return c
}

// Algorithm returns the compression algorithm.
func (c *Compressor) Algorithm() Algorithm {
	return c.algorithm
}

// ContentEncoding returns the HTTP Content-Encoding header value, "" for a
// nil Compressor.
func (c *Compressor) ContentEncoding() string {
	if c == nil {
		return ""
	}
	switch c.algorithm {
	case AlgorithmZSTD:
		return "zstd"
	case AlgorithmGzip:
		return "gzip"
	default:
		return ""
	}
}

// Stats describes one compression.
type Stats struct {
	OriginalSize   int
	CompressedSize int
	Savings        float64 // percent
}

// Encode compresses body when it is large enough and compression actually
// makes it smaller. It returns the body to send, the Content-Encoding to
// declare ("" for none) and the sizes.
func (c *Compressor) Encode(body []byte) ([]byte, string, Stats, error) {
	stats := Stats{OriginalSize: len(body), CompressedSize: len(body)}
	if c == nil || c.algorithm == AlgorithmNone || len(body) < c.minSize {
		return body, "", stats, nil
	}

	out, err := c.Compress(body)
	if err != nil {
		return nil, "", stats, err
	}
	if len(out) >= len(body) {
		return body, "", stats, nil
	}
	stats.CompressedSize = len(out)
	stats.Savings = (1 - float64(len(out))/float64(len(body))) * 100
	return out, c.ContentEncoding(), stats, nil
}

// Compress compresses data unconditionally.
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	switch c.algorithm {
	case AlgorithmZSTD:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(int(c.level))))
		if err != nil {
			return nil, errors.E(errors.KindInternal, "compress.Compress", err)
		}
		defer enc.Close()
		return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil

	case AlgorithmGzip:
		var buf bytes.Buffer
		level := gzip.DefaultCompression
		if c.level <= 3 {
			level = gzip.BestSpeed
		} else if c.level >= 7 {
			level = gzip.BestCompression
		}
		w, err := gzip.NewWriterLevel(&buf, level)
		if err != nil {
			return nil, errors.E(errors.KindInternal, "compress.Compress", err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, errors.E(errors.KindInternal, "compress.Compress", err)
		}
		if err := w.Close(); err != nil {
			return nil, errors.E(errors.KindInternal, "compress.Compress", err)
		}
		return buf.Bytes(), nil

	case AlgorithmNone:
		return data, nil

	default:
		return nil, errors.E(errors.KindInvalidInput, "compress.Compress", "unsupported compression algorithm "+string(c.algorithm))
	}
}

// Decode reverses Encode for the given Content-Encoding. An empty encoding
// returns data unchanged.
func Decode(encoding string, data []byte) ([]byte, error) {
	switch encoding {
	case "":
		return data, nil
	case "zstd":
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, errors.E(errors.KindInternal, "compress.Decode", err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, errors.E(errors.KindInvalidInput, "compress.Decode", err)
		}
		return out, nil
	case "gzip":
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errors.E(errors.KindInvalidInput, "compress.Decode", err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, errors.E(errors.KindInvalidInput, "compress.Decode", err)
		}
		return out, nil
	default:
		return nil, errors.E(errors.KindInvalidInput, "compress.Decode", "unsupported content encoding "+encoding)
	}
}
