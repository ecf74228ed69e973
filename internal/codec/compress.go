package codec

import (
	"bytes"
	"compress/flate"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// EncodeOptions controls how Encode serializes and (optionally) compresses
// a logical body (spec §4.2).
type EncodeOptions struct {
	// CompressionEnabled mirrors the COMPRESSION_ENABLED knob.
	CompressionEnabled bool
	// Threshold is the minimum serialized size (bytes) before compression
	// is attempted, unless Force is set.
	Threshold int
	// Level is the deflate level (0-9).
	Level int
	// Force always attempts compression regardless of size/enabled, used
	// when a caller explicitly requests it.
	Force bool
}

// Encoded is the result of encoding a logical body: the bytes to persist in
// CacheEntry.payload plus the size bookkeeping spec §3 requires.
type Encoded struct {
	Payload      []byte
	IsCompressed bool
	OriginalSize int
	StoredSize   int
}

// flatePool caches *flate.Writer instances per compression level to avoid
// reallocating the sliding-window buffers on every Set (mirrors the
// acquire/release worker-pool idiom used elsewhere in the reference
// lineage for reusable, expensive-to-construct objects).
var flatePool sync.Map // map[int]*sync.Pool

func poolForLevel(level int) *sync.Pool {
	if p, ok := flatePool.Load(level); ok {
		return p.(*sync.Pool)
	}
	p := &sync.Pool{
		New: func() any {
			w, _ := flate.NewWriter(nil, level)
			return w
		},
	}
	actual, _ := flatePool.LoadOrStore(level, p)
	return actual.(*sync.Pool)
}

// Encode serializes body as canonical JSON and applies the compression
// policy from spec §4.2: compression is only retained if it is strictly
// smaller than the uncompressed serialization (P3).
func Encode(body any, opts EncodeOptions) (Encoded, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return Encoded{}, fmt.Errorf("codec: marshal body: %w", err)
	}

	shouldAttempt := opts.Force || (opts.CompressionEnabled && len(raw) > opts.Threshold)
	if !shouldAttempt {
		return Encoded{Payload: raw, IsCompressed: false, OriginalSize: len(raw), StoredSize: len(raw)}, nil
	}

	compressed, err := deflate(raw, opts.Level)
	if err != nil {
		// CodecError: best-effort, write uncompressed rather than fail the set.
		log.Error().Err(err).Msg("codec: compression failed, storing uncompressed")
		return Encoded{Payload: raw, IsCompressed: false, OriginalSize: len(raw), StoredSize: len(raw)}, nil
	}

	if len(compressed) >= len(raw) {
		// Compression didn't pay for itself; persist uncompressed (spec invariant 1).
		return Encoded{Payload: raw, IsCompressed: false, OriginalSize: len(raw), StoredSize: len(raw)}, nil
	}

	return Encoded{Payload: compressed, IsCompressed: true, OriginalSize: len(raw), StoredSize: len(compressed)}, nil
}

// Decode reverses Encode. On an inflate failure it returns the payload
// bytes unchanged; on a JSON decode failure it returns the (inflated) JSON
// bytes. In both cases it logs and also returns the error, and never panics
// (spec §4.2/§7: CodecError never crashes the engine).
func Decode(payload []byte, isCompressed bool, out any) (raw []byte, decodeErr error) {
	raw = payload
	if isCompressed {
		inflated, err := inflate(payload)
		if err != nil {
			log.Error().Err(err).Msg("codec: inflate failed, surfacing raw bytes")
			return payload, err
		}
		raw = inflated
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			log.Error().Err(err).Msg("codec: json decode failed, surfacing raw bytes")
			return raw, err
		}
	}
	return raw, nil
}

func deflate(raw []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w := poolForLevel(level).Get().(*flate.Writer)
	defer poolForLevel(level).Put(w)
	w.Reset(&buf)

	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("codec: deflate write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("codec: deflate close: %w", err)
	}
	return buf.Bytes(), nil
}

func inflate(compressed []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("codec: inflate read: %w", err)
	}
	return buf.Bytes(), nil
}
