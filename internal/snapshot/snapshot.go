// Package snapshot encodes entity snapshots for publishing and computes
// which keys changed between two encodings.
//
// The head encoding is the full snapshot as a JSON object in key order.
// Each key also has an atomic encoding: strings are published raw, other
// scalars as their JSON literal, and composites as JSON sub-documents.
package snapshot

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/zeebo/xxh3"

	"github.com/Fabulani/shopfloor-simulation/internal/entity"
)

// Encoded is the publishable form of one snapshot.
type Encoded struct {
	// Head is the full snapshot document.
	Head []byte

	// Sum is the xxh3 fingerprint of Head.
	Sum uint64

	keys   []string
	values map[string][]byte
}

// Encode renders s into its head and per-key encodings.
func Encode(s entity.Snapshot) (*Encoded, error) {
	fields := s.Fields()
	enc := &Encoded{
		keys:   make([]string, 0, len(fields)),
		values: make(map[string][]byte, len(fields)),
	}

	var head bytes.Buffer
	head.WriteByte('{')
	for i, f := range fields {
		doc, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("encoding %q: %w", f.Key, err)
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, fmt.Errorf("encoding key %q: %w", f.Key, err)
		}

		if i > 0 {
			head.WriteByte(',')
		}
		head.Write(key)
		head.WriteByte(':')
		head.Write(doc)

		enc.keys = append(enc.keys, f.Key)
		enc.values[f.Key] = atomic(f.Value, doc)
	}
	head.WriteByte('}')

	enc.Head = head.Bytes()
	enc.Sum = xxh3.Hash(enc.Head)
	return enc, nil
}

// atomic returns the per-key payload: raw text for strings, the JSON
// document for everything else.
func atomic(v any, doc []byte) []byte {
	if s, ok := v.(string); ok {
		return []byte(s)
	}
	return doc
}

// Keys returns the encoded keys in snapshot order.
func (e *Encoded) Keys() []string {
	out := make([]string, len(e.keys))
	copy(out, e.keys)
	return out
}

// Value returns the atomic encoding of key.
func (e *Encoded) Value(key string) ([]byte, bool) {
	v, ok := e.values[key]
	return v, ok
}

// Equal reports whether two encodings carry byte-identical heads.
func Equal(prev, next *Encoded) bool {
	if prev == nil || next == nil {
		return prev == next
	}
	return prev.Sum == next.Sum && bytes.Equal(prev.Head, next.Head)
}

// Changed returns, in next's key order, the keys whose atomic encoding is
// new or differs from prev. A nil prev reports every key.
func Changed(prev, next *Encoded) []string {
	if prev == nil {
		return next.Keys()
	}
	var changed []string
	for _, k := range next.keys {
		old, ok := prev.values[k]
		if !ok || !bytes.Equal(old, next.values[k]) {
			changed = append(changed, k)
		}
	}
	return changed
}
