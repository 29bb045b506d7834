package entity

import (
	"bytes"

	"github.com/goccy/go-json"
)

// Field is one key/value pair of a Snapshot.
type Field struct {
	Key   string
	Value any
}

// Snapshot is an ordered key/value map. Keys keep their insertion order.
//
// Values are scalars (string, bool, numbers), nil, slices, nested
// Snapshots, or anything goccy/go-json can encode.
type Snapshot struct {
	fields []Field
}

// Set stores value under key. Setting an existing key keeps its position.
func (s *Snapshot) Set(key string, value any) {
	for i := range s.fields {
		if s.fields[i].Key == key {
			s.fields[i].Value = value
			return
		}
	}
	s.fields = append(s.fields, Field{Key: key, Value: value})
}

// Get returns the value stored under key.
func (s Snapshot) Get(key string) (any, bool) {
	for _, f := range s.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Keys returns the keys in order.
func (s Snapshot) Keys() []string {
	keys := make([]string, len(s.fields))
	for i, f := range s.fields {
		keys[i] = f.Key
	}
	return keys
}

// Fields returns a copy of the key/value pairs in order.
func (s Snapshot) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Len returns the number of keys.
func (s Snapshot) Len() int {
	return len(s.fields)
}

// MarshalJSON encodes the snapshot as a JSON object in key order.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range s.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
