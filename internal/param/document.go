// Package param defines the opaque key/value documents handed to work
// functions and returned as their results.
//
// A Document is a JSON object addressed by gjson paths ("camera.gain",
// "filters.0"). Mutation is copy-on-write: Set and Delete return a new
// Document and never alias the receiver's bytes, so a Document can be
// shared across goroutines without synchronization.
package param

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Document is an immutable JSON object. The zero value is an empty document.
type Document struct {
	raw []byte
}

// New returns an empty document.
func New() Document {
	return Document{}
}

// FromMap builds a document from a plain map.
func FromMap(m map[string]any) (Document, error) {
	if len(m) == 0 {
		return Document{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return Document{}, fmt.Errorf("param: encoding map: %w", err)
	}
	return Document{raw: b}, nil
}

// Parse validates raw JSON and wraps it as a document.
func Parse(b []byte) (Document, error) {
	if len(b) == 0 {
		return Document{}, nil
	}
	if !gjson.ValidBytes(b) {
		return Document{}, fmt.Errorf("param: invalid JSON")
	}
	raw := make([]byte, len(b))
	copy(raw, b)
	return Document{raw: raw}, nil
}

// Get resolves a gjson path. A missing path yields a non-existent Result.
func (d Document) Get(path string) gjson.Result {
	return gjson.GetBytes(d.bytes(), path)
}

// Set returns a copy of the document with path set to value.
func (d Document) Set(path string, value any) (Document, error) {
	b, err := sjson.SetBytes(d.bytes(), path, value)
	if err != nil {
		return Document{}, fmt.Errorf("param: setting %q: %w", path, err)
	}
	return Document{raw: b}, nil
}

// Delete returns a copy of the document with path removed.
func (d Document) Delete(path string) (Document, error) {
	b, err := sjson.DeleteBytes(d.bytes(), path)
	if err != nil {
		return Document{}, fmt.Errorf("param: deleting %q: %w", path, err)
	}
	return Document{raw: b}, nil
}

// Map decodes the document into a plain map.
func (d Document) Map() map[string]any {
	out, _ := gjson.ParseBytes(d.bytes()).Value().(map[string]any)
	if out == nil {
		out = map[string]any{}
	}
	return out
}

// Bytes returns a copy of the raw JSON.
func (d Document) Bytes() []byte {
	b := d.bytes()
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (d Document) String() string {
	return string(d.bytes())
}

// Len returns the number of top-level keys.
func (d Document) Len() int {
	n := 0
	gjson.ParseBytes(d.bytes()).ForEach(func(_, _ gjson.Result) bool {
		n++
		return true
	})
	return n
}

// IsZero reports whether the document has no keys.
func (d Document) IsZero() bool {
	return d.Len() == 0
}

func (d Document) bytes() []byte {
	if len(d.raw) == 0 {
		return []byte(`{}`)
	}
	return d.raw
}

// MarshalJSON emits the raw document.
func (d Document) MarshalJSON() ([]byte, error) {
	return d.bytes(), nil
}

// UnmarshalJSON validates and stores the raw document.
func (d *Document) UnmarshalJSON(b []byte) error {
	parsed, err := Parse(b)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
