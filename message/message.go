// Package message defines the cache-update notification types exchanged with
// the broker: the incoming CacheMessage payload and the outgoing Envelope.
package message

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// Operation enumerates the cache-update operations a CacheMessage may carry.
type Operation string

const (
	// AddReplicas announces replicas newly available at a volatile endpoint.
	AddReplicas Operation = "add_replicas"
	// DeleteReplicas announces replicas removed from a volatile endpoint.
	DeleteReplicas Operation = "delete_replicas"
)

// FileRef identifies a file within the catalog by scope and name. For
// add_replicas operations it additionally carries the size and Adler32
// checksum, which must match the catalog's record exactly.
type FileRef struct {
	Scope   string `json:"scope"`
	Name    string `json:"name"`
	Bytes   int64  `json:"bytes,omitempty"`
	Adler32 string `json:"adler32,omitempty"`
}

// Key returns the scope:name identity of the FileRef.
func (f FileRef) Key() string { return f.Scope + ":" + f.Name }

// CacheMessage is the external input: a notification that replicas were
// added to or removed from the volatile storage endpoint |RSE|.
type CacheMessage struct {
	Operation Operation `json:"operation"`
	RSE       string    `json:"rse"`
	// Lifetime of added replicas in seconds. Relevant only for add_replicas.
	Lifetime *int64    `json:"lifetime,omitempty"`
	Files    []FileRef `json:"files"`
}

// IsAdd returns whether the message announces replica additions.
func (m *CacheMessage) IsAdd() bool { return m.Operation == AddReplicas }

// Validate performs a shape re-check of a decoded CacheMessage. It mirrors
// structural schema validation and exists so callers holding a decoded
// message need not round-trip through JSON to assert basic sanity.
func (m *CacheMessage) Validate() error {
	switch m.Operation {
	case AddReplicas, DeleteReplicas:
		// Pass.
	default:
		return errors.Errorf("unexpected operation %q", m.Operation)
	}
	if m.RSE == "" {
		return errors.New("missing rse")
	}
	for _, f := range m.Files {
		if f.Scope == "" || f.Name == "" {
			return errors.Errorf("file with missing scope or name (%q)", f.Key())
		}
		if m.IsAdd() && f.Bytes < 0 {
			return errors.Errorf("file %s has negative bytes", f.Key())
		}
	}
	return nil
}

// Envelope is the value actually transmitted to the broker: the validated
// payload wrapped with a correlation identifier. Payload is retained as raw
// bytes so the published body is byte-for-byte the validated input.
type Envelope struct {
	ID      int             `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalJSON splices the payload bytes into the wire form unmodified.
// Encoding Payload through the generic encoder would compact and HTML-escape
// it, breaking the byte-for-byte embedding of the validated input.
func (e Envelope) MarshalJSON() ([]byte, error) {
	var payload = []byte(e.Payload)
	if len(payload) == 0 {
		payload = []byte("null")
	}
	var b = fmt.Appendf(nil, `{"id":%d,"payload":`, e.ID)
	b = append(b, payload...)
	return append(b, '}'), nil
}
