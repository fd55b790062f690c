// Package schema performs structural validation of raw cache-update payloads
// against the JSON Schemas understood by the tool. Validation here is purely
// structural (required fields, types, enum membership); semantic checks
// against the catalog live elsewhere.
package schema

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// Schema names accepted by Validate.
const (
	// Operation is the outer envelope schema, checked first for every
	// payload: it requires a recognized operation and an rse.
	Operation = "operation"
	// AddReplicas requires the full file shape: scope, name, bytes, adler32.
	AddReplicas = "add_replicas"
	// DeleteReplicas requires only the file identity: scope and name.
	DeleteReplicas = "delete_replicas"
)

const operationSchema = `{
	"type": "object",
	"properties": {
		"operation": {"enum": ["add_replicas", "delete_replicas"]},
		"rse": {"type": "string"}
	},
	"required": ["operation", "rse"]
}`

const addReplicasSchema = `{
	"type": "object",
	"properties": {
		"rse": {"type": "string"},
		"lifetime": {"type": "integer"},
		"files": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"scope": {"type": "string"},
					"name": {"type": "string"},
					"bytes": {"type": "integer", "minimum": 0},
					"adler32": {"type": "string"}
				},
				"required": ["scope", "name", "bytes", "adler32"]
			}
		}
	},
	"required": ["rse", "files"]
}`

const deleteReplicasSchema = `{
	"type": "object",
	"properties": {
		"rse": {"type": "string"},
		"files": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"scope": {"type": "string"},
					"name": {"type": "string"}
				},
				"required": ["scope", "name"]
			}
		}
	},
	"required": ["rse", "files"]
}`

// compiled holds each schema, compiled once at package load. The documents
// are static constants, so a compilation failure is a programming error.
var compiled = make(map[string]*gojsonschema.Schema)

func init() {
	for name, doc := range map[string]string{
		Operation:      operationSchema,
		AddReplicas:    addReplicasSchema,
		DeleteReplicas: deleteReplicasSchema,
	} {
		var s, err = gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc))
		if err != nil {
			panic(fmt.Sprintf("compiling schema %s: %v", name, err))
		}
		compiled[name] = s
	}
}

// Error is a structural validation failure, carrying the schema which was
// violated and the first validator detail.
type Error struct {
	Schema string
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("payload does not conform to schema %s: %s", e.Schema, e.Detail)
}

// Validate checks |doc| against the named schema, returning *Error if the
// document does not conform.
func Validate(doc []byte, name string) error {
	var s, ok = compiled[name]
	if !ok {
		return errors.Errorf("unknown schema %q", name)
	}

	var result, err = s.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		// The document itself could not be parsed.
		return &Error{Schema: name, Detail: err.Error()}
	}
	if !result.Valid() {
		return &Error{Schema: name, Detail: result.Errors()[0].String()}
	}
	return nil
}

// ForOperation maps an Operation to the schema validating its payload shape.
func ForOperation(op string) (string, error) {
	switch op {
	case AddReplicas, DeleteReplicas:
		return op, nil
	default:
		return "", errors.Errorf("no schema for operation %q", op)
	}
}
