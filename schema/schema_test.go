package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationSchemaRequiresOperationAndRSE(t *testing.T) {
	assert.NoError(t, Validate(
		[]byte(`{"operation":"add_replicas","rse":"CACHE_1","files":[]}`), Operation))

	var cases = []string{
		`{"rse":"CACHE_1"}`,                       // Missing operation.
		`{"operation":"add_replicas"}`,            // Missing rse.
		`{"operation":"move_replicas","rse":"C"}`, // Not an accepted operation.
		`{"operation":"add_replicas","rse":123}`,  // rse of the wrong type.
		`not json at all`,                         // Not a JSON document.
	}
	for _, tc := range cases {
		var err = Validate([]byte(tc), Operation)
		require.Error(t, err, tc)

		var sErr, ok = err.(*Error)
		require.True(t, ok, tc)
		assert.Equal(t, Operation, sErr.Schema)
	}
}

func TestAddReplicasSchemaRequiresFullFileShape(t *testing.T) {
	assert.NoError(t, Validate([]byte(
		`{"operation":"add_replicas","rse":"CACHE_1","lifetime":3600,
		  "files":[{"scope":"user.x","name":"f1","bytes":10,"adler32":"abc123"}]}`),
		AddReplicas))

	var cases = []string{
		// Missing adler32.
		`{"rse":"C","files":[{"scope":"s","name":"n","bytes":10}]}`,
		// Missing bytes.
		`{"rse":"C","files":[{"scope":"s","name":"n","adler32":"a"}]}`,
		// Negative bytes.
		`{"rse":"C","files":[{"scope":"s","name":"n","bytes":-1,"adler32":"a"}]}`,
		// Non-integer lifetime.
		`{"rse":"C","lifetime":"soon","files":[]}`,
		// Missing files.
		`{"rse":"C"}`,
	}
	for _, tc := range cases {
		assert.Error(t, Validate([]byte(tc), AddReplicas), tc)
	}
}

func TestDeleteReplicasSchemaRequiresIdentityOnly(t *testing.T) {
	assert.NoError(t, Validate([]byte(
		`{"operation":"delete_replicas","rse":"CACHE_1",
		  "files":[{"scope":"user.x","name":"f1"}]}`),
		DeleteReplicas))

	// Deletions carry no size or checksum, and none is required.
	assert.Error(t, Validate([]byte(
		`{"rse":"C","files":[{"scope":"s"}]}`), DeleteReplicas))
}

func TestUnknownSchemaName(t *testing.T) {
	assert.EqualError(t, Validate([]byte(`{}`), "compact_replicas"),
		`unknown schema "compact_replicas"`)
}

func TestForOperation(t *testing.T) {
	var name, err = ForOperation("add_replicas")
	assert.NoError(t, err)
	assert.Equal(t, AddReplicas, name)

	name, err = ForOperation("delete_replicas")
	assert.NoError(t, err)
	assert.Equal(t, DeleteReplicas, name)

	_, err = ForOperation("move_replicas")
	assert.EqualError(t, err, `no schema for operation "move_replicas"`)
}
