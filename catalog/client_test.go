package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	var srv = httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	var client, err = NewClient(Config{URL: srv.URL, Token: "a-token", Timeout: time.Second})
	require.NoError(t, err)
	return client, srv
}

func TestRSEAttributesCoercesStringlyVolatile(t *testing.T) {
	var requests int
	var client, _ = newTestClient(t, http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			requests++
			assert.Equal(t, "/rses/CACHE_1/attr/", r.URL.Path)
			assert.Equal(t, "a-token", r.Header.Get("X-Rucio-Auth-Token"))
			w.Write([]byte(`{"volatile": "True", "tier": "3"}`))
		}))

	var attrs, err = client.RSEAttributes(context.Background(), "CACHE_1")
	require.NoError(t, err)
	assert.True(t, attrs.Volatile)

	// A second lookup of the same endpoint is served from cache.
	attrs, err = client.RSEAttributes(context.Background(), "CACHE_1")
	require.NoError(t, err)
	assert.True(t, attrs.Volatile)
	assert.Equal(t, 1, requests)
}

func TestRSEAttributesVolatileForms(t *testing.T) {
	assert.True(t, asBool(true))
	assert.True(t, asBool("true"))
	assert.True(t, asBool("True"))
	assert.True(t, asBool("1"))
	assert.False(t, asBool(false))
	assert.False(t, asBool("False"))
	assert.False(t, asBool(nil))
	assert.False(t, asBool(7.0))
}

func TestFileMetaLookupAndMemoization(t *testing.T) {
	var requests int
	var client, _ = newTestClient(t, http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			requests++
			assert.Equal(t, "/dids/user.x/f1", r.URL.Path)
			w.Write([]byte(`{"scope":"user.x","name":"f1","bytes":10,"adler32":"abc123"}`))
		}))

	var meta, err = client.FileMeta(context.Background(), "user.x", "f1")
	require.NoError(t, err)
	assert.Equal(t, FileMeta{Scope: "user.x", Name: "f1", Bytes: 10, Adler32: "abc123"}, meta)

	// Two references to the same scope:name cost one round-trip.
	_, err = client.FileMeta(context.Background(), "user.x", "f1")
	require.NoError(t, err)
	assert.Equal(t, 1, requests)
}

func TestFileMetaNotFound(t *testing.T) {
	var client, _ = newTestClient(t, http.NotFoundHandler())

	var _, err = client.FileMeta(context.Background(), "user.x", "missing")
	assert.Equal(t, ErrNotFound, err)
}

func TestLookupFailuresAreSurfaced(t *testing.T) {
	var client, _ = newTestClient(t, http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))

	var _, err = client.RSEAttributes(context.Background(), "CACHE_1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "looking up attributes of CACHE_1")

	_, err = client.FileMeta(context.Background(), "user.x", "f1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "looking up metadata of user.x:f1")
}

func TestNewClientRejectsBadURL(t *testing.T) {
	var _, err = NewClient(Config{URL: "://not-a-url"})
	assert.Error(t, err)
}

func TestEndpointAttributesNotFoundIsWrapped(t *testing.T) {
	// Unlike file metadata, a missing RSE record is a lookup failure rather
	// than a distinct not-found outcome.
	var client, _ = newTestClient(t, http.NotFoundHandler())

	var _, err = client.RSEAttributes(context.Background(), "NO_SUCH_RSE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "looking up attributes of NO_SUCH_RSE")
}
