// Package catalog provides a client of the replica catalog's REST API and a
// Verifier enforcing the semantic preconditions of cache-update messages:
// the target endpoint must be volatile, and added files must match the
// catalog's recorded size and checksum.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Resolver answers catalog lookups needed to validate a cache-update message.
// It is implemented by Client, and by test fakes.
type Resolver interface {
	// RSEAttributes returns the catalog attributes of the named endpoint.
	RSEAttributes(ctx context.Context, rse string) (EndpointAttributes, error)
	// FileMeta returns the catalog's recorded metadata of scope:name.
	// It returns ErrNotFound if the catalog has no record of the identity.
	FileMeta(ctx context.Context, scope, name string) (FileMeta, error)
}

// EndpointAttributes is the catalog-side record of a storage endpoint.
type EndpointAttributes struct {
	// Volatile marks the endpoint as non-authoritative, cache-like storage.
	// Only volatile endpoints accept cache-update messages.
	Volatile bool
}

// FileMeta is the catalog's record of a file.
type FileMeta struct {
	Scope   string `json:"scope"`
	Name    string `json:"name"`
	Bytes   int64  `json:"bytes"`
	Adler32 string `json:"adler32"`
}

// Config configures a catalog Client.
type Config struct {
	URL     string        `long:"url" env:"URL" default:"https://localhost:443" description:"Catalog service base URL"`
	Token   string        `long:"token" env:"TOKEN" default:"" description:"Catalog authentication token"`
	Timeout time.Duration `long:"timeout" env:"TIMEOUT" default:"30s" description:"Timeout applied to each catalog request"`
}

// lookupCacheSize bounds the per-run memoization of catalog responses.
const lookupCacheSize = 1024

// Client resolves endpoint attributes and file metadata against the
// catalog's REST API. Lookups are memoized for the lifetime of the Client,
// so repeated references to the same identity cost one round-trip.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client

	attrCache *lru.Cache // rse => EndpointAttributes
	metaCache *lru.Cache // scope:name => FileMeta
}

// NewClient returns a Client of the catalog at |cfg.URL|.
func NewClient(cfg Config) (*Client, error) {
	var base, err = url.Parse(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing catalog URL")
	}
	attrCache, err := lru.New(lookupCacheSize)
	if err != nil {
		return nil, err
	}
	metaCache, err := lru.New(lookupCacheSize)
	if err != nil {
		return nil, err
	}
	return &Client{
		base:      base,
		token:     cfg.Token,
		http:      &http.Client{Timeout: cfg.Timeout},
		attrCache: attrCache,
		metaCache: metaCache,
	}, nil
}

// RSEAttributes implements Resolver.
func (c *Client) RSEAttributes(ctx context.Context, rse string) (EndpointAttributes, error) {
	if cached, ok := c.attrCache.Get(rse); ok {
		return cached.(EndpointAttributes), nil
	}

	// The catalog serializes attribute values stringly (eg "True"), so
	// decode into a generic map and coerce.
	var raw map[string]interface{}
	if err := c.get(ctx, fmt.Sprintf("/rses/%s/attr/", url.PathEscape(rse)), &raw); err != nil {
		return EndpointAttributes{}, errors.Wrapf(err, "looking up attributes of %s", rse)
	}

	var attrs = EndpointAttributes{Volatile: asBool(raw["volatile"])}
	c.attrCache.Add(rse, attrs)

	log.WithFields(log.Fields{"rse": rse, "volatile": attrs.Volatile}).
		Debug("resolved endpoint attributes")
	return attrs, nil
}

// FileMeta implements Resolver.
func (c *Client) FileMeta(ctx context.Context, scope, name string) (FileMeta, error) {
	var key = scope + ":" + name
	if cached, ok := c.metaCache.Get(key); ok {
		return cached.(FileMeta), nil
	}

	var meta FileMeta
	var path = fmt.Sprintf("/dids/%s/%s", url.PathEscape(scope), url.PathEscape(name))
	if err := c.get(ctx, path, &meta); err != nil {
		if errors.Is(err, ErrNotFound) {
			return FileMeta{}, err
		}
		return FileMeta{}, errors.Wrapf(err, "looking up metadata of %s", key)
	}
	c.metaCache.Add(key, meta)

	log.WithFields(log.Fields{"did": key, "bytes": meta.Bytes, "adler32": meta.Adler32}).
		Debug("resolved file metadata")
	return meta, nil
}

// get issues a GET of |path| under the catalog base URL and decodes the JSON
// response into |out|. A 404 is mapped to ErrNotFound.
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	var u = *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("X-Rucio-Auth-Token", c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return errors.Errorf("catalog returned status %s", resp.Status)
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "decoding catalog response")
}

// asBool coerces a generic catalog attribute value to a boolean. Attribute
// values arrive as JSON booleans or as stringly-typed "True"/"true"/"1".
func asBool(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(t) {
		case "true", "1":
			return true
		}
	}
	return false
}
