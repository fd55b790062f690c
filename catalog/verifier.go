package catalog

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/gridops/cachenotify/message"
)

// Verifier enforces the catalog-side preconditions of a cache-update message.
// The endpoint check and the file checks are orthogonal; callers run the
// endpoint check first because a non-volatile endpoint invalidates the whole
// operation regardless of file state.
type Verifier struct {
	Resolver Resolver
}

// NewVerifier returns a Verifier resolving through |r|.
func NewVerifier(r Resolver) *Verifier { return &Verifier{Resolver: r} }

// VerifyEndpoint confirms that |rse| is a volatile endpoint. It returns a
// *ValidationError if the endpoint is not volatile, or wrapping the lookup
// failure if the catalog could not be consulted.
func (v *Verifier) VerifyEndpoint(ctx context.Context, rse string) error {
	var attrs, err = v.Resolver.RSEAttributes(ctx, rse)
	if err != nil {
		return &ValidationError{Identity: rse, Cause: err}
	}
	if !attrs.Volatile {
		return &ValidationError{Identity: rse, Detail: "endpoint is not volatile", Cause: ErrNotVolatile}
	}
	log.WithField("rse", rse).Debug("endpoint verified volatile")
	return nil
}

// VerifyFiles confirms that each FileRef matches the catalog's record of the
// same scope:name, in input order. The first violation is returned; later
// files are not examined.
func (v *Verifier) VerifyFiles(ctx context.Context, files []message.FileRef) error {
	for _, f := range files {
		var meta, err = v.Resolver.FileMeta(ctx, f.Scope, f.Name)
		if errors.Is(err, ErrNotFound) {
			return &ValidationError{Identity: f.Key(), Detail: "not found in catalog", Cause: ErrNotFound}
		} else if err != nil {
			return &ValidationError{Identity: f.Key(), Cause: err}
		}

		if meta.Bytes != f.Bytes {
			return &ValidationError{
				Identity: f.Key(),
				Detail:   fmt.Sprintf("bytes mismatch (message %d, catalog %d)", f.Bytes, meta.Bytes),
				Cause:    ErrMismatch,
			}
		}
		if meta.Adler32 != f.Adler32 {
			return &ValidationError{
				Identity: f.Key(),
				Detail:   fmt.Sprintf("adler32 mismatch (message %q, catalog %q)", f.Adler32, meta.Adler32),
				Cause:    ErrMismatch,
			}
		}
	}
	return nil
}
