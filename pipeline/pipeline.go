// Package pipeline sequences the stages of a cache-update run: structural
// validation, semantic verification against the catalog, envelope
// construction, and the single publish to the broker. Stages run strictly in
// order and the first failure surfaces immediately; no stage is retried, and
// no stage before the publish has a persistent side effect.
package pipeline

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/gridops/cachenotify/catalog"
	"github.com/gridops/cachenotify/message"
	"github.com/gridops/cachenotify/schema"
)

// Sender publishes a single message body to the broker. It is implemented
// by stompx.Publisher, and by test fakes.
type Sender interface {
	Publish(ctx context.Context, body []byte) error
}

// Coordinator runs the validate-and-publish pipeline over one raw payload.
type Coordinator struct {
	Verifier *catalog.Verifier
	Sender   Sender
}

// NewCoordinator returns a Coordinator verifying through |v| and publishing
// through |s|.
func NewCoordinator(v *catalog.Verifier, s Sender) *Coordinator {
	return &Coordinator{Verifier: v, Sender: s}
}

// Run validates |raw| structurally and semantically, wraps it in an
// envelope, and publishes it. The raw payload bytes are embedded in the
// envelope unmodified. The first failing stage aborts the run.
func (c *Coordinator) Run(ctx context.Context, raw []byte) error {
	// Stage 1: structural validation. The operation envelope is checked
	// first, then the schema selected by the operation value. No network
	// activity occurs until both pass.
	if err := schema.Validate(raw, schema.Operation); err != nil {
		return err
	}
	var msg message.CacheMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return errors.Wrap(err, "decoding payload")
	}
	// The schemas don't constrain string minimums, so a file with an empty
	// scope or name is structurally valid; the decoded-shape check rejects it.
	if err := msg.Validate(); err != nil {
		return errors.Wrap(err, "invalid payload")
	}
	opSchema, err := schema.ForOperation(string(msg.Operation))
	if err != nil {
		return err
	}
	if err = schema.Validate(raw, opSchema); err != nil {
		return err
	}
	log.WithFields(log.Fields{"operation": msg.Operation, "rse": msg.RSE, "files": len(msg.Files)}).
		Debug("structure validated")

	// Stage 2: semantic verification. The endpoint check precedes file
	// checks: a non-volatile endpoint invalidates the whole operation
	// regardless of file state. Deletions carry no size or checksum, so
	// file verification applies to additions only.
	if err = c.Verifier.VerifyEndpoint(ctx, msg.RSE); err != nil {
		return err
	}
	if msg.IsAdd() {
		if err = c.Verifier.VerifyFiles(ctx, msg.Files); err != nil {
			return err
		}
	}
	log.Debug("semantics verified")

	// Stage 3: envelope construction and the single publish.
	var body []byte
	if body, err = json.Marshal(message.NewEnvelope(raw)); err != nil {
		return errors.Wrap(err, "encoding envelope")
	}
	return c.Sender.Publish(ctx, body)
}
