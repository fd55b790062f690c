package message

import "math/rand"

// envelopeIDBound bounds the correlation identifier drawn for each Envelope.
// Identifiers are advisory, for tracing a message through broker logs; they
// are not a dedup key and uniqueness across messages is not guaranteed.
const envelopeIDBound = 1000

// NewEnvelope wraps |payload| with a correlation identifier drawn uniformly
// from [0, 1000). The payload bytes are embedded unmodified.
func NewEnvelope(payload []byte) Envelope {
	return Envelope{
		ID:      rand.Intn(envelopeIDBound),
		Payload: payload,
	}
}
