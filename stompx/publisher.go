// Package stompx publishes messages to a STOMP broker over a TLS connection
// authenticated with a client certificate. One Publish call maps to one
// connect / send / disconnect cycle: the tool sends a single message per
// invocation and does not pool or retry connections.
package stompx

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/go-stomp/stomp/v3"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// clientID identifies this tool to the broker in the connect headers.
const clientID = "cachenotify"

// voHeader tags each published message with its virtual organization.
const voHeader = "atlas"

// Config configures a broker Publisher.
type Config struct {
	Host        string `long:"host" env:"HOST" default:"localhost" description:"Message broker hostname"`
	Port        uint16 `long:"port" env:"PORT" default:"61613" description:"Message broker port"`
	Destination string `long:"destination" env:"DESTINATION" default:"/topic/rucio.cache" description:"Destination topic messages are published to"`
	CertFile    string `long:"cert-file" env:"CERT_FILE" description:"Path of the client TLS certificate"`
	KeyFile     string `long:"key-file" env:"KEY_FILE" description:"Path of the client TLS private key"`
	// TLSMinVersion optionally pins a legacy protocol floor. Some older
	// brokers negotiate only TLS 1.0; everything else should leave this at
	// "default" and take the platform's current policy.
	TLSMinVersion string `long:"tls-min-version" env:"TLS_MIN_VERSION" default:"default" choice:"default" choice:"1.0" description:"Minimum TLS version to negotiate with the broker"`
}

// TransportError is a connection, handshake, or send failure against the
// broker.
type TransportError struct {
	Op    string
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("broker %s: %s", e.Op, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error { return e.Cause }

// Publisher sends messages to the configured broker destination.
type Publisher struct {
	cfg Config
}

// NewPublisher returns a Publisher of |cfg|'s broker and destination.
func NewPublisher(cfg Config) *Publisher { return &Publisher{cfg: cfg} }

// Publish connects to the broker, sends |body| as a single JSON message to
// the configured destination, and disconnects. No broker-side receipt is
// solicited beyond the STOMP handshake ("auto" acknowledgment semantics).
// The connection is closed unconditionally, whether or not the send
// succeeded.
func (p *Publisher) Publish(ctx context.Context, body []byte) error {
	var tlsConfig, err = p.buildTLSConfig()
	if err != nil {
		return &TransportError{Op: "tls config", Cause: err}
	}

	var addr = fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)
	netConn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return &TransportError{Op: "connect", Cause: err}
	}

	conn, err := stomp.Connect(netConn,
		stomp.ConnOpt.Header("client-id", clientID),
	)
	if err != nil {
		_ = netConn.Close()
		return &TransportError{Op: "stomp handshake", Cause: err}
	}
	defer func() {
		if dErr := conn.Disconnect(); dErr != nil {
			log.WithField("err", dErr).Warn("broker disconnect failed")
		}
	}()

	if err = ctx.Err(); err != nil {
		return &TransportError{Op: "send", Cause: err}
	}
	if err = conn.Send(p.cfg.Destination, "application/json", body,
		stomp.SendOpt.Header("vo", voHeader),
	); err != nil {
		return &TransportError{Op: "send", Cause: err}
	}

	log.WithFields(log.Fields{
		"broker":      addr,
		"destination": p.cfg.Destination,
		"bytes":       len(body),
	}).Info("published message")
	return nil
}

// buildTLSConfig loads the client keypair and applies the configured
// protocol floor.
func (p *Publisher) buildTLSConfig() (*tls.Config, error) {
	var cert, err = tls.LoadX509KeyPair(p.cfg.CertFile, p.cfg.KeyFile)
	if err != nil {
		return nil, errors.Wrap(err, "loading client certificate")
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tlsMinVersion(p.cfg.TLSMinVersion),
	}, nil
}

// tlsMinVersion maps the configuration choice to a tls.Config MinVersion.
// Zero defers to the platform's current policy; the "1.0" pin exists for
// legacy brokers only.
func tlsMinVersion(choice string) uint16 {
	if choice == "1.0" {
		return tls.VersionTLS10
	}
	return 0
}
