// cachenotify validates a cache-update message describing replicas added to
// or removed from a volatile storage endpoint, and publishes it to a message
// broker topic for downstream caches to apply.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/gridops/cachenotify/catalog"
	mbp "github.com/gridops/cachenotify/mainboilerplate"
	"github.com/gridops/cachenotify/pipeline"
	"github.com/gridops/cachenotify/schema"
	"github.com/gridops/cachenotify/stompx"
)

const iniFilename = "cachenotify.ini"

// Config is the top-level configuration object of cachenotify.
var Config = new(struct {
	Broker  stompx.Config  `group:"Broker" namespace:"broker" env-namespace:"BROKER"`
	Catalog catalog.Config `group:"Catalog" namespace:"catalog" env-namespace:"CATALOG"`
	Log     mbp.LogConfig  `group:"Logging" namespace:"log" env-namespace:"LOG"`
})

type cmdPublish struct {
	File string `long:"file" short:"f" description:"Read the message from this file instead of the argument ('-' reads stdin)"`
	Args struct {
		Message string `positional-arg-name:"MESSAGE" description:"JSON-encoded cache-update message"`
	} `positional-args:"true"`
}

func (cmd *cmdPublish) Execute([]string) error {
	mbp.InitLog(Config.Log)

	var raw, err = cmd.readMessage()
	if err != nil {
		fail(err)
	}

	client, err := catalog.NewClient(Config.Catalog)
	if err != nil {
		fail(err)
	}
	var coord = pipeline.NewCoordinator(
		catalog.NewVerifier(client),
		stompx.NewPublisher(Config.Broker),
	)
	if err = coord.Run(context.Background(), raw); err != nil {
		fail(err)
	}
	return nil
}

// readMessage resolves the raw message bytes from the --file flag, or the
// positional argument, in that order of precedence.
func (cmd *cmdPublish) readMessage() ([]byte, error) {
	switch {
	case cmd.File == "-":
		return io.ReadAll(os.Stdin)
	case cmd.File != "":
		return os.ReadFile(cmd.File)
	case cmd.Args.Message != "":
		return []byte(cmd.Args.Message), nil
	default:
		return nil, fmt.Errorf("no message given (pass a JSON argument, or --file)")
	}
}

// errorMessage names the failing stage of the pipeline taxonomy: structural
// schema validation, semantic validation against the catalog, or broker
// transport.
func errorMessage(err error) string {
	var (
		sErr *schema.Error
		vErr *catalog.ValidationError
		tErr *stompx.TransportError
	)
	switch {
	case errors.As(err, &sErr):
		return fmt.Sprintf("schema: %v", err)
	case errors.As(err, &vErr):
		return fmt.Sprintf("validation: %v", err)
	case errors.As(err, &tErr):
		return fmt.Sprintf("transport: %v", err)
	}
	return err.Error()
}

// fail writes |err| to the error stream and exits with failure.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %s\n", errorMessage(err))
	os.Exit(1)
}

func main() {
	var parser = flags.NewParser(Config, flags.Default)

	_, _ = parser.AddCommand("publish", "Validate and publish a cache-update message", `
Validate the given cache-update message against its structural schema and the
replica catalog, then publish it to the configured broker destination. The
message is sent exactly once; on any validation or transport failure nothing
is sent and the process exits with failure.
`, &cmdPublish{})

	mbp.AddPrintConfigCmd(parser, iniFilename)
	mbp.MustParseConfig(parser, iniFilename)
}
