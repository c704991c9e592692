// Command glyphcaster creates, shares and edits replicated text documents.
package main

import (
	"context"

	"github.com/scott-cotton/cli"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cli.MainContext(context.Background(), MainCommand())
}
