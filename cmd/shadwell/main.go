// Command shadwell lists and ranks the installable artifacts of a Python
// project.
//
//	shadwell find 'requests>=2'
//	shadwell best --only-binary :all: numpy
//	shadwell tags --python-version 3.11
//	shadwell parse proj-0.2-py3-none-any.whl
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
)

// version is set at link time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	app := newApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "shadwell:", err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "shadwell",
		Usage:     "select and rank Python wheels and sdists",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		// Errors are printed once, by main.
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			findCommand(),
			bestCommand(),
			tagsCommand(),
			parseCommand(),
		},
	}
}
