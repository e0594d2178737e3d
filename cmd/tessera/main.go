// Command tessera is the CLI for the tessera data runtime.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/tessera/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
