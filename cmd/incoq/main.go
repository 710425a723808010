// Command incoq compiles and runs incrementalized query programs.
package main

import (
	"os"

	"github.com/roach88/incoq/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
