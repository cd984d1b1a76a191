// Command awareness runs the world-state awareness engine.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/awareness/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
