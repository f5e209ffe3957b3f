// Command stacktower runs the stack tower game host and its tooling.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/stacktower/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
