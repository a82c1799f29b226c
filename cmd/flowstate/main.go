// Command flowstate runs and replays single-store sessions.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/flowstate/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
