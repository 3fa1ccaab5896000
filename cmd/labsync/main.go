// Command labsync manages lab collections through an optimistic sync store.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/labsync/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
