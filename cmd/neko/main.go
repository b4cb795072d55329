// Command neko runs the giveaway engine and its operator tooling.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/neko/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
