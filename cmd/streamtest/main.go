package main

import (
	"fmt"
	"os"

	"github.com/roach88/streamtest/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}
