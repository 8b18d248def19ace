// Package main is the shopfloor command-line entry point.
package main

import (
	"io"
	"os"

	"github.com/kimhsiao/shopfloor/backend/internal/cli"
)

// Version is set at build time
var Version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command tree and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	root := cli.NewRootCommand()
	root.Version = Version
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		format, _ := root.PersistentFlags().GetString("format")
		cli.WriteError(stderr, format, err)
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}
