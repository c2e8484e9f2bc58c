package main

import (
	"fmt"
	"os"

	"github.com/oca/repo-maintainer/cmd/cli"
)

const (
	exitErrorTemplateConstant = "%v\n"
)

// main executes the repo-maintainer command-line application.
func main() {
	if executionError := cli.Execute(); executionError != nil {
		fmt.Fprintf(os.Stderr, exitErrorTemplateConstant, executionError)
		os.Exit(1)
	}
}
