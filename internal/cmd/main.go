// Package cmd wires quillmeshd's subcommands into a mitchellh/cli.CLI and
// runs it, the way the teacher's own internal/cmd does for Hermes.
package cmd

import (
	"bufio"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/quillmesh/quillmesh/internal/version"
)

// Main runs the CLI with the given arguments and returns the exit code.
// quillmeshd has exactly two subcommands, serve and migrate, and defaults
// to serve when none is given: running a federation node at rest is the
// only thing the bare binary does.
func Main(args []string) int {
	cliName := args[0]

	log := hclog.New(&hclog.LoggerOptions{
		Name:  cliName,
		Level: rootLogLevel(),
	})

	switch {
	case len(args) == 2 && (args[1] == "-version" || args[1] == "-v"):
		// Left as is: cli.CLI prints Version itself for -version and -v.
	case len(args) == 1:
		args = append(args, "serve")
	}

	ui := &cli.BasicUi{
		Reader:      bufio.NewReader(os.Stdin),
		Writer:      os.Stdout,
		ErrorWriter: os.Stderr,
	}

	initCommands(log, ui)

	c := &cli.CLI{
		Name:     cliName,
		Args:     args[1:],
		Version:  version.Version,
		Commands: Commands,
	}

	exitCode, err := c.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cliName, err)
		return 1
	}

	return exitCode
}

// rootLogLevel reads QUILLMESHD_LOG_LEVEL so the logger handed to every
// subcommand before -config is parsed (dispatch failures, flag errors)
// can be tuned without a config file. The serve/migrate subcommands
// build their own, config-driven logger once -config loads; this one
// only covers the CLI dispatch path itself.
func rootLogLevel() hclog.Level {
	level := hclog.LevelFromString(os.Getenv("QUILLMESHD_LOG_LEVEL"))
	if level == hclog.NoLevel {
		return hclog.Info
	}
	return level
}
