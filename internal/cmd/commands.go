package cmd

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/quillmesh/quillmesh/internal/cmd/base"
	"github.com/quillmesh/quillmesh/internal/cmd/commands/migrate"
	"github.com/quillmesh/quillmesh/internal/cmd/commands/serve"
)

// Commands is the full set of quillmeshd subcommands, populated by
// initCommands.
var Commands map[string]cli.CommandFactory

// initCommands registers every subcommand against log and ui.
func initCommands(log hclog.Logger, ui cli.Ui) {
	baseCmd := &base.Command{
		UI:  ui,
		Log: log,
	}

	Commands = map[string]cli.CommandFactory{
		"serve": func() (cli.Command, error) {
			return &serve.Command{Command: baseCmd}, nil
		},
		"migrate": func() (cli.Command, error) {
			return &migrate.Command{Command: baseCmd}, nil
		},
	}
}
