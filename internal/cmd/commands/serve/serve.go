// Package serve implements quillmeshd's "serve" subcommand: load config,
// open storage, establish this process's federation identity, and run
// the HTTP server until signaled to stop.
package serve

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/quillmesh/quillmesh/internal/cmd/base"
	"github.com/quillmesh/quillmesh/internal/config"
	"github.com/quillmesh/quillmesh/internal/localinstance"
	"github.com/quillmesh/quillmesh/internal/repository/gormrepo"
	"github.com/quillmesh/quillmesh/internal/server"

	"github.com/hashicorp/go-hclog"
)

type Command struct {
	*base.Command

	flagConfig string
}

func (c *Command) Synopsis() string {
	return "Run the quillmeshd federation server"
}

func (c *Command) Help() string {
	return `Usage: quillmeshd serve -config=config.hcl

  Starts the HTTP server that answers the federation inbox, the
  ActivityPub object endpoints, and the instance discovery endpoints.

` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("serve", flag.ExitOnError))
	f.StringVar(&c.flagConfig, "config", "", "(Required) Path to quillmeshd config file")
	return f
}

func (c *Command) Run(args []string) int {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	if c.flagConfig == "" {
		c.UI.Error("-config is required")
		return 1
	}

	cfg, err := config.Load(c.flagConfig)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error loading config: %v", err))
		return 1
	}

	logger := newLogger(cfg.Log)

	repo, err := gormrepo.Open(gormrepo.Config{
		Driver:   cfg.Database.Driver,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		Path:     cfg.Database.Path,
	}, logger)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error opening database: %v", err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := localinstance.Initialize(ctx, repo, cfg.BaseURL, cfg.Domain, logger); err != nil {
		c.UI.Error(fmt.Sprintf("error initializing local instance: %v", err))
		return 1
	}

	srv := server.New(cfg, repo, logger)

	c.UI.Info(fmt.Sprintf("quillmeshd listening on %s (base_url=%s)", cfg.Addr, cfg.BaseURL))
	if err := srv.ListenAndServe(ctx); err != nil {
		c.UI.Error(fmt.Sprintf("server error: %v", err))
		return 1
	}

	return 0
}

func newLogger(cfg config.LogConfig) hclog.Logger {
	level := hclog.LevelFromString(cfg.Level)
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       "quillmeshd",
		Level:      level,
		JSONFormat: cfg.Format == "json",
	})
}
