package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/vitrina/vitrina/internal/client"
	"github.com/vitrina/vitrina/internal/logging"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		if errors.Is(err, client.ErrNoSession) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		logging.New(os.Stderr, "info").Error("application error", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "vitrina",
		Usage:   "Premium media gallery server and terminal client",
		Version: version,
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			seedCommand(),
			usersCommand(),
			loginCommand(),
			logoutCommand(),
			browseCommand(),
			configCommand(),
		},
	}
}
