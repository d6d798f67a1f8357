package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

// overridden during build with ldflags
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "reservations",
		Usage:   "Reservation booking backend",
		Version: version,
		Flags:   serveFlags(),
		Action:  serve,
		Commands: []*cli.Command{
			serveCmd(),
			hashPasswordCmd(),
			backupCmd(),
		},
	}
}
