// Command playlisterd serves the playlist HTTP API and its admin health listener.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// errUsage marks failures the operator can fix by changing flags or environment.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "playlisterd: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "playlisterd",
		Usage:   "Playlist storage service",
		Version: version + " (" + buildDate + ")",
		Action:  runServe,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP API and the admin gRPC health listener",
				Action: runServe,
			},
			{
				Name:   "migrate",
				Usage:  "Apply pending PostgreSQL migrations (DATABASE_URL)",
				Action: runMigrate,
			},
			{
				Name:  "reset",
				Usage: "Delete every playlist and user from the configured engine",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Confirm the irreversible reset",
					},
				},
				Action: runReset,
			},
		},
	}
}
