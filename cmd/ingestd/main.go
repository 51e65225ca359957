// Package main is the entrypoint of the ingestd binary.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/JakeFAU/collection-ingest/cmd/ingestd/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configFlag := &cli.StringFlag{
		Name:  "config",
		Usage: "path to a YAML, JSON or TOML config file",
	}

	app := &cli.Command{
		Name:  "ingestd",
		Usage: "scrape item pages into catalog collections",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Flags:  []cli.Flag{configFlag},
				Action: commands.ServeAction,
			},
			{
				Name:  "ingest",
				Usage: "ingest a CSV of URLs into a collection and print progress as JSON lines",
				Flags: []cli.Flag{
					configFlag,
					&cli.Int64Flag{
						Name:     "collection",
						Usage:    "target collection id",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "file",
						Usage:    "CSV file with a url column",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "apply-mapping",
						Usage: "apply the collection's stored field mapping",
					},
					&cli.StringFlag{
						Name:  "mapping",
						Usage: "JSON field mapping file, used instead of the stored one",
					},
					&cli.StringFlag{
						Name:  "out",
						Usage: "where to write the remaining rows when the job is blocked",
						Value: "remaining_urls.csv",
					},
				},
				Action: commands.IngestAction,
			},
			{
				Name:   "version",
				Usage:  "print the build version",
				Action: commands.VersionAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "ingestd: %v\n", err)
		os.Exit(1)
	}
}
