package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/Lllllllleong/documentindexflow/internal/bootstrap"
	"github.com/Lllllllleong/documentindexflow/internal/config"
	"github.com/Lllllllleong/documentindexflow/internal/logging"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "docflowctl",
		Usage: "Operate the document indexing pipeline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			return logging.SetupWriter(os.Stderr, c.String("log-level"))
		},
		Commands: []*cli.Command{
			{
				Name:      "status",
				Usage:     "Print the ledger record of a document",
				ArgsUsage: "<document-id>",
				Action:    statusCommand,
			},
			{
				Name:      "redrive",
				Usage:     "Move an indexed or failed-indexing document back to EXTRACTION_COMPLETED so it is indexed again",
				ArgsUsage: "<document-id>",
				Action:    redriveCommand,
			},
			{
				Name:      "index-now",
				Usage:     "Index a document whose extraction completed, without waiting for the change event",
				ArgsUsage: "<document-id>",
				Action:    indexNowCommand,
			},
			{
				Name:   "reap",
				Usage:  "Fail documents stuck in extraction",
				Action: reapCommand,
			},
			{
				Name:      "search",
				Usage:     "Query the vector index",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of chunks to return",
						Value: 5,
					},
				},
			},
			{
				Name:   "init",
				Usage:  "Create the vector index class and, on MinIO, the buckets",
				Action: initCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func openEnv() (*bootstrap.Env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return bootstrap.New(cfg), nil
}

func documentArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", cli.Exit("expected exactly one document id", 2)
	}
	return c.Args().First(), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
