package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:                  "ontask",
		Usage:                 "Administer personalization workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL (postgres://... or a SQLite file path)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "import-workflow",
				Usage:     "Import workflow bundles for a user",
				ArgsUsage: "<file>...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user",
						Usage:    "Owner of the imported workflows",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Override the workflow name (single file only)",
					},
					&cli.BoolFlag{
						Name:  "replace",
						Usage: "Overwrite an existing workflow with the same name",
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					return runImport(ctx, command)
				},
			},
			{
				Name:  "export-workflow",
				Usage: "Export a workflow (or one of its views) as a bundle",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user",
						Usage:    "Owner of the workflow",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "name",
						Usage:    "Workflow name",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "view",
						Usage: "Export only the named view's columns and rows",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file (defaults to stdout)",
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					return runExport(ctx, command)
				},
			},
			{
				Name:  "fix-table-names",
				Usage: "Audit that every workflow's data table exists under its canonical name",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "user",
						Usage: "Restrict the audit to one owner",
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					return runTableAudit(ctx, command)
				},
			},
			{
				Name:  "sanity-check",
				Usage: "Check the structural invariants of every workflow and report violations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "user",
						Usage: "Restrict the check to one owner",
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					return runSanityCheck(ctx, command)
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
