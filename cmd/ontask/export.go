package main

import (
	"context"
	"fmt"
	"io"
	"os"

	cli "github.com/urfave/cli/v3"
)

func runExport(ctx context.Context, command *cli.Command) error {
	manager, p, logger, err := newManager(ctx, command)
	if err != nil {
		return err
	}
	defer closePersistence(ctx, p, logger)

	user := command.String("user")
	name := command.String("name")

	w, err := p.WorkflowByName(ctx, user, name)
	if err != nil {
		return err
	}

	if w == nil {
		return cli.Exit(fmt.Sprintf("workflow %q not found for %s", name, user), 1)
	}

	var out io.Writer = os.Stdout

	if path := command.String("output"); path != "" {
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}

		defer func() {
			err := file.Close()
			if err != nil {
				logger.ErrorContext(ctx, "Failed to close output file", "error", err)
			}
		}()

		out = file
	}

	if view := command.String("view"); view != "" {
		return manager.ExportView(ctx, w, view, out)
	}

	return manager.Export(ctx, w, out)
}
