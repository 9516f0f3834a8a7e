package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
)

func runImport(ctx context.Context, command *cli.Command) error {
	files := command.Args().Slice()
	if len(files) == 0 {
		return cli.Exit("at least one bundle file is required", 2)
	}

	name := command.String("name")
	if name != "" && len(files) > 1 {
		return cli.Exit("--name can only be used with a single file", 2)
	}

	manager, p, logger, err := newManager(ctx, command)
	if err != nil {
		return err
	}
	defer closePersistence(ctx, p, logger)

	user := command.String("user")
	replace := command.Bool("replace")

	for _, file := range files {
		in, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", file, err)
		}

		w, err := manager.Import(ctx, user, name, replace, in)

		closeErr := in.Close()
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", file, err)
		}

		if closeErr != nil {
			return fmt.Errorf("failed to close %s: %w", file, closeErr)
		}

		fmt.Printf("imported %q (%d rows, %d columns) for %s\n", w.Name, w.NRows, w.NCols, user)
	}

	return nil
}
