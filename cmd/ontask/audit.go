package main

import (
	"context"
	"fmt"

	cli "github.com/urfave/cli/v3"
)

func runTableAudit(ctx context.Context, command *cli.Command) error {
	manager, p, logger, err := newManager(ctx, command)
	if err != nil {
		return err
	}
	defer closePersistence(ctx, p, logger)

	statuses, err := manager.AuditTables(ctx, command.String("user"))
	if err != nil {
		return err
	}

	broken := 0

	for _, status := range statuses {
		fmt.Println(status)

		if !status.OK() {
			broken++
		}
	}

	if broken > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d workflows have table drift", broken, len(statuses)), 1)
	}

	fmt.Printf("all %d workflow tables are consistent\n", len(statuses))

	return nil
}

func runSanityCheck(ctx context.Context, command *cli.Command) error {
	manager, p, logger, err := newManager(ctx, command)
	if err != nil {
		return err
	}
	defer closePersistence(ctx, p, logger)

	issues, err := manager.SanityCheckAll(ctx, command.String("user"))
	if err != nil {
		return err
	}

	for _, issue := range issues {
		fmt.Println(issue)
	}

	if len(issues) > 0 {
		return cli.Exit(fmt.Sprintf("%d invariant violations found", len(issues)), 1)
	}

	fmt.Println("no invariant violations found")

	return nil
}
