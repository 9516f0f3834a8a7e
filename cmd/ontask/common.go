package main

import (
	"context"
	"log/slog"

	cli "github.com/urfave/cli/v3"

	"github.com/ontask/engine/pkg/cmd"
	"github.com/ontask/engine/pkg/log"
	"github.com/ontask/engine/pkg/persistence"
	"github.com/ontask/engine/pkg/workflow"
)

// newManager wires logging, persistence, and the workflow manager for one
// command invocation. The caller must Close the returned persistence.
func newManager(ctx context.Context, command *cli.Command) (*workflow.Manager, persistence.Persistence, *slog.Logger, error) {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("ontask")

	p, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return nil, nil, nil, err
	}

	return workflow.NewManager(p, logger), p, logger, nil
}

func closePersistence(ctx context.Context, p persistence.Persistence, logger *slog.Logger) {
	err := p.Close(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
	}
}
