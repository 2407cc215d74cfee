package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/goccy/go-json"
	"github.com/hrflow/hrflow/pkg/condition"
	"github.com/hrflow/hrflow/pkg/engine"
	"github.com/hrflow/hrflow/pkg/graph"
	"github.com/hrflow/hrflow/pkg/models"
	cli "github.com/urfave/cli/v3"
)

var errMissingFile = errors.New("a workflow graph file is required")

func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate a workflow graph file",
		ArgsUsage: "<graph.json>",
		Action: func(_ context.Context, command *cli.Command) error {
			g, err := loadGraph(command.Args().First())
			if err != nil {
				return err
			}

			if err := graph.Validate(g, condition.NewEvaluator()); err != nil {
				return err
			}

			_, err = fmt.Fprintf(command.Root().Writer, "graph is valid: %d nodes\n", g.Len())

			return err
		},
	}
}

func PreviewCommand() *cli.Command {
	return &cli.Command{
		Name:      "preview",
		Usage:     "Dry-run a workflow graph against a payload, approving every approval",
		ArgsUsage: "<graph.json>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "payload",
				Usage: "JSON payload the conditions are evaluated against",
				Value: "{}",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			g, err := loadGraph(command.Args().First())
			if err != nil {
				return err
			}

			var payload map[string]any
			if err := json.Unmarshal([]byte(command.String("payload")), &payload); err != nil {
				return fmt.Errorf("invalid payload: %w", err)
			}

			preview, err := previewGraph(ctx, g, payload)
			if err != nil {
				return err
			}

			return writeJSON(command.Root().Writer, preview)
		},
	}
}

func previewGraph(ctx context.Context, g *models.Graph, payload map[string]any) (*engine.Preview, error) {
	e := engine.New(slog.New(slog.DiscardHandler), condition.NewEvaluator())

	return e.Preview(ctx, g, payload)
}

func loadGraph(path string) (*models.Graph, error) {
	if path == "" {
		return nil, errMissingFile
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}

	return graph.Decode(raw)
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(data))

	return err
}
