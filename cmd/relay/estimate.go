package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/goliatone/go-relay/progress"
	relayquery "github.com/goliatone/go-relay/query"
	"github.com/urfave/cli/v3"
)

func estimateCommand() *cli.Command {
	return &cli.Command{
		Name:      "estimate",
		Usage:     "Estimate the cost of a plan and check it against the budget",
		ArgsUsage: "[plan.json]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "daily",
				Value: progress.DefaultDailyBudget,
				Usage: "Daily budget",
			},
			&cli.IntFlag{
				Name:  "weekly",
				Value: progress.DefaultWeeklyBudget,
				Usage: "Weekly budget",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			input := io.Reader(os.Stdin)
			if path := cmd.Args().First(); path != "" && path != "-" {
				file, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("open plan: %w", err)
				}
				defer file.Close()
				input = file
			}
			budget := progress.Budget{Daily: int(cmd.Int("daily")), Weekly: int(cmd.Int("weekly"))}
			return runEstimate(ctx, input, cmd.Root().Writer, budget)
		},
	}
}

// runEstimate reads one plan document and writes the budget report as JSON.
func runEstimate(ctx context.Context, r io.Reader, w io.Writer, budget progress.Budget) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read plan: %w", err)
	}
	plan, err := progress.DecodePlan(raw)
	if err != nil {
		return err
	}
	report, err := relayquery.NewCheckBudgetQuery().Query(ctx, relayquery.CheckBudgetMessage{
		Plan:   plan,
		Budget: budget,
	})
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
