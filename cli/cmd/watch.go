package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hexquarry/battle/cli/render"
	"github.com/hexquarry/battle/iox"
)

// watchPollInterval is how often watch re-reads the job record while
// waiting for a terminal state.
const watchPollInterval = 500 * time.Millisecond

// WatchCommand polls a job's record in the shared store until it reaches
// a terminal state, printing each observed change.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Watch a submitted job until it completes or fails",
		Flags: append(ReadOnlyFlags(),
			ConfigFlag,
			&cli.StringFlag{Name: "job-id", Required: true},
			&cli.DurationFlag{Name: "timeout", Value: 5 * time.Minute, Usage: "Give up after this long"},
		),
		Action: watchAction,
	}
}

func watchAction(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	handles, err := buildQueueHandles(cfg)
	if err != nil {
		return err
	}
	defer iox.DiscardClose(handles.Store)

	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for the watch command", 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
	defer cancel()

	jobID := c.String("job-id")
	var lastState string
	ticker := time.NewTicker(watchPollInterval)
	defer ticker.Stop()

	for {
		job, err := handles.Registry.Get(ctx, jobID)
		if err != nil {
			return fmt.Errorf("failed to read job %s: %w", jobID, err)
		}

		if string(job.State) != lastState {
			if err := r.Render(job); err != nil {
				return err
			}
			lastState = string(job.State)
		}

		if job.Terminal() {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for job %s: %w", jobID, ctx.Err())
		case <-ticker.C:
		}
	}
}
