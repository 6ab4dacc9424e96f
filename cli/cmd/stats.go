package cmd

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hexquarry/battle/cli/render"
	"github.com/hexquarry/battle/cli/statsview"
	"github.com/hexquarry/battle/iox"
)

// StatsCommand scrapes a running daemon's Prometheus exposition endpoint
// and renders the queue stats it carries.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show aggregated runtime statistics",
		Flags: append(TUIReadOnlyFlags(),
			&cli.StringFlag{
				Name:  "url",
				Usage: "Metrics endpoint URL",
				Value: "http://localhost:9090/metrics",
			},
		),
		Action: statsAction,
	}
}

func statsAction(c *cli.Context) error {
	body, err := fetchMetrics(c.String("url"))
	if err != nil {
		return fmt.Errorf("failed to fetch metrics: %w", err)
	}
	view := statsview.Parse(body)

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI("stats", view)
	}
	return r.Render(view)
}

func fetchMetrics(url string) (string, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return "", err
	}
	defer iox.DiscardClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
