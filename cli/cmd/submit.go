package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hexquarry/battle/cli/render"
	"github.com/hexquarry/battle/iox"
	"github.com/hexquarry/battle/types"
)

// submitHTTPTimeout bounds the round trip to the daemon's /submit
// endpoint; admission itself is synchronous and fast (§4.1), so a
// generous timeout here is only guarding against a hung connection.
const submitHTTPTimeout = 10 * time.Second

// SubmitCommand posts a sprite generation request to a running
// quarry-runtime daemon's admission endpoint.
func SubmitCommand() *cli.Command {
	return &cli.Command{
		Name:  "submit",
		Usage: "Submit a sprite generation request",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{Name: "url", Value: "http://localhost:9090/submit", Usage: "Daemon submission endpoint URL"},
			&cli.StringFlag{Name: "submitter-id", Required: true, Usage: "Caller identity for dedup/rate limiting"},
			&cli.StringFlag{Name: "type", Required: true, Usage: "character or creature"},
			&cli.StringFlag{Name: "style", Required: true, Usage: "Art style"},
			&cli.StringFlag{Name: "action", Usage: "Action/pose hint"},
			&cli.StringFlag{Name: "description", Required: true, Usage: "Text prompt describing the sprite"},
			&cli.IntFlag{Name: "width", Value: 64, Usage: "Sprite canvas width"},
			&cli.IntFlag{Name: "height", Value: 64, Usage: "Sprite canvas height"},
			&cli.Float64Flag{Name: "text-guidance-scale", Usage: "Optional guidance scale override [1.0, 20.0]"},
			&cli.StringFlag{Name: "raw-image", Usage: "Path to a reference image file"},
		),
		Action: submitAction,
	}
}

// submitRequestBody mirrors quarry-runtime's wire request for /submit.
type submitRequestBody struct {
	SubmitterID string                  `json:"submitter_id"`
	Request     types.GenerationRequest `json:"request"`
}

// submitErrorBody mirrors quarry-runtime's wire error response for a
// rejected submission.
type submitErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func submitAction(c *cli.Context) error {
	req := types.GenerationRequest{
		Type:              types.SpriteType(c.String("type")),
		Style:             c.String("style"),
		Action:            c.String("action"),
		Description:       c.String("description"),
		Size:              types.Dimensions{Width: c.Int("width"), Height: c.Int("height")},
		TextGuidanceScale: c.Float64("text-guidance-scale"),
	}
	if path := c.String("raw-image"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read --raw-image: %w", err)
		}
		req.RawImage = data
	}

	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for the submit command", 1)
	}

	result, err := postSubmit(c.String("url"), c.String("submitter-id"), req)
	if err != nil {
		return err
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(result)
}

// postSubmit posts body to the daemon's /submit endpoint and decodes its
// JSON response, mapping a non-2xx status to a descriptive error.
func postSubmit(url, submitterID string, req types.GenerationRequest) (*types.SubmissionResult, error) {
	payload, err := json.Marshal(submitRequestBody{SubmitterID: submitterID, Request: req})
	if err != nil {
		return nil, fmt.Errorf("failed to encode submission: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), submitHTTPTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build submission request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to reach %s: %w", url, err)
	}
	defer iox.DiscardClose(resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var result types.SubmissionResult
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, fmt.Errorf("failed to decode submission response: %w", err)
		}
		return &result, nil
	}

	var errBody submitErrorBody
	if err := json.NewDecoder(resp.Body).Decode(&errBody); err != nil {
		return nil, fmt.Errorf("submission rejected with status %d", resp.StatusCode)
	}
	return nil, fmt.Errorf("%s: %s", errBody.Kind, errBody.Message)
}
