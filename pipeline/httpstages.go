package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hexquarry/battle/iox"
	"github.com/hexquarry/battle/types"
)

// HTTPConfig configures the three HTTP-backed pipeline collaborators.
// Each URL is optional; a client built with an empty URL simply fails
// its call with ErrInvalidRequest.
type HTTPConfig struct {
	ImageURL    string
	VisionURL   string
	AnimatorURL string
	APIKey      string
	Timeout     time.Duration
	Retries     int
}

func (c HTTPConfig) client() *http.Client {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// httpStatusError carries the response status code so the retry loop can
// classify it the same way the stage-error taxonomy does.
type httpStatusError struct {
	code int
	body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.code, e.body)
}

// doWithRetry performs build/send/read once per attempt, retrying while
// classify(err) names a retryable category, with exponential backoff.
// Returns the last raw (unwrapped) error so the caller's single
// Stages.Run wrap point stays the only place a StageError is minted.
func doWithRetry(ctx context.Context, client *http.Client, retries int, build func() (*http.Request, error)) ([]byte, error) {
	var lastErr error
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := build()
		if err != nil {
			return nil, err
		}

		body, err := doRequest(client, req)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !retryable[classify(err)] {
			return nil, lastErr
		}
	}

	return nil, lastErr
}

func doRequest(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer iox.DiscardClose(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &httpStatusError{code: resp.StatusCode, body: string(body)}
	}
	return body, nil
}

func setCommonHeaders(req *http.Request, apiKey, contentType string) {
	req.Header.Set("Content-Type", contentType)
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

// HTTPImageService generates a base sprite by POSTing the generation
// request to an external image model endpoint and reading back the raw
// image bytes.
type HTTPImageService struct {
	cfg    HTTPConfig
	client *http.Client
}

func NewHTTPImageService(cfg HTTPConfig) *HTTPImageService {
	return &HTTPImageService{cfg: cfg, client: cfg.client()}
}

func (s *HTTPImageService) GenerateBase(ctx context.Context, req types.GenerationRequest) ([]byte, error) {
	if s.cfg.ImageURL == "" {
		return nil, ErrInvalidRequest
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	return doWithRetry(ctx, s.client, s.cfg.Retries, func() (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.ImageURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		setCommonHeaders(httpReq, s.cfg.APIKey, "application/json")
		return httpReq, nil
	})
}

// HTTPVisionService analyzes a rendered sprite by POSTing its raw bytes
// to an external vision-analysis endpoint and decoding the JSON
// attribute payload it returns.
type HTTPVisionService struct {
	cfg    HTTPConfig
	client *http.Client
}

func NewHTTPVisionService(cfg HTTPConfig) *HTTPVisionService {
	return &HTTPVisionService{cfg: cfg, client: cfg.client()}
}

func (s *HTTPVisionService) Analyze(ctx context.Context, sprite []byte) (map[string]any, error) {
	if s.cfg.VisionURL == "" {
		return nil, ErrInvalidRequest
	}

	body, err := doWithRetry(ctx, s.client, s.cfg.Retries, func() (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.VisionURL, bytes.NewReader(sprite))
		if err != nil {
			return nil, err
		}
		setCommonHeaders(httpReq, s.cfg.APIKey, "application/octet-stream")
		return httpReq, nil
	})
	if err != nil {
		return nil, err
	}

	var analysis map[string]any
	if err := json.Unmarshal(body, &analysis); err != nil {
		return nil, err
	}
	return analysis, nil
}

// animatorRequest is the envelope posted to the animator endpoint; the
// base sprite travels as base64 so the whole request is a single JSON
// body like the image/vision calls.
type animatorRequest struct {
	Direction string `json:"direction"`
	Animation string `json:"animation"`
	Sprite    string `json:"sprite_base64"`
}

// HTTPAnimatorService renders one directional animation frame per call
// against an external animation-rendering endpoint.
type HTTPAnimatorService struct {
	cfg    HTTPConfig
	client *http.Client
}

func NewHTTPAnimatorService(cfg HTTPConfig) *HTTPAnimatorService {
	return &HTTPAnimatorService{cfg: cfg, client: cfg.client()}
}

func (s *HTTPAnimatorService) Render(ctx context.Context, baseSprite []byte, dir Direction, anim Animation) ([]byte, error) {
	if s.cfg.AnimatorURL == "" {
		return nil, ErrInvalidRequest
	}

	payload, err := json.Marshal(animatorRequest{
		Direction: string(dir),
		Animation: string(anim),
		Sprite:    base64.StdEncoding.EncodeToString(baseSprite),
	})
	if err != nil {
		return nil, err
	}

	return doWithRetry(ctx, s.client, s.cfg.Retries, func() (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.AnimatorURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		setCommonHeaders(httpReq, s.cfg.APIKey, "application/json")
		return httpReq, nil
	})
}

var (
	_ ImageService    = (*HTTPImageService)(nil)
	_ VisionService   = (*HTTPVisionService)(nil)
	_ AnimatorService = (*HTTPAnimatorService)(nil)
)
