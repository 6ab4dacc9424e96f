// Package main provides the quarry-runtime daemon entrypoint.
//
// It wires the admission path (submission boundary, §6), the worker pool,
// and a Prometheus metrics listener into one long-running process. The
// admission path's UserLimits cache (§4.2) lives exactly once per daemon
// process and is shared between the /submit handler and the worker pool
// that invalidates it on terminal transitions, so a freed slot becomes
// usable immediately instead of on a per-request cache that never
// persists between calls. The quarry CLI's `submit` command is a thin
// HTTP client of /submit, the same way `quarry stats` is a client of
// /metrics; `watch` still reads job records directly off the shared
// store, since that's read-only inspection, not admission.
// Combat matches have no daemon component — a match runs entirely inside
// `quarry combat`'s own process per spec.md §4.9's single-owner rule.
//
// Usage:
//
//	quarry-runtime serve [--config path] [--addr :9090]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hexquarry/battle/adapter"
	redisadapter "github.com/hexquarry/battle/adapter/redis"
	"github.com/hexquarry/battle/adapter/webhook"
	"github.com/hexquarry/battle/config"
	"github.com/hexquarry/battle/log"
	"github.com/hexquarry/battle/metrics"
	"github.com/hexquarry/battle/pipeline"
	"github.com/hexquarry/battle/queue"
	"github.com/hexquarry/battle/storage"
	"github.com/hexquarry/battle/store"
	memorystore "github.com/hexquarry/battle/store/memory"
	redisstore "github.com/hexquarry/battle/store/redis"
	"github.com/hexquarry/battle/types"
)

// avgProcessingTime seeds SubmissionResult.EstimatedWait; spec.md's
// configuration table has no option for it, so it's a fixed estimate
// rather than something an operator tunes.
const avgProcessingTime = 30 * time.Second

// userLimitsCacheTTL and monitorCacheTTL are the admission-path cache
// lifetimes named in spec.md §4.2/§4.3.
const (
	userLimitsCacheTTL = 5 * time.Second
	monitorCacheTTL    = 1 * time.Second
)

func main() {
	app := &cli.App{
		Name:           "quarry-runtime",
		Usage:          "Sprite generation worker pool and metrics daemon",
		Version:        types.Version,
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			serveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run admission, the worker pool, and the metrics endpoint until signaled to stop",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Path to YAML config file"},
			&cli.StringFlag{Name: "addr", Value: ":9090", Usage: "Listen address for the /metrics and /submit endpoints"},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := log.NewLogger(log.Context{})

	s, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to build backing store: %w", err)
	}
	defer func() { _ = s.Close() }()

	durable, err := buildStorage(c.Context, cfg)
	if err != nil {
		return fmt.Errorf("failed to build durable storage: %w", err)
	}
	defer func() { _ = durable.Close() }()

	completionAdapter, err := buildAdapter(cfg)
	if err != nil {
		return fmt.Errorf("failed to build completion adapter: %w", err)
	}
	if completionAdapter != nil {
		defer func() { _ = completionAdapter.Close() }()
	}

	registry := queue.NewRegistry(s)
	collector := metrics.NewCollector()

	// Built once per daemon process so the admission cache (§4.2) and
	// the one-shot-warning epoch (§4.3) actually persist across
	// submissions, rather than being rebuilt cold on every call.
	userLimits := queue.NewUserLimits(registry, userLimitsCacheTTL)
	monitor := queue.NewMonitor(registry, monitorCacheTTL, cfg.Queue.WarningThreshold, cfg.Queue.CriticalThreshold)
	submitter := queue.NewSubmitter(s, registry, userLimits, monitor, collector, queue.Config{
		CacheTTL:          time.Duration(cfg.Cache.TTLDays) * 24 * time.Hour,
		DedupWindow:       time.Duration(cfg.Dedup.WindowSeconds) * time.Second,
		MaxJobsPerUser:    cfg.Queue.MaxJobsPerUser,
		SystemQueueLimit:  cfg.Queue.SystemQueueLimit,
		WarningThreshold:  cfg.Queue.WarningThreshold,
		WorkerConcurrency: cfg.Queue.WorkerConcurrency,
		AvgProcessingTime: avgProcessingTime,
	})

	stages := pipeline.Stages{
		Image:    pipeline.NewHTTPImageService(servicesHTTPConfig(cfg.Services)),
		Vision:   pipeline.NewHTTPVisionService(servicesHTTPConfig(cfg.Services)),
		Animator: pipeline.NewHTTPAnimatorService(servicesHTTPConfig(cfg.Services)),
	}
	retry := pipeline.RetryPolicy{
		MaxRetries:        cfg.Retry.MaxRetries,
		InitialDelay:      cfg.Retry.BackoffDelay.Duration,
		BackoffMultiplier: cfg.Retry.BackoffMultiplier,
	}
	hub := pipeline.NewProgressHub()
	cacheTTL := time.Duration(cfg.Cache.TTLDays) * 24 * time.Hour

	pool := pipeline.NewWorkerPool(s, registry, hub, stages, collector, logger, retry, cacheTTL, userLimits)
	pool.OnComplete = onJobComplete(c.Context, logger, durable, completionAdapter)

	exporter := metrics.NewExporter()
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = w.Write([]byte(exporter.Export(collector.Snapshot())))
	})
	mux.HandleFunc("/submit", handleSubmit(submitter))
	server := &http.Server{Addr: c.String("addr"), Handler: mux}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	go func() {
		logger.Info("admission and metrics endpoints listening", map[string]any{"addr": c.String("addr")})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", map[string]any{"error": err.Error()})
		}
	}()

	pool.Run(ctx, cfg.Queue.WorkerConcurrency)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)

	return nil
}

func onJobComplete(ctx context.Context, logger *log.Logger, durable storage.Store, completionAdapter adapter.Adapter) func(*types.Job) {
	return func(job *types.Job) {
		if job.State == types.JobCompleted && job.Result != nil {
			if err := durable.Put(ctx, job.Fingerprint, job.Result); err != nil {
				logger.Error("failed to persist result durably", map[string]any{"job_id": job.JobID, "error": err.Error()})
			}
		}

		if completionAdapter == nil {
			return
		}

		event := &adapter.CompletionEvent{
			ContractVersion: types.ContractVersion,
			EventType:       adapter.EventJobCompleted,
			Timestamp:       time.Now().UTC().Format(time.RFC3339),
			JobID:           job.JobID,
			SubmitterID:     job.SubmitterID,
			Fingerprint:     job.Fingerprint,
			JobState:        string(job.State),
		}
		if job.StartedAt != nil && job.FinishedAt != nil {
			event.DurationMs = job.FinishedAt.Sub(*job.StartedAt).Milliseconds()
		}
		if err := completionAdapter.Publish(ctx, event); err != nil {
			logger.Error("failed to publish completion event", map[string]any{"job_id": job.JobID, "error": err.Error()})
		}
	}
}

// submitRequestBody is the /submit wire request: {submitter_id, request}
// per spec.md §6's submission boundary.
type submitRequestBody struct {
	SubmitterID string                  `json:"submitter_id"`
	Request     types.GenerationRequest `json:"request"`
}

// submitErrorBody is the /submit wire error response for a rejected
// submission.
type submitErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// handleSubmit adapts queue.Submitter.Submit to the submission boundary
// of spec.md §6: 202 on a newly admitted (or deduped, still in-flight)
// job, 200 on a cache hit, 400 on validation failure, 429 on user-limit
// or system-queue-full rejection, 503 on a retriable admission-path
// outage (work-queue or user-limit-count-query failure).
func handleSubmit(submitter *queue.Submitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var body submitRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeSubmitJSON(w, http.StatusBadRequest, submitErrorBody{Kind: "InvalidRequest", Message: err.Error()})
			return
		}

		result, err := submitter.Submit(r.Context(), body.SubmitterID, body.Request)
		if err != nil {
			var admissionErr *queue.AdmissionError
			if !errors.As(err, &admissionErr) {
				writeSubmitJSON(w, http.StatusInternalServerError, submitErrorBody{Kind: "Unknown", Message: err.Error()})
				return
			}
			writeSubmitJSON(w, admissionStatusCode(admissionErr.Kind), submitErrorBody{Kind: admissionErr.Kind, Message: admissionErr.Message})
			return
		}

		status := http.StatusAccepted
		if result.CacheHit {
			status = http.StatusOK
		}
		writeSubmitJSON(w, status, result)
	}
}

// admissionStatusCode maps an AdmissionError.Kind to the status code
// spec.md §6 documents for synchronous admission rejections. Kinds not
// named there (EnqueueFailed, UserLimitCheckFailed) are the work-queue
// and user-limit-query outages §4.1/§4.2 call retriable, so they map to
// 503 rather than to any of the spec's caller-fatal codes.
func admissionStatusCode(kind string) int {
	switch kind {
	case "InvalidRequest":
		return http.StatusBadRequest
	case "UserLimitExceeded", "SystemQueueFull":
		return http.StatusTooManyRequests
	case "EnqueueFailed", "UserLimitCheckFailed":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeSubmitJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Defaults()
		return &cfg, nil
	}
	return config.Load(path)
}

func buildStore(cfg *config.Config) (store.Store, error) {
	if cfg.Redis.URL != "" {
		return redisstore.New(redisstore.Config{URL: cfg.Redis.URL})
	}
	return memorystore.New(), nil
}

func buildStorage(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.Storage.Backend == "s3" {
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:       cfg.Storage.Bucket,
			Prefix:       cfg.Storage.Prefix,
			Region:       cfg.Storage.Region,
			Endpoint:     cfg.Storage.Endpoint,
			UsePathStyle: cfg.Storage.S3PathStyle,
		})
	}
	return storage.NewMemoryStore(), nil
}

func buildAdapter(cfg *config.Config) (adapter.Adapter, error) {
	switch cfg.Adapter.Type {
	case "webhook":
		retries := webhook.DefaultRetries
		if cfg.Adapter.Retries != nil {
			retries = *cfg.Adapter.Retries
		}
		return webhook.New(webhook.Config{
			URL:     cfg.Adapter.URL,
			Headers: cfg.Adapter.Headers,
			Timeout: cfg.Adapter.Timeout.Duration,
			Retries: retries,
		})
	case "redis":
		retries := redisadapter.DefaultRetries
		if cfg.Adapter.Retries != nil {
			retries = *cfg.Adapter.Retries
		}
		return redisadapter.New(redisadapter.Config{
			URL:     cfg.Adapter.URL,
			Channel: cfg.Adapter.Channel,
			Timeout: cfg.Adapter.Timeout.Duration,
			Retries: retries,
		})
	default:
		return nil, nil
	}
}

func servicesHTTPConfig(s config.ServicesConfig) pipeline.HTTPConfig {
	return pipeline.HTTPConfig{
		ImageURL:    s.ImageURL,
		VisionURL:   s.VisionURL,
		AnimatorURL: s.AnimatorURL,
		APIKey:      s.APIKey,
		Timeout:     s.Timeout.Duration,
	}
}
