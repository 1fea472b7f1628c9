// Command emgworker is the process entrypoint: it wires configuration,
// telemetry, the artifact store, analytics cache, resource manager, and
// orchestrator together, then serves the ingest surface (§6.1) and the
// session status websocket (C10) until interrupted.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/clinictrack/emgcore/internal/cache"
	"github.com/clinictrack/emgcore/internal/config"
	"github.com/clinictrack/emgcore/internal/emgerrors"
	"github.com/clinictrack/emgcore/internal/ingest"
	"github.com/clinictrack/emgcore/internal/orchestrator"
	"github.com/clinictrack/emgcore/internal/ratelimit"
	"github.com/clinictrack/emgcore/internal/resources"
	"github.com/clinictrack/emgcore/internal/status"
	"github.com/clinictrack/emgcore/internal/store"
	"github.com/clinictrack/emgcore/internal/telemetry/events"
	"github.com/clinictrack/emgcore/internal/telemetry/logging"
	"github.com/clinictrack/emgcore/internal/telemetry/metrics"
	"github.com/clinictrack/emgcore/pkg/models"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (defaults apply if absent)")
	addr := flag.String("addr", ":8080", "HTTP listen address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := logging.New(slog.Default())
	metricsProvider := metrics.NewFromBackend(cfg.MetricsBackend)
	bus := events.NewBus(metricsProvider)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dataStore, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer dataStore.Close()
	if err := dataStore.Migrate(ctx); err != nil {
		log.Fatalf("migrate store: %v", err)
	}

	analyticsCache, err := cache.Open(ctx, cfg.RedisURL, 15*time.Minute)
	if err != nil {
		log.Fatalf("open cache: %v", err)
	}
	defer analyticsCache.Close()

	resourceMgr, err := resources.NewManager(resources.Config{
		CacheCapacity: 256,
		MaxInFlight:   cfg.WorkerCount,
	})
	if err != nil {
		log.Fatalf("create resource manager: %v", err)
	}
	defer resourceMgr.Close()

	downloader := NewObjectStorageDownloader(cfg.ObjectStorageBaseURL)
	scopedDownloader := orchestrator.NewScopedDownloader(downloader, resourceMgr)

	orch := orchestrator.New(dataStore, analyticsCache, scopedDownloader, logger, bus)

	pool := orchestrator.NewPool(orch, orchestrator.PoolConfig{
		Workers:    cfg.WorkerCount,
		BufferSize: cfg.WorkerCount * 16,
	})
	defer pool.Close()

	limiter := ratelimit.NewAdaptiveRateLimiter(ratelimit.Defaults())
	defer limiter.Close()

	statusHub, err := status.NewHub(bus)
	if err != nil {
		log.Fatalf("create status hub: %v", err)
	}
	go statusHub.Run()
	defer statusHub.Close()

	limits := ingest.Limits{MaxUploadBytes: cfg.MaxUploadBytes, Bucket: cfg.IngestBucket, RequiredExt: ".c3d"}

	mux := http.NewServeMux()
	if promProvider, ok := metricsProvider.(*metrics.PrometheusProvider); ok {
		mux.Handle("/metrics", promProvider.MetricsHandler())
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/webhook", webhookHandler(limits, cfg.WebhookHMACKey, limiter, orch, pool, scopedDownloader, logger))
	mux.HandleFunc("/upload", uploadHandler(limits, limiter, orch, logger))
	mux.Handle("/ws/status", statusHub)

	srv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()
	log.Printf("emgworker listening on %s", *addr)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt)
	<-sigCh
	log.Println("signal received; shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}

// webhookHandler implements §6.1's webhook-triggered ingest mode: verify the
// HMAC signature when a secret is configured, normalize, validate in order,
// then submit to the worker pool and return {success, message, processing_id?} immediately
// while processing continues asynchronously.
func webhookHandler(lim ingest.Limits, hmacSecret string, limiter *ratelimit.AdaptiveRateLimiter, orch *orchestrator.Orchestrator, pool *orchestrator.Pool, downloader orchestrator.Downloader, logger logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		permit, err := limiter.Acquire(ctx, r.RemoteAddr)
		if err != nil {
			writeWebhookResponse(w, http.StatusTooManyRequests, false, "rate limited")
			return
		}
		defer permit.Release()

		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeWebhookResponse(w, http.StatusBadRequest, false, "failed to read request body")
			return
		}

		if hmacSecret != "" {
			if err := ingest.VerifySignature(hmacSecret, body, r.Header.Get("X-Webhook-Signature")); err != nil {
				writeWebhookResponse(w, http.StatusUnauthorized, false, err.Error())
				return
			}
		}

		ev, err := ingest.NormalizeWebhookPayload(body)
		if err != nil {
			writeWebhookResponse(w, http.StatusBadRequest, false, err.Error())
			return
		}
		if err := ingest.ValidateWebhookEvent(lim, ev); err != nil {
			writeWebhookResponse(w, http.StatusBadRequest, false, err.Error())
			return
		}

		// The hash dedup key (§4.7) is over file content, so the object is
		// fetched here before CreateSession — the only synchronous I/O in
		// this handler. The expensive C1-C6 pipeline run stays asynchronous,
		// submitted to the pool below, matching §6.1's "processing continues
		// asynchronously".
		raw, err := downloader.Download(ctx, ev.ObjectName)
		if err != nil {
			logger.ErrorCtx(ctx, "webhook object download failed", "error", err)
			writeWebhookResponse(w, http.StatusBadGateway, false, "failed to fetch uploaded object")
			return
		}

		session, _, err := orch.CreateSession(ctx, raw, "", "")
		if err != nil {
			logger.ErrorCtx(ctx, "create session from webhook failed", "error", err)
			writeWebhookResponse(w, http.StatusInternalServerError, false, "failed to register session")
			return
		}

		if err := pool.Submit(ctx, orchestrator.Task{SessionID: session.ID, Raw: raw, Settings: models.SessionSettings{}}); err != nil {
			writeWebhookResponse(w, http.StatusServiceUnavailable, false, "processing queue unavailable")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "message": "accepted", "processing_id": session.ID})
	}
}

// uploadHandler implements §6.1's synchronous-upload mode: validate the
// file, run the full pipeline in-process, and return the analytics document
// inline. No Session row is ever created for this path.
func uploadHandler(lim ingest.Limits, limiter *ratelimit.AdaptiveRateLimiter, orch *orchestrator.Orchestrator, logger logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		// A synchronous upload runs the full pipeline inline and holds a
		// worker goroutine for its duration, so it draws tokens weighted by
		// its declared size rather than the flat cost of a webhook ping.
		permit, err := limiter.AcquireN(ctx, r.RemoteAddr, ratelimit.CostForBytes(r.ContentLength))
		if err != nil {
			writeWebhookResponse(w, http.StatusTooManyRequests, false, "rate limited")
			return
		}
		defer permit.Release()

		if err := r.ParseMultipartForm(lim.MaxUploadBytes); err != nil {
			writeWebhookResponse(w, http.StatusBadRequest, false, "failed to parse upload: "+err.Error())
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeWebhookResponse(w, http.StatusBadRequest, false, "missing file field")
			return
		}
		defer file.Close()

		if err := ingest.ValidateUpload(lim, header.Filename, header.Size); err != nil {
			writeWebhookResponse(w, http.StatusBadRequest, false, err.Error())
			return
		}

		raw, err := io.ReadAll(file)
		if err != nil {
			writeWebhookResponse(w, http.StatusBadRequest, false, "failed to read upload")
			return
		}

		settings := models.SessionSettings{
			MVCThresholdPct:               parseFormFloat(r, "mvc_threshold_pct", 0),
			DurationThresholdMS:           int(parseFormFloat(r, "min_duration_ms", 0)),
			ExpectedContractionsPerMuscle: int(parseFormFloat(r, "expected_contractions_per_muscle", 0)),
		}

		results, err := orch.RunEphemeral("sync-upload", raw, settings, nil)
		if err != nil {
			logger.ErrorCtx(ctx, "synchronous upload processing failed", "error", err)
			writeWebhookResponse(w, http.StatusUnprocessableEntity, false, err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":   true,
			"analytics": results.Analytics,
			"scores":    results.Scores,
			"params":    results.Params,
		})
	}
}

func parseFormFloat(r *http.Request, key string, fallback float64) float64 {
	v := r.FormValue(key)
	if v == "" {
		return fallback
	}
	var f float64
	if _, err := fmt.Sscanf(v, "%g", &f); err != nil {
		return fallback
	}
	return f
}

func writeWebhookResponse(w http.ResponseWriter, status int, success bool, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": success, "message": message})
}

// objectStorageDownloader is a minimal HTTP-based Downloader: object
// storage backends exposing a signed-URL or direct-object GET endpoint are
// fetched over plain HTTP, keeping the worker free of any one storage
// vendor's SDK (§1 Non-goal: no bundled cloud-storage client).
type objectStorageDownloader struct {
	client *http.Client
	base   string
}

// NewObjectStorageDownloader returns a Downloader that resolves a fileRef
// against the configured object-storage base URL.
func NewObjectStorageDownloader(baseURL string) *objectStorageDownloader {
	return &objectStorageDownloader{client: &http.Client{Timeout: 30 * time.Second}, base: baseURL}
}

func (d *objectStorageDownloader) Download(ctx context.Context, fileRef string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.base+"/"+fileRef, nil)
	if err != nil {
		return nil, emgerrors.Processing("downloader", "build request", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, emgerrors.Processing("downloader", "fetch object", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, emgerrors.Processing("downloader", fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, emgerrors.Processing("downloader", "read object body", err)
	}
	return data, nil
}
