// Command precogsd serves the fact grounding API: canonical snapshots,
// anchored fact ingestion, and validation reports over HTTP, with an
// optional MCP stdio transport for agent access.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	gocache "github.com/patrickmn/go-cache"
	_ "modernc.org/sqlite"

	"github.com/malwarescan/precogs-api-sub001/anchor"
	"github.com/malwarescan/precogs-api-sub001/dbopen"
	"github.com/malwarescan/precogs-api-sub001/grounding"
	"github.com/malwarescan/precogs-api-sub001/obs"
	"github.com/malwarescan/precogs-api-sub001/pagetext"
	"github.com/malwarescan/precogs-api-sub001/shield"
)

func main() {
	port := env("PORT", "8086")
	dbPath := env("DB_PATH", "db/precogs.db")
	configPath := env("CONFIG", "")
	mcpTransport := env("MCP_TRANSPORT", "")
	logLevel := env("LOG_LEVEL", "info")

	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := resolveConfig(configPath, dbPath)
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	svc, err := grounding.New(cfg, logger)
	if err != nil {
		slog.Error("grounding service", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	// MCP stdio mode: serve tools over stdin/stdout instead of HTTP.
	if mcpTransport == "stdio" {
		srv := mcp.NewServer(&mcp.Implementation{Name: "precogs", Version: "1.0.0"}, nil)
		svc.RegisterMCP(srv)
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			slog.Error("mcp stdio", "error", err)
			os.Exit(1)
		}
		return
	}

	api := &apiServer{
		svc:       svc,
		extractor: pagetext.New(),
		reports:   gocache.New(cfg.Validation.ReportCacheTTL, time.Minute),
	}

	// Optional telemetry database: event trail, metrics, heartbeat.
	if obsPath := env("OBS_DB", ""); obsPath != "" {
		obsDB, err := dbopen.Open(obsPath, dbopen.WithMkdirAll())
		if err != nil {
			slog.Error("telemetry db", "error", err)
			os.Exit(1)
		}
		defer obsDB.Close()
		if err := obs.Init(obsDB); err != nil {
			slog.Error("telemetry schema", "error", err)
			os.Exit(1)
		}
		api.events = obs.NewEventLog(obsDB)
		api.metrics = obs.NewMetrics(obsDB, 100, 5*time.Second)
		defer api.metrics.Close()

		hb := obs.NewHeartbeat(obsDB, "precogsd", 15*time.Second)
		hb.Start(ctx)
		defer hb.Stop()
	}

	r := chi.NewRouter()
	r.Use(shield.MaxBody(8 << 20)) // raw page HTML can be large
	r.Use(shield.NewRateLimiter(50, 100).Middleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Put("/snapshots", api.putSnapshot)
		r.Get("/snapshots", api.listSnapshots)
		r.Get("/snapshot", api.getSnapshot)
		r.Post("/facts/ingest", api.ingestFact)
		r.Get("/facts", api.latestFacts)
		r.Get("/facts/history", api.factHistory)
		r.Post("/facts/backfill", api.backfill)
		r.Get("/validate", api.validate)
		r.Post("/validate/sweep", api.sweep)
		r.Get("/runs", api.validationRuns)
		r.Get("/stats", api.stats)
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("precogsd: listening", "port", port, "db", cfg.DBPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("http server", "error", err)
		os.Exit(1)
	}
}

func resolveConfig(configPath, dbPath string) (*grounding.Config, error) {
	if configPath != "" {
		return grounding.LoadConfigFile(configPath)
	}
	return &grounding.Config{DBPath: dbPath}, nil
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type apiServer struct {
	svc       *grounding.Service
	extractor *pagetext.Extractor
	reports   *gocache.Cache
	events    *obs.EventLog
	metrics   *obs.Metrics
}

func (a *apiServer) recordEvent(ctx context.Context, e obs.Event) {
	if a.events != nil {
		a.events.Record(ctx, e)
	}
}

func (a *apiServer) count(name string) {
	if a.metrics != nil {
		a.metrics.Count(name, 1)
	}
}

// putSnapshot stores the canonical text for a page. Callers either supply
// canonical_text directly or raw_html to be run through the extractor.
func (a *apiServer) putSnapshot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Domain           string `json:"domain"`
		SourceURL        string `json:"source_url"`
		ExtractionMethod string `json:"extraction_method"`
		CanonicalText    string `json:"canonical_text"`
		RawHTML          string `json:"raw_html"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}

	text := req.CanonicalText
	method := req.ExtractionMethod
	if text == "" && req.RawHTML != "" {
		res, err := a.extractor.Extract(req.RawHTML, req.SourceURL)
		if err != nil {
			writeError(w, errStatus(err), err)
			return
		}
		text = res.CanonicalText
		method = pagetext.Method
	}

	snap, err := a.svc.PutSnapshot(r.Context(), req.Domain, req.SourceURL, method, text)
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	// The prior generation's report no longer describes this page.
	a.reports.Delete(reportKey(req.Domain, req.SourceURL))
	a.recordEvent(r.Context(), obs.Event{
		EventType: obs.EventSnapshotStored,
		Domain:    req.Domain,
		SourceURL: req.SourceURL,
		SubjectID: snap.ExtractionTextHash,
		Success:   true,
	})
	a.count("snapshots_stored")
	writeJSON(w, 200, snap)
}

func (a *apiServer) getSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := a.svc.GetSnapshot(r.Context(), r.URL.Query().Get("domain"), r.URL.Query().Get("url"))
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	writeJSON(w, 200, snap)
}

func (a *apiServer) listSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := a.svc.Snapshots(r.Context())
	if err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, snaps)
}

func (a *apiServer) ingestFact(w http.ResponseWriter, r *http.Request) {
	var cand grounding.FactCandidate
	if err := json.NewDecoder(r.Body).Decode(&cand); err != nil {
		writeError(w, 400, err)
		return
	}
	res, err := a.svc.IngestFact(r.Context(), &cand)
	if err != nil {
		if errors.Is(err, grounding.ErrRevisionConflict) {
			a.recordEvent(r.Context(), obs.Event{
				EventType: obs.EventRevisionConflict,
				Domain:    cand.Domain,
				SourceURL: cand.SourceURL,
			})
		}
		writeError(w, errStatus(err), err)
		return
	}
	a.recordEvent(r.Context(), obs.Event{
		EventType: obs.EventFactIngested,
		Domain:    cand.Domain,
		SourceURL: cand.SourceURL,
		SubjectID: res.FactID,
		Success:   true,
	})
	a.count("facts_ingested")
	status := 200
	if res.IsNewRevision {
		status = 201
	}
	writeJSON(w, status, res)
}

func (a *apiServer) latestFacts(w http.ResponseWriter, r *http.Request) {
	facts, err := a.svc.LatestFacts(r.Context(), r.URL.Query().Get("source_url"))
	if err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, facts)
}

func (a *apiServer) factHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	history, err := a.svc.FactHistory(r.Context(), q.Get("source_url"), q.Get("slot_id"))
	if err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, history)
}

func (a *apiServer) backfill(w http.ResponseWriter, r *http.Request) {
	res, err := a.svc.BackfillEvidenceTypes(r.Context())
	if err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, res)
}

// validate re-checks a page's facts. Reports are cached briefly so agent
// swarms polling the same page do not re-run validation on every call.
func (a *apiServer) validate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	domain, url := q.Get("domain"), q.Get("url")

	key := reportKey(domain, url)
	if cached, ok := a.reports.Get(key); ok {
		writeJSON(w, 200, cached.(*grounding.Report))
		return
	}

	start := time.Now()
	report, err := a.svc.Validate(r.Context(), domain, url)
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	if a.metrics != nil {
		a.metrics.Observe("validate_duration", time.Since(start))
	}
	a.recordEvent(r.Context(), obs.Event{
		EventType: obs.EventValidationRun,
		Domain:    domain,
		SourceURL: url,
		Success:   report.Failed == 0,
	})
	a.reports.SetDefault(key, report)
	writeJSON(w, 200, report)
}

func (a *apiServer) sweep(w http.ResponseWriter, r *http.Request) {
	results, err := a.svc.Sweep(r.Context())
	if err != nil {
		writeError(w, 500, err)
		return
	}
	a.reports.Flush()
	writeJSON(w, 200, results)
}

func (a *apiServer) validationRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	fmt.Sscanf(q.Get("limit"), "%d", &limit)
	runs, err := a.svc.ValidationRuns(r.Context(), q.Get("source_url"), limit)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, runs)
}

func (a *apiServer) stats(w http.ResponseWriter, r *http.Request) {
	st, err := a.svc.Stats(r.Context())
	if err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, st)
}

func reportKey(domain, url string) string { return domain + "|" + url }

// errStatus maps service errors to HTTP status codes.
func errStatus(err error) int {
	switch {
	case errors.Is(err, anchor.ErrMalformed),
		errors.Is(err, anchor.ErrRange),
		errors.Is(err, grounding.ErrInvalidInput):
		return 400
	case errors.Is(err, grounding.ErrSnapshotNotFound):
		return 404
	case errors.Is(err, grounding.ErrRevisionConflict):
		return 409
	case errors.Is(err, pagetext.ErrNoContent):
		return 422
	default:
		return 500
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
