package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"vectorinsight/analytics"
	"vectorinsight/config"
	"vectorinsight/fidelity"
	"vectorinsight/internal/store"
	"vectorinsight/metrics"
	"vectorinsight/queue"
	"vectorinsight/report"
)

// Runner accepts a pipeline run request.
type Runner interface {
	Enqueue(trigger string) bool
}

// Router builds HTTP handlers for /api and /ops.
type Router struct {
	cfg       config.Config
	store     *store.Store
	analytics *analytics.Service
	fidelity  *fidelity.Service
	mx        *metrics.Metrics
	q         *queue.Queue
	runner    Runner
}

func NewRouter(cfg config.Config, st *store.Store, an *analytics.Service, fd *fidelity.Service, mx *metrics.Metrics, q *queue.Queue, runner Runner) *Router {
	return &Router{cfg: cfg, store: st, analytics: an, fidelity: fd, mx: mx, q: q, runner: runner}
}

func (r *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/ops/health", r.health)
	mux.HandleFunc("/ops/status", r.status)
	mux.HandleFunc("/ops/run", r.runPipeline)
	mux.HandleFunc("/api/metrics", r.metricsSnapshot)
	mux.HandleFunc("/api/metrics/monthly", r.monthlyMetrics)
	mux.HandleFunc("/api/fidelity", r.fidelitySnapshot)
	mux.HandleFunc("/api/report.csv", r.reportCSV)
	mux.HandleFunc("/api/collectors", r.collectors)
	mux.HandleFunc("/api/collectors/training", r.recordTraining)
}

func (r *Router) health(w http.ResponseWriter, req *http.Request) {
	if err := r.store.Health(req.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) status(w http.ResponseWriter, req *http.Request) {
	runs, err := r.store.RecentRuns(req.Context(), 10)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, map[string]any{
		"runs":    runs,
		"queue":   r.q.Stats(),
		"metrics": r.mx.Snapshot(),
		"workers": r.cfg.WorkerCount,
	})
}

func (r *Router) runPipeline(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !r.runner.Enqueue("http") {
		http.Error(w, "queue full", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	respondJSON(w, map[string]any{"status": "queued"})
}

func (r *Router) metricsSnapshot(w http.ResponseWriter, req *http.Request) {
	f, err := filterFromQuery(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	snap, err := r.analytics.Snapshot(req.Context(), f)
	if err != nil {
		if errors.Is(err, analytics.ErrInvalidFilter) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, snap)
}

func (r *Router) monthlyMetrics(w http.ResponseWriter, req *http.Request) {
	month := req.URL.Query().Get("month")
	if !yearMonthRe.MatchString(month) {
		http.Error(w, "month must be YYYY-MM", http.StatusBadRequest)
		return
	}
	rows, err := r.store.MonthlyMetrics(req.Context(), month)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, map[string]any{"month": month, "metrics": rows})
}

func (r *Router) fidelitySnapshot(w http.ResponseWriter, req *http.Request) {
	month := req.URL.Query().Get("month")
	if !yearMonthRe.MatchString(month) {
		http.Error(w, "month must be YYYY-MM", http.StatusBadRequest)
		return
	}
	snap, err := r.fidelity.Snapshot(req.Context(), month)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, snap)
}

func (r *Router) reportCSV(w http.ResponseWriter, req *http.Request) {
	f, err := filterFromQuery(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	aggs, _, err := r.analytics.Load(req.Context(), f)
	if err != nil {
		if errors.Is(err, analytics.ErrInvalidFilter) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="vectorcam_report.csv"`)
	if err := report.WriteCSV(w, report.BuildRows(aggs)); err != nil {
		log.Printf("report stream: %v", err)
	}
}

func (r *Router) collectors(w http.ResponseWriter, req *http.Request) {
	list, err := r.store.Collectors(req.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, map[string]any{"collectors": list})
}

func (r *Router) recordTraining(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Name         string `json:"name"`
		LastTrained  string `json:"last_trained"`
		TrainingType string `json:"training_type"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	if err := r.store.RecordTraining(req.Context(), body.Name, body.LastTrained, body.TrainingType); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	respondJSON(w, map[string]any{"status": "recorded"})
}

var yearMonthRe = regexp.MustCompile(`^\d{4}-\d{2}$`)

// filterFromQuery parses the shared filter parameters: from and to as
// YYYY-MM-DD dates, district, method and species as comma separated lists.
func filterFromQuery(req *http.Request) (analytics.Filter, error) {
	q := req.URL.Query()
	var f analytics.Filter
	if v := q.Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, fmt.Errorf("bad from date %q", v)
		}
		f.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, fmt.Errorf("bad to date %q", v)
		}
		f.To = &t
	}
	f.Districts = splitList(q.Get("district"))
	f.Methods = splitList(q.Get("method"))
	f.Species = splitList(q.Get("species"))
	return f, nil
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Serve runs the HTTP server on the configured port until the context ends,
// then shuts it down gracefully.
func Serve(ctx context.Context, cfg config.Config, mux *http.ServeMux) error {
	srv := &http.Server{Addr: cfg.HTTPPort, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write json: %v", err)
	}
}
