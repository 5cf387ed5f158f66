package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/screenlens/screenlens/internal/ir"
	"github.com/screenlens/screenlens/internal/store"
	"github.com/screenlens/screenlens/pkg/runerr"
)

// Server is the read-only dashboard API over the IR query surface.
// Query results of closed runs are immutable, so they are cached in an LRU
// keyed by run id, query name and parameters.
type Server struct {
	store  *store.Store
	cache  *lru.Cache[string, any]
	logger *slog.Logger
}

func NewServer(s *store.Store, cacheSize int, logger *slog.Logger) (*Server, error) {
	if cacheSize <= 0 {
		cacheSize = 128
	}
	cache, err := lru.New[string, any](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create query cache: %w", err)
	}
	return &Server{store: s, cache: cache, logger: logger}, nil
}

// Router builds the HTTP routes.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/runs", s.handleRuns)
		r.Get("/diff", s.handleDiff)
		r.Route("/runs/{runID}", func(r chi.Router) {
			r.Get("/objects", s.handleObjects)
			r.Get("/event-function-map", s.handleEventFunctionMap)
			r.Get("/table-impact", s.handleTableImpact)
			r.Get("/call-graph", s.handleCallGraph)
			r.Get("/unused", s.handleUnused)
			r.Get("/data-windows", s.handleDataWindows)
		})
	})

	return r
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.Runs(r.Context(), limitParam(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	runOld := r.URL.Query().Get("old")
	runNew := r.URL.Query().Get("new")
	if runOld == "" || runNew == "" {
		s.writeError(w, runerr.New(runerr.CodeInput, "old and new run ids are required"))
		return
	}
	key := fmt.Sprintf("diff|%s|%s", runOld, runNew)
	result, err := s.cached(r.Context(), key, runOld, func(ctx context.Context) (any, error) {
		return s.store.Diff(ctx, runOld, runNew)
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleObjects(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	objType := r.URL.Query().Get("type")
	search := r.URL.Query().Get("q")
	limit := limitParam(r)

	key := fmt.Sprintf("objects|%s|%s|%s|%d", runID, objType, search, limit)
	result, err := s.cached(r.Context(), key, runID, func(ctx context.Context) (any, error) {
		return s.store.ListObjects(ctx, runID, objType, search, limit)
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEventFunctionMap(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	limit := limitParam(r)

	key := fmt.Sprintf("efm|%s|%d", runID, limit)
	result, err := s.cached(r.Context(), key, runID, func(ctx context.Context) (any, error) {
		return s.store.EventFunctionMap(ctx, runID, limit)
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTableImpact(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	table := r.URL.Query().Get("table")
	limit := limitParam(r)

	key := fmt.Sprintf("impact|%s|%s|%d", runID, table, limit)
	result, err := s.cached(r.Context(), key, runID, func(ctx context.Context) (any, error) {
		return s.store.TableImpact(ctx, runID, table, limit)
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCallGraph(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	src := r.URL.Query().Get("src")
	limit := limitParam(r)

	key := fmt.Sprintf("graph|%s|%s|%d", runID, src, limit)
	result, err := s.cached(r.Context(), key, runID, func(ctx context.Context) (any, error) {
		return s.store.ScreenCallGraph(ctx, runID, src, limit)
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUnused(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	limit := limitParam(r)

	key := fmt.Sprintf("unused|%s|%d", runID, limit)
	result, err := s.cached(r.Context(), key, runID, func(ctx context.Context) (any, error) {
		return s.store.UnusedObjectCandidates(ctx, runID, limit)
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDataWindows(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	object := r.URL.Query().Get("object")
	limit := limitParam(r)

	key := fmt.Sprintf("dw|%s|%s|%d", runID, object, limit)
	result, err := s.cached(r.Context(), key, runID, func(ctx context.Context) (any, error) {
		return s.store.DataWindows(ctx, runID, object, limit)
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// cached serves a query from the LRU when the run is terminal; running
// runs bypass the cache because their record set is still growing.
func (s *Server) cached(ctx context.Context, key, runID string, load func(context.Context) (any, error)) (any, error) {
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}

	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	result, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if run.Status != ir.RunRunning {
		s.cache.Add(key, result)
	}
	return result, nil
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var rerr *runerr.Error
	if errors.As(err, &rerr) && rerr.Code() == runerr.CodeInput {
		status = http.StatusBadRequest
	}
	if status >= 500 && s.logger != nil {
		s.logger.Error("dashboard query failed", slog.String("error", err.Error()))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func limitParam(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return store.DefaultLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return store.DefaultLimit
	}
	return store.ClampLimit(n)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
