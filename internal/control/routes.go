package control

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mkatragadda/Vitta-sub011/internal/cacherouter"
	"github.com/mkatragadda/Vitta-sub011/internal/cachestore"
	"github.com/mkatragadda/Vitta-sub011/internal/connectivity"
	"github.com/mkatragadda/Vitta-sub011/internal/syncqueue"
)

// Sync tags accepted by the trigger endpoint. Both drain the same durable
// queue; the tag records which flow asked for the drain.
var syncTags = map[string]bool{
	"sync-pending-messages": true,
	"sync-pending-payments": true,
}

type Handler struct {
	router  *cacherouter.Router
	caches  *cachestore.Store
	manager *syncqueue.Manager
	state   *connectivity.State
	log     *zap.Logger
}

func NewHandler(router *cacherouter.Router, caches *cachestore.Store, manager *syncqueue.Manager, state *connectivity.State, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		router:  router,
		caches:  caches,
		manager: manager,
		state:   state,
		log:     log.Named("control"),
	}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/v1/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/control", func(r chi.Router) {
		r.Post("/skip-waiting", h.SkipWaiting)
		r.Post("/clear-cache", h.ClearCache)
		r.Get("/cache-size", h.CacheSize)
	})

	r.Post("/v1/sync/{tag}", h.TriggerSync)
	r.Get("/v1/queue", h.ListQueue)
	r.Post("/v1/queue", h.EnqueueOperation)
	r.Delete("/v1/queue", h.ClearQueue)

	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"online":     h.state.Online(),
		"syncing":    h.state.SyncInProgress(),
		"durable":    h.manager.Durable(),
		"queueDepth": h.manager.Len(),
		"generation": h.caches.Generation(),
	})
}

// SkipWaiting makes the current generation take over immediately, purging
// caches left behind by older deploys.
func (h *Handler) SkipWaiting(w http.ResponseWriter, r *http.Request) {
	purged, err := h.router.Activate(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if purged == nil {
		purged = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"purged": purged})
}

func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.router.ClearDynamic(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *Handler) CacheSize(w http.ResponseWriter, r *http.Request) {
	size, err := h.caches.TotalSize(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"bytes": size})
}

// TriggerSync drains the queue once for a recognized sync tag. A drain
// already in flight answers 409 so the caller can back off.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	if !syncTags[tag] {
		http.Error(w, "unknown sync tag", http.StatusNotFound)
		return
	}
	res, err := h.manager.ProcessQueue(r.Context())
	if errors.Is(err, syncqueue.ErrAlreadySyncing) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.log.Info("sync triggered",
		zap.String("tag", tag),
		zap.Int("processed", res.Processed),
		zap.Int("failed", res.Failed))
	writeJSON(w, http.StatusOK, map[string]int{
		"processed": res.Processed,
		"succeeded": res.Succeeded,
		"failed":    res.Failed,
	})
}

func (h *Handler) ListQueue(w http.ResponseWriter, r *http.Request) {
	ops := h.manager.Queue()
	if ops == nil {
		ops = []syncqueue.Operation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"depth": len(ops), "operations": ops})
}

type enqueueRequest struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

func (h *Handler) EnqueueOperation(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	id, err := h.manager.Enqueue(r.Context(), syncqueue.Kind(req.Kind), req.Payload)
	if errors.Is(err, syncqueue.ErrUnknownKind) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

func (h *Handler) ClearQueue(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.ClearQueue(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
