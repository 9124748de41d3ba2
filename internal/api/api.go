// Package api exposes the daemon's control surface as JSON over HTTP on the
// profile's unix socket.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gfranco93/cmirror/internal/cursor"
	"github.com/gfranco93/cmirror/internal/diag"
	"github.com/gfranco93/cmirror/internal/status"
	"github.com/gfranco93/cmirror/internal/store"
	syncengine "github.com/gfranco93/cmirror/internal/sync"
	"go.uber.org/zap"
)

// API holds the handlers for the admin HTTP surface.
type API struct {
	profile  string
	db       *store.DB
	machine  *status.Machine
	detector *diag.Detector
	merger   *cursor.Merger
	engine   *syncengine.Engine
	logger   *zap.Logger
}

// New creates the API over the daemon's components.
func New(profile string, db *store.DB, machine *status.Machine, detector *diag.Detector, merger *cursor.Merger, engine *syncengine.Engine, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		profile:  profile,
		db:       db,
		machine:  machine,
		detector: detector,
		merger:   merger,
		engine:   engine,
		logger:   logger,
	}
}

// Router builds the route tree.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/status", a.handleStatus)
	r.Get("/v1/sync/state", a.handleSyncState)
	r.Get("/v1/sync/diagnostics", a.handleDiagnostics)
	r.Get("/v1/sync/gaps", a.handleGaps)
	r.Post("/v1/sync/run", a.handleSyncRun)
	r.Post("/v1/sync/reset", a.handleSyncReset)
	r.Get("/v1/chats", a.handleListChats)
	r.Get("/v1/chats/{chatID}/messages", a.handleListMessages)
	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *API) respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		a.logger.Warn("encode response", zap.Error(err))
	}
}

func (a *API) respondError(w http.ResponseWriter, code int, msg string) {
	a.respondJSON(w, code, errorResponse{Error: msg})
}
