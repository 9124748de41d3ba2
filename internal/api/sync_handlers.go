package api

import (
	"net/http"

	"github.com/gfranco93/cmirror/internal/store"
	syncengine "github.com/gfranco93/cmirror/internal/sync"
	"go.uber.org/zap"
)

// StatusResponse reports the daemon's runtime state.
type StatusResponse struct {
	Profile string `json:"profile"`
	State   string `json:"state"`
}

// SyncStateResponse wraps the chat-list sync record; State is null when no
// sync has ever run.
type SyncStateResponse struct {
	State *store.ChatListSync `json:"state"`
}

// RunResponse reports the outcome of a manually triggered cycle.
type RunResponse struct {
	Started bool                    `json:"started"`
	Result  *syncengine.CycleResult `json:"result,omitempty"`
	Message string                  `json:"message,omitempty"`
}

func (a *API) handleStatus(w http.ResponseWriter, _ *http.Request) {
	a.respondJSON(w, http.StatusOK, StatusResponse{
		Profile: a.profile,
		State:   string(a.machine.Current()),
	})
}

func (a *API) handleSyncState(w http.ResponseWriter, _ *http.Request) {
	state, err := store.GetChatListSync(a.db)
	if err != nil {
		a.logger.Error("load sync state", zap.Error(err))
		a.respondError(w, http.StatusInternalServerError, "failed to load sync state")
		return
	}
	a.respondJSON(w, http.StatusOK, SyncStateResponse{State: state})
}

func (a *API) handleDiagnostics(w http.ResponseWriter, _ *http.Request) {
	report, err := a.detector.Diagnostics()
	if err != nil {
		a.logger.Error("diagnostics", zap.Error(err))
		a.respondError(w, http.StatusInternalServerError, "diagnostics failed")
		return
	}
	a.respondJSON(w, http.StatusOK, report)
}

func (a *API) handleGaps(w http.ResponseWriter, _ *http.Request) {
	report, err := a.detector.DetectGaps()
	if err != nil {
		a.logger.Error("gap detection", zap.Error(err))
		a.respondError(w, http.StatusInternalServerError, "gap detection failed")
		return
	}
	a.respondJSON(w, http.StatusOK, report)
}

func (a *API) handleSyncRun(w http.ResponseWriter, r *http.Request) {
	result, err := a.engine.RunCycle(r.Context(), syncengine.SourceManual)
	if err != nil {
		a.logger.Error("manual sync cycle", zap.Error(err))
		a.respondError(w, http.StatusInternalServerError, "sync cycle failed")
		return
	}
	if result == nil {
		// Another cycle holds the lock; routine, not an error.
		a.respondJSON(w, http.StatusConflict, RunResponse{
			Started: false,
			Message: "another sync cycle is running",
		})
		return
	}
	a.respondJSON(w, http.StatusOK, RunResponse{Started: true, Result: result})
}

func (a *API) handleSyncReset(w http.ResponseWriter, _ *http.Request) {
	result, err := a.merger.ResetAllCursors()
	if err != nil {
		a.logger.Error("cursor reset", zap.Error(err))
		a.respondError(w, http.StatusInternalServerError, "cursor reset failed")
		return
	}
	a.respondJSON(w, http.StatusOK, result)
}
