package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nemanja-m/wanremote/internal/artifactstore"
	"github.com/nemanja-m/wanremote/internal/host/core"
	"github.com/nemanja-m/wanremote/internal/shared/config"
	"github.com/nemanja-m/wanremote/internal/shared/logging"
	"github.com/nemanja-m/wanremote/pkg/artifact"
	"github.com/nemanja-m/wanremote/pkg/protocol"
)

// maxPromptBody bounds the size of a submitted graph.
const maxPromptBody = 16 << 20

type API struct {
	prompts   core.PromptService
	artifacts artifactstore.Store
	logger    logging.Logger
}

func NewAPI(prompts core.PromptService, artifacts artifactstore.Store, logger logging.Logger) *API {
	return &API{
		prompts:   prompts,
		artifacts: artifacts,
		logger:    logger,
	}
}

func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST "+protocol.PromptPath, a.submitPrompt)
	mux.HandleFunc("GET "+protocol.PromptPath, a.promptInfo)
	mux.HandleFunc("GET "+protocol.HistoryPath, a.listHistory)
	mux.HandleFunc("POST "+protocol.HistoryPath, a.clearHistory)
	mux.HandleFunc("GET "+protocol.HistoryPath+"/{id}", a.getHistory)
	mux.HandleFunc("GET "+protocol.ViewPath, a.viewArtifact)
	mux.HandleFunc("GET /queue", a.getQueue)
	mux.HandleFunc("GET /healthz", a.health)
	mux.Handle("GET /metrics", promhttp.Handler())
}

// submitPrompt handles POST /prompt
func (a *API) submitPrompt(w http.ResponseWriter, r *http.Request) {
	var req protocol.SubmitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPromptBody)).Decode(&req); err != nil {
		a.respondError(w, http.StatusBadRequest, "invalid_prompt", "invalid request body", err.Error())
		return
	}
	if req.Prompt == nil {
		a.respondError(w, http.StatusBadRequest, "invalid_prompt", "no prompt provided", "")
		return
	}

	prompt, err := a.prompts.Submit(req.Prompt, req.ClientID, req.Front)
	if err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			a.respondJSON(w, http.StatusBadRequest, toRejectResponse(verr))
			return
		}
		a.logger.Error("Failed to queue prompt", "error", err)
		a.respondError(w, http.StatusInternalServerError, "internal_error", "failed to queue prompt", err.Error())
		return
	}

	a.respondJSON(w, http.StatusOK, protocol.SubmitResponse{
		PromptID:   prompt.ID,
		Number:     prompt.Number,
		NodeErrors: map[string]json.RawMessage{},
	})
}

// promptInfo handles GET /prompt
func (a *API) promptInfo(w http.ResponseWriter, r *http.Request) {
	a.respondJSON(w, http.StatusOK, PromptInfoResponse{ExecInfo: ExecInfo{QueueRemaining: a.queueRemaining()}})
}

// listHistory handles GET /history?max_items=N
func (a *API) listHistory(w http.ResponseWriter, r *http.Request) {
	maxItems := 0
	if s := r.URL.Query().Get("max_items"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			a.respondError(w, http.StatusBadRequest, "invalid_request", "max_items must be a non-negative integer", s)
			return
		}
		maxItems = n
	}

	prompts, err := a.prompts.History(maxItems)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, "internal_error", "failed to read history", err.Error())
		return
	}
	a.respondJSON(w, http.StatusOK, toHistory(prompts))
}

// getHistory handles GET /history/{id}. Unknown and unfinished prompts
// yield an empty object.
func (a *API) getHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	prompt, err := a.prompts.GetPrompt(id)
	if err != nil && !errors.Is(err, core.ErrPromptNotFound) {
		a.respondError(w, http.StatusInternalServerError, "internal_error", "failed to read history", err.Error())
		return
	}

	history := protocol.History{}
	if prompt != nil && prompt.Status.Finished() {
		history[prompt.ID] = prompt.HistoryEntry()
	}
	a.respondJSON(w, http.StatusOK, history)
}

// clearHistory handles POST /history {"clear": true}
func (a *API) clearHistory(w http.ResponseWriter, r *http.Request) {
	var req ClearHistoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body", err.Error())
		return
	}
	if req.Clear {
		if err := a.prompts.ClearHistory(); err != nil {
			a.respondError(w, http.StatusInternalServerError, "internal_error", "failed to clear history", err.Error())
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

// viewArtifact handles GET /view?filename=<name>&type=output
func (a *API) viewArtifact(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filename := query.Get("filename")
	if filename == "" {
		a.respondError(w, http.StatusBadRequest, "invalid_request", "filename is required", "")
		return
	}
	if typ := query.Get("type"); typ != "" && typ != protocol.OutputType {
		a.respondError(w, http.StatusBadRequest, "invalid_request", "unsupported type", typ)
		return
	}
	if sub := query.Get("subfolder"); sub != "" {
		a.respondError(w, http.StatusBadRequest, "invalid_request", "subfolders are not supported", sub)
		return
	}

	data, err := a.artifacts.Get(r.Context(), filename)
	switch {
	case errors.Is(err, artifactstore.ErrInvalidName):
		a.respondError(w, http.StatusBadRequest, "invalid_request", "invalid filename", filename)
		return
	case errors.Is(err, artifactstore.ErrNotFound):
		a.respondError(w, http.StatusNotFound, "not_found", "file not found", filename)
		return
	case err != nil:
		a.logger.Error("Failed to read artifact", "filename", filename, "error", err)
		a.respondError(w, http.StatusInternalServerError, "internal_error", "failed to read file", err.Error())
		return
	}

	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// getQueue handles GET /queue
func (a *API) getQueue(w http.ResponseWriter, r *http.Request) {
	running, pending := a.prompts.Queue()
	a.respondJSON(w, http.StatusOK, QueueResponse{
		Running: toQueueItems(running),
		Pending: toQueueItems(pending),
	})
}

// health handles GET /healthz
func (a *API) health(w http.ResponseWriter, r *http.Request) {
	a.respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", QueueRemaining: a.queueRemaining()})
}

func (a *API) queueRemaining() int {
	running, pending := a.prompts.Queue()
	return len(running) + len(pending)
}

func (a *API) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (a *API) respondError(w http.ResponseWriter, statusCode int, errType, message, details string) {
	a.respondJSON(w, statusCode, protocol.RejectResponse{
		Error: protocol.ErrorDetail{Type: errType, Message: message, Details: details},
	})
}

func NewServer(cfg config.RESTConfig, api *API, logger logging.Logger) *http.Server {
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)

	handler := ChainMiddleware(
		mux,
		RecoveryMiddleware(logger),
		RequestIDMiddleware,
		LoggingMiddleware(logger),
		MetricsMiddleware,
	)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}
