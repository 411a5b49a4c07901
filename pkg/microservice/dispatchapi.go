package microservice

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-task-dispatch/pkg/correlation"
	"github.com/illmade-knight/go-task-dispatch/pkg/dispatch"
)

// ResultPublisher is the result-publishing surface of the dispatch service.
type ResultPublisher interface {
	PublishResult(ctx context.Context, result dispatch.TaskResult) error
}

// DispatchAPI exposes the producer over a thin HTTP surface so processes
// without a broker client can submit tasks, report results, and look up what
// a correlation id was issued for.
type DispatchAPI struct {
	sender    correlation.Sender
	publisher ResultPublisher
	tracker   correlation.Tracker
	logger    zerolog.Logger
}

// NewDispatchAPI creates the HTTP handler set around the given collaborators.
func NewDispatchAPI(sender correlation.Sender, publisher ResultPublisher, tracker correlation.Tracker, logger zerolog.Logger) *DispatchAPI {
	return &DispatchAPI{
		sender:    sender,
		publisher: publisher,
		tracker:   tracker,
		logger:    logger.With().Str("component", "DispatchAPI").Logger(),
	}
}

// RegisterRoutes attaches the dispatch endpoints to mux.
func (a *DispatchAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /tasks", a.sendTaskHandler)
	mux.HandleFunc("POST /tasks/batch", a.sendBatchHandler)
	mux.HandleFunc("POST /results", a.publishResultHandler)
	mux.HandleFunc("GET /dispatches/{correlationID}", a.lookupHandler)
}

func (a *DispatchAPI) sendTaskHandler(w http.ResponseWriter, r *http.Request) {
	var task dispatch.TaskMessage
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := task.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	correlationID, err := a.sender.SendTask(r.Context(), task)
	if err != nil {
		a.logger.Error().Err(err).Str("task_id", task.ID).Msg("Send failed.")
		writeError(w, http.StatusServiceUnavailable, "task dispatch failed")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"correlationId": correlationID})
}

func (a *DispatchAPI) sendBatchHandler(w http.ResponseWriter, r *http.Request) {
	var tasks []dispatch.TaskMessage
	if err := json.NewDecoder(r.Body).Decode(&tasks); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	for _, task := range tasks {
		if err := task.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	correlationIDs, err := a.sender.SendBatch(r.Context(), tasks)
	if err != nil {
		a.logger.Error().Err(err).Int("task_count", len(tasks)).Msg("Batch send failed.")
		writeError(w, http.StatusServiceUnavailable, "batch dispatch failed")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string][]string{"correlationIds": correlationIDs})
}

func (a *DispatchAPI) publishResultHandler(w http.ResponseWriter, r *http.Request) {
	var result dispatch.TaskResult
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := result.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.publisher.PublishResult(r.Context(), result); err != nil {
		a.logger.Error().Err(err).Str("task_id", result.TaskID).Msg("Result publish failed.")
		writeError(w, http.StatusServiceUnavailable, "result publish failed")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"taskId": result.TaskID})
}

func (a *DispatchAPI) lookupHandler(w http.ResponseWriter, r *http.Request) {
	correlationID := strings.TrimSpace(r.PathValue("correlationID"))
	if correlationID == "" {
		writeError(w, http.StatusBadRequest, "correlation id is required")
		return
	}

	d, err := a.tracker.Lookup(r.Context(), correlationID)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown correlation id")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
