// Package api exposes the narration service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/lexiqai/narration-gateway/internal/apperror"
	"github.com/lexiqai/narration-gateway/internal/narrator"
	"github.com/lexiqai/narration-gateway/internal/observability"
	"github.com/lexiqai/narration-gateway/internal/storage"
	"github.com/lexiqai/narration-gateway/internal/tts"
)

const (
	correlationHeader   = "X-Correlation-ID"
	synthesisKeyHeader  = "X-Synthesis-Api-Key"
	maxRequestBodyBytes = 1 << 20
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// Narrator runs one batch
type Narrator interface {
	Narrate(ctx context.Context, req narrator.Request) (*narrator.Result, error)
}

// HistoryLister lists published batches
type HistoryLister interface {
	List(ctx context.Context, limit int) ([]storage.Entry, error)
}

// NarrationRequest is the body of POST /v1/narrations
type NarrationRequest struct {
	Text           string `json:"text"`
	Voice          string `json:"voice,omitempty"`
	Translate      bool   `json:"translate,omitempty"`
	TargetLanguage string `json:"target_language,omitempty"`
}

type narrationResponse struct {
	Success   bool             `json:"success"`
	Narration *narrator.Result `json:"narration"`
}

type historyResponse struct {
	Success    bool            `json:"success"`
	Narrations []storage.Entry `json:"narrations"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Kind    string `json:"kind"`
	Error   string `json:"error"`
}

// Handler serves the narration routes
type Handler struct {
	narrator Narrator
	history  HistoryLister
}

// NewHandler creates a Handler. history may be nil, in which case the
// listing route reports a configuration error.
func NewHandler(n Narrator, history HistoryLister) *Handler {
	return &Handler{narrator: n, history: history}
}

// Register adds the narration routes to mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/narrations", h.CreateNarration)
	mux.HandleFunc("GET /v1/narrations", h.ListNarrations)
}

// CreateNarration runs a batch synchronously and returns its timings and files
func (h *Handler) CreateNarration(w http.ResponseWriter, r *http.Request) {
	logger := observability.WithCorrelationID(r.Header.Get(correlationHeader))

	var body NarrationRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, apperror.Input("invalid request body: %v", err))
		return
	}

	req := narrator.Request{
		Text:           body.Text,
		Voice:          body.Voice,
		Translate:      body.Translate,
		TargetLanguage: body.TargetLanguage,
	}
	if key := r.Header.Get(synthesisKeyHeader); key != "" {
		req.SynthesisCredentials = &tts.Credentials{APIKey: key}
	}

	result, err := h.narrator.Narrate(r.Context(), req)
	if err != nil {
		logger.Debug().Err(err).Str("kind", apperror.KindOf(err).String()).Msg("Narration request failed")
		writeError(w, err)
		return
	}

	logger.Info().Str("batch_id", result.ID).Str("base_name", result.Files.BaseName).Msg("Narration request completed")
	writeJSON(w, http.StatusCreated, narrationResponse{Success: true, Narration: result})
}

// ListNarrations returns recent batches, newest first. ?limit= caps the count.
func (h *Handler) ListNarrations(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, apperror.Configuration("history is not configured"))
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, apperror.Input("limit must be a positive integer"))
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := h.history.List(r.Context(), limit)
	if err != nil {
		writeError(w, apperror.Storage(err, "list narrations"))
		return
	}
	if entries == nil {
		entries = []storage.Entry{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Success: true, Narrations: entries})
}

// StatusFor maps an error kind to an HTTP status
func StatusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindInput:
		return http.StatusBadRequest
	case apperror.KindConfiguration:
		return http.StatusServiceUnavailable
	case apperror.KindSynthesis, apperror.KindTranslation:
		return http.StatusBadGateway
	case apperror.KindFormat:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := apperror.KindOf(err)
	writeJSON(w, StatusFor(kind), errorResponse{
		Success: false,
		Kind:    kind.String(),
		Error:   apperror.Message(err),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
