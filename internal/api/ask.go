package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/csvask/csvask/internal/nl2sql"
	"github.com/csvask/csvask/internal/pipeline"
)

const maxAskBodyBytes = 64 << 10

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	SQL        string `json:"sql"`
	Status     string `json:"status"`
	Result     string `json:"result"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

type schemaResponse struct {
	Relation string `json:"relation"`
	Source   string `json:"source"`
	Format   string `json:"format"`
	Rows     int64  `json:"rows"`
	Schema   string `json:"schema"`
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Answerer == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "DATASET_NOT_CONFIGURED", "no dataset is bound", false, nil)
		return
	}
	bound := deps.Answerer.Dataset()
	writeJSON(w, http.StatusOK, schemaResponse{
		Relation: bound.Relation,
		Source:   bound.Source,
		Format:   string(bound.Format),
		Rows:     bound.Rows,
		Schema:   deps.Answerer.Schema(),
	})
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Answerer == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "DATASET_NOT_CONFIGURED", "no dataset is bound", false, nil)
		return
	}

	var request askRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAskBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}

	ctx := r.Context()
	if deps.AskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deps.AskTimeout)
		defer cancel()
	}

	response, err := deps.Answerer.Ask(ctx, pipeline.Request{Question: request.Question})
	if err != nil {
		writeAskError(ctx, w, r, err)
		return
	}

	payload := askResponse{
		Question:   response.Question,
		Answer:     response.Answer,
		SQL:        response.SQL,
		Status:     "ok",
		Result:     response.Outcome.String(),
		DurationMs: response.Duration.Milliseconds(),
	}
	if response.Outcome.Failed() {
		payload.Status = "execution_error"
		payload.Error = response.Outcome.Err.Error()
	}
	writeJSON(w, http.StatusOK, payload)
}

func writeAskError(ctx context.Context, w http.ResponseWriter, r *http.Request, err error) {
	var generationErr *pipeline.GenerationError
	switch {
	case errors.Is(err, pipeline.ErrEmptyQuestion):
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", err.Error(), false, nil)
	case ctx.Err() != nil:
		writeError(r.Context(), w, http.StatusServiceUnavailable, "REQUEST_CANCELED", err.Error(), true, nil)
	case errors.As(err, &generationErr):
		retryable := true
		var statusErr *nl2sql.StatusError
		if errors.As(err, &statusErr) {
			retryable = statusErr.Retryable()
		}
		writeError(r.Context(), w, http.StatusBadGateway, "GENERATION_FAILED", "language model call failed", retryable, map[string]any{
			"stage":   generationErr.Stage.String(),
			"details": generationErr.Err.Error(),
		})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(r.Context(), w, http.StatusServiceUnavailable, "REQUEST_CANCELED", err.Error(), true, nil)
	default:
		writeError(r.Context(), w, http.StatusInternalServerError, "ASK_FAILED", "failed to answer question", true, map[string]any{"details": err.Error()})
	}
}
