package ingest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ingest-gateway/middleware/ratelimit"
)

type messageResponse struct {
	Success       bool   `json:"success"`
	CorrelationID string `json:"correlationId"`
	Error         string `json:"error,omitempty"`
	Detail        string `json:"detail,omitempty"`
}

func messagesHandler(opts Options) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := strings.TrimSpace(r.Header.Get(CorrelationHeader))
		if correlationID == "" {
			correlationID = uuid.NewString()
		}
		w.Header().Set(CorrelationHeader, correlationID)

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, opts.MaxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeJSON(w, http.StatusRequestEntityTooLarge, messageResponse{
					CorrelationID: correlationID,
					Error:         "payload too large",
				})
				return
			}
			writeJSON(w, http.StatusBadRequest, messageResponse{
				CorrelationID: correlationID,
				Error:         "could not read body",
			})
			return
		}

		ok, err := opts.Processor.Process(r.Context(), body, correlationID)
		switch {
		case errors.Is(err, context.Canceled):
			writeJSON(w, ratelimit.StatusClientClosedRequest, messageResponse{
				CorrelationID: correlationID,
				Error:         "request cancelled",
			})

		case errors.Is(err, context.DeadlineExceeded):
			writeJSON(w, http.StatusGatewayTimeout, messageResponse{
				CorrelationID: correlationID,
				Error:         "processing timed out",
			})

		case err != nil:
			zerolog.Ctx(r.Context()).Error().Err(err).Str("correlation_id", correlationID).Msg("message processing error")
			resp := messageResponse{CorrelationID: correlationID, Error: "internal error"}
			if opts.ExposeErrors {
				resp.Detail = err.Error()
			}
			writeJSON(w, http.StatusInternalServerError, resp)

		case !ok:
			writeJSON(w, http.StatusBadRequest, messageResponse{
				CorrelationID: correlationID,
				Error:         "message rejected",
			})

		default:
			writeJSON(w, http.StatusOK, messageResponse{Success: true, CorrelationID: correlationID})
		}
	})
}
