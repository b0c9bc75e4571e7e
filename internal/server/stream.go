package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kaiwa-app/kaiwa/internal/auth"
	"github.com/kaiwa-app/kaiwa/internal/chat"
	"github.com/kaiwa-app/kaiwa/internal/llm"
	"github.com/kaiwa-app/kaiwa/internal/logging"
)

// StreamMessageHandler runs one message exchange over SSE. The event contract
// is: zero or more `token` events, then exactly one terminal event — `done`
// with {messageId, inputTokens, outputTokens} or `error` with the flattened
// provider message. Nothing follows the terminal event.
//
// Shape validation happens before the stream opens, so an empty body is a
// plain 400; once SSE headers are written every failure becomes a terminal
// `error` event.
func StreamMessageHandler(svc *chat.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := auth.AccountIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		sessionID := chi.URLParam(r, "sessionID")

		var body struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if err := chat.ValidateContent(body.Content); err != nil {
			switch {
			case errors.Is(err, chat.ErrEmptyContent):
				writeError(w, http.StatusBadRequest, "Message content is required")
			case errors.Is(err, chat.ErrContentTooLong):
				writeError(w, http.StatusBadRequest, "Message content is too long")
			default:
				writeError(w, http.StatusBadRequest, err.Error())
			}
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "Streaming not supported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		ctx := r.Context()
		outcome, err := svc.StreamMessage(ctx, accountID, sessionID, body.Content, func(token string) error {
			// A failed write means the client went away; returning the error
			// aborts the provider stream.
			return writeSSE(w, flusher, "token", map[string]string{"token": token})
		})
		if err != nil {
			if ctx.Err() != nil {
				// Client disconnected mid-stream. The user turn is already
				// committed; nothing to deliver and nobody to deliver it to.
				log.Printf("[%s] stream for session %s canceled: %v",
					logging.GetRequestID(ctx), sessionID, ctx.Err())
				return
			}
			log.Printf("[%s] stream for session %s failed: %v",
				logging.GetRequestID(ctx), sessionID, err)
			_ = writeSSE(w, flusher, "error", map[string]string{
				"error": llm.ExtractErrorMessage(err),
			})
			return
		}

		_ = writeSSE(w, flusher, "done", map[string]any{
			"messageId":    outcome.MessageID,
			"inputTokens":  outcome.InputTokens,
			"outputTokens": outcome.OutputTokens,
		})
	}
}

// writeSSE emits one named event frame and flushes it immediately.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
