package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kaiwa-app/kaiwa/internal/auth"
	"github.com/kaiwa-app/kaiwa/internal/catalog"
	"github.com/kaiwa-app/kaiwa/internal/chat"
	"github.com/kaiwa-app/kaiwa/internal/db/models"
	"github.com/kaiwa-app/kaiwa/internal/logging"
)

type modelJSON struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	ModelID   string `json:"modelId"`
	Provider  string `json:"provider"`
	Color     string `json:"color"`
	IsDefault bool   `json:"isDefault"`
}

type sessionJSON struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	ModelID   uint      `json:"modelId"`
	ModelName string    `json:"modelName"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type messageJSON struct {
	ID           uint      `json:"id"`
	Role         string    `json:"role"`
	Content      string    `json:"content"`
	InputTokens  *int      `json:"inputTokens"`
	OutputTokens *int      `json:"outputTokens"`
	CreatedAt    time.Time `json:"createdAt"`
}

type planJSON struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int    `json:"price"`
	IsCurrent   bool   `json:"isCurrent"`
}

// ModelsHandler lists the models the caller's plan may use.
func ModelsHandler(svc *chat.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := auth.AccountIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		allowed, err := svc.Models(r.Context(), accountID)
		if err != nil {
			internalError(w, r, "list models", err)
			return
		}

		out := make([]modelJSON, 0, len(allowed))
		for _, m := range allowed {
			out = append(out, toModelJSON(m))
		}
		writeJSON(w, http.StatusOK, map[string]any{"models": out})
	}
}

// PlansHandler lists every plan with the caller's current one flagged.
func PlansHandler(svc *chat.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := auth.AccountIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		entries, err := svc.Plans(r.Context(), accountID)
		if err != nil {
			internalError(w, r, "list plans", err)
			return
		}

		out := make([]planJSON, 0, len(entries))
		for _, e := range entries {
			out = append(out, planJSON{
				ID:          e.Plan.ID,
				Name:        e.Plan.Name,
				Description: e.Plan.Description,
				Price:       e.Plan.Price,
				IsCurrent:   e.IsCurrent,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"plans": out})
	}
}

// SessionsHandler lists the caller's sessions by recency.
func SessionsHandler(svc *chat.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := auth.AccountIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		sessions, err := svc.Sessions(r.Context(), accountID)
		if err != nil {
			internalError(w, r, "list sessions", err)
			return
		}

		out := make([]sessionJSON, 0, len(sessions))
		for _, s := range sessions {
			out = append(out, toSessionJSON(s))
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
	}
}

// CreateSessionHandler opens a new session on a model the caller's plan
// grants. 400 for an unknown model id, 403 for one outside the plan.
func CreateSessionHandler(svc *chat.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := auth.AccountIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var body struct {
			ModelID uint    `json:"modelId"`
			Title   *string `json:"title"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if body.ModelID == 0 {
			writeError(w, http.StatusBadRequest, "modelId is required")
			return
		}

		session, err := svc.CreateSession(r.Context(), accountID, body.ModelID, body.Title)
		switch {
		case errors.Is(err, catalog.ErrModelNotFound):
			writeError(w, http.StatusBadRequest, "Model not found")
		case errors.Is(err, catalog.ErrModelNotAllowed):
			writeError(w, http.StatusForbidden, "Model not available on your plan")
		case errors.Is(err, chat.ErrInvalidTitle):
			writeError(w, http.StatusBadRequest, "Title must be between 1 and 255 characters")
		case err != nil:
			internalError(w, r, "create session", err)
		default:
			writeJSON(w, http.StatusCreated, toSessionJSON(*session))
		}
	}
}

// DeleteSessionHandler removes a session. Always 204: a miss and someone
// else's session are indistinguishable from success.
func DeleteSessionHandler(svc *chat.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := auth.AccountIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		sessionID := chi.URLParam(r, "sessionID")
		if err := svc.DeleteSession(r.Context(), accountID, sessionID); err != nil {
			internalError(w, r, "delete session", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// MessagesHandler lists a session's history in conversation order.
func MessagesHandler(svc *chat.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := auth.AccountIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		sessionID := chi.URLParam(r, "sessionID")
		messages, err := svc.Messages(r.Context(), accountID, sessionID)
		if err != nil {
			internalError(w, r, "list messages", err)
			return
		}

		out := make([]messageJSON, 0, len(messages))
		for _, m := range messages {
			out = append(out, messageJSON{
				ID:           m.ID,
				Role:         m.Role,
				Content:      m.Content,
				InputTokens:  m.InputTokens,
				OutputTokens: m.OutputTokens,
				CreatedAt:    m.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": out})
	}
}

func toModelJSON(m models.Model) modelJSON {
	return modelJSON{
		ID:        m.ID,
		Name:      m.Name,
		ModelID:   m.ModelID,
		Provider:  m.Provider,
		Color:     m.Color,
		IsDefault: m.IsDefault,
	}
}

func toSessionJSON(s models.ChatSession) sessionJSON {
	return sessionJSON{
		ID:        s.ID,
		Title:     s.Title,
		ModelID:   s.ModelID,
		ModelName: s.Model.Name,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	log.Printf("[%s] %s: %v", logging.GetRequestID(r.Context()), op, err)
	writeError(w, http.StatusInternalServerError, "Internal Server Error")
}
