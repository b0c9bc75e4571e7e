// Package chat orchestrates the save→stream→save message protocol and the
// session lifecycle around it.
//
// The load-bearing rule here is transaction scope: every persistence step is
// its own short-lived transaction and none of them spans the provider
// round-trip, which can run for many seconds and would otherwise pin a pool
// connection for its whole duration. The price is that a user turn and its
// assistant turn are not atomic — a stream failure leaves the user turn in
// place with no reply, which is the intended, recoverable state: the client
// retries the send and the retry's history includes the orphaned turn.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/kaiwa-app/kaiwa/internal/catalog"
	"github.com/kaiwa-app/kaiwa/internal/db/models"
	"github.com/kaiwa-app/kaiwa/internal/llm"
	"github.com/kaiwa-app/kaiwa/internal/store"
)

// DefaultSessionTitle is used when session creation omits the title.
const DefaultSessionTitle = "New Chat"

const (
	maxTitleRunes   = 255
	maxContentBytes = 32 * 1024
)

var (
	// ErrEmptyContent rejects a message that is empty after trimming.
	ErrEmptyContent = errors.New("message content is required")
	// ErrContentTooLong rejects oversized message content before anything is
	// persisted or sent upstream.
	ErrContentTooLong = errors.New("message content is too long")
	// ErrInvalidTitle rejects an explicit title outside 1-255 characters.
	ErrInvalidTitle = errors.New("title must be between 1 and 255 characters")
)

// Service wires the store, the catalog gate and the provider registry into
// the operations the transport layer exposes. It holds no per-request state
// and is safe for concurrent use.
type Service struct {
	db            *gorm.DB
	providers     llm.Registry
	streamTimeout time.Duration
}

// NewService creates the chat service. streamTimeout bounds a single provider
// stream; zero means the 5-minute default.
func NewService(db *gorm.DB, providers llm.Registry, streamTimeout time.Duration) *Service {
	if streamTimeout <= 0 {
		streamTimeout = 5 * time.Minute
	}
	return &Service{db: db, providers: providers, streamTimeout: streamTimeout}
}

// Models lists the models the account's plan grants access to.
func (s *Service) Models(ctx context.Context, accountID uint) ([]models.Model, error) {
	var allowed []models.Model
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		allowed, err = catalog.ListAllowed(tx, accountID)
		return err
	})
	return allowed, err
}

// Plans lists every plan with the account's current one flagged.
func (s *Service) Plans(ctx context.Context, accountID uint) ([]catalog.PlanEntry, error) {
	var entries []catalog.PlanEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entries, err = catalog.ListPlans(tx, accountID)
		return err
	})
	return entries, err
}

// Sessions lists the account's sessions, most recently active first.
func (s *Service) Sessions(ctx context.Context, accountID uint) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		sessions, err = store.ListSessions(tx, accountID)
		return err
	})
	return sessions, err
}

// CreateSession validates the model selection against the account's plan and
// creates the session. A nil title gets the fixed default; an explicit title
// must be 1-255 characters. Validation failures create nothing.
func (s *Service) CreateSession(ctx context.Context, accountID, modelID uint, title *string) (*models.ChatSession, error) {
	finalTitle := DefaultSessionTitle
	if title != nil {
		n := utf8.RuneCountInString(*title)
		if n == 0 || n > maxTitleRunes {
			return nil, ErrInvalidTitle
		}
		finalTitle = *title
	}

	var session *models.ChatSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model, err := catalog.ValidateSelection(tx, accountID, modelID)
		if err != nil {
			return err
		}
		session, err = store.CreateSession(tx, accountID, modelID, finalTitle)
		if err != nil {
			return err
		}
		session.Model = *model
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Messages lists a session's history in conversation order.
func (s *Service) Messages(ctx context.Context, accountID uint, sessionID string) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		messages, err = store.ListMessages(tx, accountID, sessionID)
		return err
	})
	return messages, err
}

// DeleteSession removes a session and its messages. Idempotent: a miss is not
// an error, and someone else's session behaves exactly like a miss.
func (s *Service) DeleteSession(ctx context.Context, accountID uint, sessionID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return store.DeleteSession(tx, accountID, sessionID)
	})
}

// StreamOutcome is returned once a message exchange fully completes.
type StreamOutcome struct {
	MessageID    uint
	InputTokens  int
	OutputTokens int
}

// StreamMessage runs one message exchange:
//
//  1. resolve session + model and load history (one read-only transaction)
//  2. persist the user turn (own transaction, committed before any network)
//  3. stream from the provider, forwarding every token through onToken
//  4. persist the assistant turn with usage counters (own transaction)
//  5. advance the session's updated_at (own transaction)
//
// A failure in step 3 keeps the committed user turn and touches nothing else.
// A failure after step 3 loses generated text, so the full response is logged
// before the error is returned.
func (s *Service) StreamMessage(ctx context.Context, accountID uint, sessionID, content string, onToken llm.TokenFunc) (*StreamOutcome, error) {
	if err := ValidateContent(content); err != nil {
		return nil, err
	}

	var session *models.ChatSession
	var history []models.ChatMessage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		session, err = store.GetSessionWithModel(tx, accountID, sessionID)
		if err != nil {
			return err
		}
		history, err = store.ListMessages(tx, accountID, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := store.AppendMessage(tx, sessionID, models.RoleUser, content, nil, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	provider, err := s.providers.ForTag(session.Model.Provider)
	if err != nil {
		log.Printf("catalog model %d references provider tag %q with no adapter: %v",
			session.Model.ID, session.Model.Provider, err)
		return nil, err
	}

	turns := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		turns = append(turns, llm.Message{Role: m.Role, Content: m.Content})
	}
	turns = append(turns, llm.Message{Role: models.RoleUser, Content: content})

	streamCtx, cancel := context.WithTimeout(ctx, s.streamTimeout)
	defer cancel()

	result, err := provider.Stream(streamCtx, session.Model.ModelID, turns, onToken)
	if err != nil {
		// The user turn stays committed; the client can retry the send and
		// the retry's history will include it.
		return nil, err
	}

	var assistant *models.ChatMessage
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inTok, outTok := result.InputTokens, result.OutputTokens
		var err error
		assistant, err = store.AppendMessage(tx, sessionID, models.RoleAssistant, result.Content, &inTok, &outTok)
		return err
	})
	if err != nil {
		log.Printf("session %s: stream succeeded but saving the reply failed: %v; generated text follows for recovery:\n%s",
			sessionID, err, result.Content)
		return nil, fmt.Errorf("save assistant reply: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return store.TouchSession(tx, sessionID, nil)
	})
	if err != nil {
		return nil, err
	}

	return &StreamOutcome{
		MessageID:    assistant.ID,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
	}, nil
}

// ValidateContent rejects empty (after trimming) or oversized message
// content. The transport layer calls it before the SSE stream opens so plain
// validation failures stay ordinary HTTP errors.
func ValidateContent(content string) error {
	if len(content) > maxContentBytes {
		return ErrContentTooLong
	}
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	return nil
}
