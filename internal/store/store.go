// Package store is the transactional persistence layer for chat sessions and
// their message history.
//
// Every operation runs on a caller-supplied *gorm.DB scope so the caller
// decides the transaction boundaries; the store never opens one itself.
// Ownership is always expressed as a single filter predicate (session id AND
// account id) so "not found" and "not yours" are indistinguishable and there
// is no existence-then-ownership race.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kaiwa-app/kaiwa/internal/db/models"
)

// ErrSessionNotFound covers both an absent session and one owned by another
// account.
var ErrSessionNotFound = errors.New("session not found")

// CreateSession inserts a new session bound to the given model and returns it.
// The model binding is fixed for the session's lifetime.
func CreateSession(tx *gorm.DB, accountID, modelID uint, title string) (*models.ChatSession, error) {
	session := models.ChatSession{
		ID:      uuid.New().String(),
		UserID:  accountID,
		ModelID: modelID,
		Title:   title,
	}
	if err := tx.Create(&session).Error; err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &session, nil
}

// ListSessions returns the account's sessions, most recently updated first,
// with the bound model preloaded.
func ListSessions(tx *gorm.DB, accountID uint) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	err := tx.Preload("Model").
		Where("user_id = ?", accountID).
		Order("updated_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// GetSessionWithModel resolves a session and its bound model in one read.
// Returns ErrSessionNotFound when the id/ownership pair does not match.
func GetSessionWithModel(tx *gorm.DB, accountID uint, sessionID string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := tx.Preload("Model").
		Where("id = ? AND user_id = ?", sessionID, accountID).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	return &session, nil
}

// TouchSession advances the session's updated_at to now. A non-nil title also
// renames the session. No ownership predicate here: callers touch a session
// only after having resolved it through GetSessionWithModel.
func TouchSession(tx *gorm.DB, sessionID string, title *string) error {
	updates := map[string]any{"updated_at": time.Now()}
	if title != nil {
		updates["title"] = *title
	}
	err := tx.Model(&models.ChatSession{}).
		Where("id = ?", sessionID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("touch session %s: %w", sessionID, err)
	}
	return nil
}

// DeleteSession removes the session and its messages. A miss — wrong id or
// someone else's session — is a silent no-op, which keeps the endpoint
// idempotent and leaks nothing about other accounts' data.
func DeleteSession(tx *gorm.DB, accountID uint, sessionID string) error {
	res := tx.Where("id = ? AND user_id = ?", sessionID, accountID).
		Delete(&models.ChatSession{})
	if res.Error != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil
	}
	// The ownership check above already passed; the cascade runs in the same
	// transaction so a session can never outlive-orphan its messages.
	if err := tx.Where("session_id = ?", sessionID).
		Delete(&models.ChatMessage{}).Error; err != nil {
		return fmt.Errorf("delete session %s messages: %w", sessionID, err)
	}
	return nil
}

// ListMessages returns the session's messages in conversation order:
// created_at ascending, id ascending as the tie-break. The ownership
// predicate joins through the session, so a foreign session yields no rows.
func ListMessages(tx *gorm.DB, accountID uint, sessionID string) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := tx.
		Joins("JOIN chat_sessions ON chat_sessions.id = chat_messages.session_id").
		Where("chat_messages.session_id = ? AND chat_sessions.user_id = ?", sessionID, accountID).
		Order("chat_messages.created_at ASC, chat_messages.id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("list messages for %s: %w", sessionID, err)
	}
	return messages, nil
}

// AppendMessage inserts one turn. Token counts stay nil for user turns and
// carry the provider-reported usage for assistant turns.
func AppendMessage(tx *gorm.DB, sessionID, role, content string, inputTokens, outputTokens *int) (*models.ChatMessage, error) {
	msg := models.ChatMessage{
		SessionID:    sessionID,
		Role:         role,
		Content:      content,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
	}
	if err := tx.Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("append %s message to %s: %w", role, sessionID, err)
	}
	return &msg, nil
}
