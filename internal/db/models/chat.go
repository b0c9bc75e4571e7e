package models

import "time"

// Message roles. Only these two values are ever persisted.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatSession is a titled conversation owned by one user and bound to one
// model. The model is fixed at creation; later catalog changes never move an
// existing session. UpdatedAt advances on every successful exchange.
type ChatSession struct {
	ID        string `gorm:"primaryKey"` // UUID
	UserID    uint   `gorm:"index;not null"`
	ModelID   uint   `gorm:"not null"`
	Title     string `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Model    Model         `gorm:"belongsTo:Model;foreignKey:ModelID;references:ID"`
	Messages []ChatMessage `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

// ChatMessage is one turn of a conversation. Token counts are null for
// user-authored turns and populated for assistant turns when the provider
// reports usage. Rows are append-only; deletion happens only via the
// session cascade.
type ChatMessage struct {
	ID           uint   `gorm:"primaryKey"`
	SessionID    string `gorm:"index;not null"`
	Role         string `gorm:"not null"`
	Content      string `gorm:"type:text;not null"`
	InputTokens  *int
	OutputTokens *int
	CreatedAt    time.Time
}
