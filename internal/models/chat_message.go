package models

import "time"

// ChatMessage is a single message exchanged in a conversation. Messages are
// immutable once stored.
type ChatMessage struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID string    `gorm:"size:64;not null;index:idx_conversation_time" json:"chat_user_id"`
	SenderID       string    `gorm:"size:64;not null" json:"sender_id"`
	SenderRole     Role      `gorm:"size:32;not null" json:"sender_role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	Timestamp      time.Time `gorm:"not null;index:idx_conversation_time" json:"timestamp"`
}
