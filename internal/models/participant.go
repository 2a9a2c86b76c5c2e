package models

// Participant is a user known to the chat subsystem. A club manager's ID
// doubles as the ID of their conversation.
type Participant struct {
	ID          string `gorm:"primaryKey;size:64"`
	DisplayName string `gorm:"size:128;not null"`
	Role        Role   `gorm:"size:32;not null;index"`
}
