package models

import "time"

// ChatSession records an administrator's claim on a club manager's
// conversation. Rows are never deleted; releasing a session clears Active
// and the two active-key columns so the history stays auditable.
//
// ActiveConversation and ActiveAdministrator mirror ConversationID and
// AdministratorID while the session is active and are NULL otherwise. Their
// unique indexes let the database reject a second active session for either
// side, since NULLs never collide.
type ChatSession struct {
	ID                  uint    `gorm:"primaryKey;autoIncrement"`
	ConversationID      string  `gorm:"size:64;not null;index"`
	AdministratorID     string  `gorm:"size:64;not null;index"`
	Active              bool    `gorm:"default:false;index"`
	ActiveConversation  *string `gorm:"size:64;uniqueIndex"`
	ActiveAdministrator *string `gorm:"size:64;uniqueIndex"`
	CreatedAt           time.Time
	ReleasedAt          *time.Time
}

// Activate marks the session active and fills the active-key columns.
func (s *ChatSession) Activate() {
	conv, admin := s.ConversationID, s.AdministratorID
	s.Active = true
	s.ActiveConversation = &conv
	s.ActiveAdministrator = &admin
	s.ReleasedAt = nil
}

// Deactivate marks the session released at the given time.
func (s *ChatSession) Deactivate(at time.Time) {
	s.Active = false
	s.ActiveConversation = nil
	s.ActiveAdministrator = nil
	s.ReleasedAt = &at
}
