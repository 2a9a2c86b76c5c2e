package models

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

func TestChatSession_Fields(t *testing.T) {
	typ := reflect.TypeOf(ChatSession{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ConversationID", "index")
	assertGormTag(t, typ, "AdministratorID", "index")
	assertGormTag(t, typ, "ActiveConversation", "uniqueIndex")
	assertGormTag(t, typ, "ActiveAdministrator", "uniqueIndex")
}

func TestChatMessage_Fields(t *testing.T) {
	typ := reflect.TypeOf(ChatMessage{})

	assertGormTag(t, typ, "ID", "autoIncrement")
	assertGormTag(t, typ, "ConversationID", "idx_conversation_time")
	assertGormTag(t, typ, "Timestamp", "idx_conversation_time")
	assertGormTag(t, typ, "Content", "type:text")
}

func TestParticipant_Fields(t *testing.T) {
	typ := reflect.TypeOf(Participant{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "Role", "index")
}

// --- ChatSession state ---

func TestChatSession_Activate(t *testing.T) {
	s := ChatSession{ConversationID: "club1", AdministratorID: "A"}
	s.Activate()

	if !s.Active {
		t.Error("Active = false after Activate")
	}
	if s.ActiveConversation == nil || *s.ActiveConversation != "club1" {
		t.Errorf("ActiveConversation = %v, want club1", s.ActiveConversation)
	}
	if s.ActiveAdministrator == nil || *s.ActiveAdministrator != "A" {
		t.Errorf("ActiveAdministrator = %v, want A", s.ActiveAdministrator)
	}
}

func TestChatSession_Deactivate(t *testing.T) {
	s := ChatSession{ConversationID: "club1", AdministratorID: "A"}
	s.Activate()

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.Deactivate(at)

	if s.Active {
		t.Error("Active = true after Deactivate")
	}
	if s.ActiveConversation != nil || s.ActiveAdministrator != nil {
		t.Error("active-key columns should be cleared")
	}
	if s.ReleasedAt == nil || !s.ReleasedAt.Equal(at) {
		t.Errorf("ReleasedAt = %v, want %v", s.ReleasedAt, at)
	}
	if s.ConversationID != "club1" || s.AdministratorID != "A" {
		t.Error("identity columns must survive release")
	}
}

func TestRole_Valid(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleClubManager, true},
		{RoleFederationManager, true},
		{RoleAthlete, true},
		{"", false},
		{"ADMIN", false},
		{"club_manager", false},
	}
	for _, tt := range tests {
		if got := tt.role.Valid(); got != tt.want {
			t.Errorf("Role(%q).Valid() = %v, want %v", tt.role, got, tt.want)
		}
	}
}
