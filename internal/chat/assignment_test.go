package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/zulandar/switchboard/internal/models"
)

func TestAssign_Success(t *testing.T) {
	sessions := newMemSessions()
	m := NewAssignmentManager(sessions, 0)

	session, err := m.Assign(context.Background(), "club1", "A")
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if session.ID == 0 {
		t.Error("expected session ID to be set")
	}
	if !session.Active {
		t.Error("new session should be active")
	}
	if session.ConversationID != "club1" || session.AdministratorID != "A" {
		t.Errorf("session = %s/%s, want club1/A", session.ConversationID, session.AdministratorID)
	}

	admin, ok, err := m.CurrentAdministrator(context.Background(), "club1")
	if err != nil {
		t.Fatalf("CurrentAdministrator: %v", err)
	}
	if !ok || admin != "A" {
		t.Errorf("CurrentAdministrator = %q, %v, want A, true", admin, ok)
	}
}

func TestAssign_DefaultTimeout(t *testing.T) {
	m := NewAssignmentManager(newMemSessions(), -time.Second)
	if m.timeout != DefaultAssignTimeout {
		t.Errorf("timeout = %v, want %v", m.timeout, DefaultAssignTimeout)
	}
}

func TestAssign_Validation(t *testing.T) {
	m := NewAssignmentManager(newMemSessions(), 0)

	if _, err := m.Assign(context.Background(), "", "A"); !errors.Is(err, ErrInvalid) {
		t.Errorf("empty conversation: err = %v", err)
	}
	if _, err := m.Assign(context.Background(), "club1", ""); !errors.Is(err, ErrInvalid) {
		t.Errorf("empty administrator: err = %v", err)
	}
	if err := m.Release(context.Background(), ""); !errors.Is(err, ErrInvalid) {
		t.Error("expected error releasing empty conversation")
	}
}

func TestAssign_AdministratorAlreadyHolding(t *testing.T) {
	m := NewAssignmentManager(newMemSessions(), 0)
	ctx := context.Background()

	if _, err := m.Assign(ctx, "club1", "A"); err != nil {
		t.Fatalf("first Assign: %v", err)
	}
	_, err := m.Assign(ctx, "club2", "A")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestAssign_ConversationTaken(t *testing.T) {
	m := NewAssignmentManager(newMemSessions(), 0)
	ctx := context.Background()

	if _, err := m.Assign(ctx, "club1", "A"); err != nil {
		t.Fatalf("first Assign: %v", err)
	}
	_, err := m.Assign(ctx, "club1", "B")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestAssign_SameAdministratorTwice(t *testing.T) {
	m := NewAssignmentManager(newMemSessions(), 0)
	ctx := context.Background()

	if _, err := m.Assign(ctx, "club1", "A"); err != nil {
		t.Fatalf("first Assign: %v", err)
	}
	if _, err := m.Assign(ctx, "club1", "A"); !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestAssign_SaveConflictPropagates(t *testing.T) {
	sessions := newMemSessions()
	sessions.saveErr = fmt.Errorf("store: %w", ErrConflict)
	m := NewAssignmentManager(sessions, 0)

	_, err := m.Assign(context.Background(), "club1", "A")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestAssign_StoreError(t *testing.T) {
	sessions := newMemSessions()
	sessions.findErr = errors.New("disk on fire")
	m := NewAssignmentManager(sessions, 0)

	_, err := m.Assign(context.Background(), "club1", "A")
	if err == nil {
		t.Fatal("expected store error")
	}
	for _, kind := range []error{ErrConflict, ErrBusy, ErrAborted} {
		if errors.Is(err, kind) {
			t.Errorf("store error classified as %v", kind)
		}
	}
}

// --- Concurrency ---

func TestAssign_ConcurrentSameAdministrator(t *testing.T) {
	sessions := newMemSessions()
	sessions.lookup = time.Millisecond
	m := NewAssignmentManager(sessions, 5*time.Second)

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.Assign(context.Background(), fmt.Sprintf("club%d", i), "A")
		}(i)
	}
	wg.Wait()

	wins := 0
	for i, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrConflict), errors.Is(err, ErrBusy):
		default:
			t.Errorf("call %d: unexpected error %v", i, err)
		}
	}
	if wins != 1 {
		t.Errorf("successful assignments = %d, want exactly 1", wins)
	}
	active := 0
	for _, s := range sessions.all() {
		if s.Active && s.AdministratorID == "A" {
			active++
		}
	}
	if active != 1 {
		t.Errorf("active sessions for A = %d, want 1", active)
	}
}

func TestAssign_ConcurrentSameConversation(t *testing.T) {
	sessions := newMemSessions()
	sessions.lookup = time.Millisecond
	m := NewAssignmentManager(sessions, 5*time.Second)

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.Assign(context.Background(), "club1", fmt.Sprintf("admin%d", i))
		}(i)
	}
	wg.Wait()

	wins := 0
	for i, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrConflict):
		default:
			t.Errorf("call %d: unexpected error %v", i, err)
		}
	}
	if wins != 1 {
		t.Errorf("successful assignments = %d, want exactly 1", wins)
	}
}

// blockFirstLookup makes the first FindActiveByAdministrator for admin park
// until the returned release func is called.
func blockFirstLookup(sessions *memSessions, admin string) (entered <-chan struct{}, release func()) {
	in := make(chan struct{})
	gate := make(chan struct{})
	var once sync.Once
	sessions.onFindBy = func(id string) {
		if id != admin {
			return
		}
		first := false
		once.Do(func() { first = true })
		if first {
			close(in)
			<-gate
		}
	}
	var releaseOnce sync.Once
	return in, func() { releaseOnce.Do(func() { close(gate) }) }
}

func TestAssign_BusyWhileAdministratorMidOperation(t *testing.T) {
	sessions := newMemSessions()
	entered, release := blockFirstLookup(sessions, "A")
	defer release()
	m := NewAssignmentManager(sessions, 50*time.Millisecond)

	firstDone := make(chan error, 1)
	go func() {
		_, err := m.Assign(context.Background(), "club1", "A")
		firstDone <- err
	}()
	<-entered

	findsBefore := sessions.findCount()
	_, err := m.Assign(context.Background(), "club2", "A")
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("err = %v, want ErrBusy", err)
	}
	if got := sessions.findCount(); got != findsBefore {
		t.Errorf("busy assignment touched storage: finds %d -> %d", findsBefore, got)
	}

	release()
	if err := <-firstDone; err != nil {
		t.Fatalf("first Assign: %v", err)
	}
}

func TestAssign_AbortedWhileWaiting(t *testing.T) {
	sessions := newMemSessions()
	entered, release := blockFirstLookup(sessions, "A")
	defer release()
	m := NewAssignmentManager(sessions, 5*time.Second)

	go m.Assign(context.Background(), "club1", "A")
	<-entered

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := m.Assign(ctx, "club2", "A")
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("err = %v, want ErrAborted", err)
	}
	if errors.Is(err, ErrBusy) {
		t.Error("aborted wait must not be reported as busy")
	}
}

// ctxSessions fails every call whose context is already done, like a real
// database driver would.
type ctxSessions struct {
	*memSessions
	afterFindBy func()
}

func (s *ctxSessions) FindActiveByAdministrator(ctx context.Context, administratorID string) (*models.ChatSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	held, err := s.memSessions.FindActiveByAdministrator(ctx, administratorID)
	if s.afterFindBy != nil {
		s.afterFindBy()
	}
	return held, err
}

func (s *ctxSessions) FindActiveByConversation(ctx context.Context, conversationID string) (*models.ChatSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.memSessions.FindActiveByConversation(ctx, conversationID)
}

func (s *ctxSessions) SaveSession(ctx context.Context, session *models.ChatSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.memSessions.SaveSession(ctx, session)
}

func TestAssign_CompletesWhenCancelledAfterAdministratorLock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sessions := &ctxSessions{memSessions: newMemSessions(), afterFindBy: cancel}
	m := NewAssignmentManager(sessions, 0)

	session, err := m.Assign(ctx, "club1", "A")
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if session.ID == 0 || !session.Active {
		t.Errorf("session = %+v, want saved active session", session)
	}
	admin, ok, err := m.CurrentAdministrator(context.Background(), "club1")
	if err != nil || !ok || admin != "A" {
		t.Errorf("CurrentAdministrator = %q, %v, %v, want A, true, nil", admin, ok, err)
	}
}

func TestAssign_DisjointIDsRunInParallel(t *testing.T) {
	sessions := newMemSessions()
	entered, release := blockFirstLookup(sessions, "A")
	defer release()
	m := NewAssignmentManager(sessions, 5*time.Second)

	go m.Assign(context.Background(), "club1", "A")
	<-entered

	done := make(chan error, 1)
	go func() {
		_, err := m.Assign(context.Background(), "club2", "B")
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Assign club2/B: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("assignment with disjoint ids was serialized behind a blocked one")
	}
}

// --- Release ---

func TestRelease_ReenablesAssignment(t *testing.T) {
	m := NewAssignmentManager(newMemSessions(), 0)
	ctx := context.Background()

	if _, err := m.Assign(ctx, "club1", "A"); err != nil {
		t.Fatalf("Assign A: %v", err)
	}
	if err := m.Release(ctx, "club1"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := m.Assign(ctx, "club1", "B"); err != nil {
		t.Fatalf("Assign B after release: %v", err)
	}
	// A is free again too.
	if _, err := m.Assign(ctx, "club2", "A"); err != nil {
		t.Fatalf("Assign A to club2 after release: %v", err)
	}
}

func TestRelease_Idempotent(t *testing.T) {
	sessions := newMemSessions()
	m := NewAssignmentManager(sessions, 0)
	ctx := context.Background()

	if err := m.Release(ctx, "club1"); err != nil {
		t.Fatalf("Release on free conversation: %v", err)
	}
	if _, err := m.Assign(ctx, "club1", "A"); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := m.Release(ctx, "club1"); err != nil {
			t.Fatalf("Release #%d: %v", i+1, err)
		}
	}
	if len(sessions.all()) != 1 {
		t.Errorf("sessions = %d, want 1 (release must not create rows)", len(sessions.all()))
	}
}

func TestRelease_KeepsAuditTrail(t *testing.T) {
	sessions := newMemSessions()
	m := NewAssignmentManager(sessions, 0)
	ctx := context.Background()

	m.Assign(ctx, "club1", "A")
	m.Release(ctx, "club1")
	m.Assign(ctx, "club1", "B")

	rows := sessions.all()
	if len(rows) != 2 {
		t.Fatalf("sessions = %d, want 2", len(rows))
	}
	if rows[0].Active || rows[0].ReleasedAt == nil {
		t.Errorf("first session = %+v, want inactive with ReleasedAt", rows[0])
	}
	if rows[0].ActiveConversation != nil || rows[0].ActiveAdministrator != nil {
		t.Error("released session must clear active-key columns")
	}
	if !rows[1].Active || rows[1].AdministratorID != "B" {
		t.Errorf("second session = %+v, want active for B", rows[1])
	}

	_, ok, _ := m.CurrentAdministrator(ctx, "club3")
	if ok {
		t.Error("CurrentAdministrator on unknown conversation should report none")
	}
}

func TestKeyedLocks_Reclaimed(t *testing.T) {
	m := NewAssignmentManager(newMemSessions(), 0)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		m.Assign(ctx, fmt.Sprintf("club%d", i), fmt.Sprintf("admin%d", i))
		m.Release(ctx, fmt.Sprintf("club%d", i))
	}
	if n := m.administrators.size(); n != 0 {
		t.Errorf("administrator lock entries = %d, want 0", n)
	}
	if n := m.conversations.size(); n != 0 {
		t.Errorf("conversation lock entries = %d, want 0", n)
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{fmt.Errorf("x: %w", ErrConflict), "conflict"},
		{fmt.Errorf("x: %w", ErrBusy), "busy"},
		{fmt.Errorf("x: %w", ErrAborted), "aborted"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		if got := outcome(tt.err); got != tt.want {
			t.Errorf("outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
