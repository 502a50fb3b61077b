package application

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bnema/collab-core/internal/domain"
	"github.com/bnema/collab-core/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type scheduledTask struct {
	task ports.CleanupTask
	fire func()
}

// manualScheduler captures cleanup tasks so tests decide when they fire,
// without real wall-clock waits.
type manualScheduler struct {
	mu    sync.Mutex
	tasks []scheduledTask
}

func (s *manualScheduler) Schedule(task ports.CleanupTask, fire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, scheduledTask{task: task, fire: fire})
}

func (s *manualScheduler) Stop() {}

func (s *manualScheduler) fireAll() {
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = nil
	s.mu.Unlock()

	for _, t := range tasks {
		t.fire()
	}
}

func (s *manualScheduler) pending() []ports.CleanupTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ports.CleanupTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.task)
	}
	return out
}

func join(t *testing.T, r *Registry, doc domain.DocumentID, user domain.UserID, content string) JoinResult {
	t.Helper()
	return r.Join(JoinCommand{DocumentID: doc, UserID: user, Name: string(user), InitialContent: content})
}

func TestJoinCreatesSessionThenAdoptsExistingState(t *testing.T) {
	t.Parallel()

	r := NewRegistry(newFakeClock(), nil, Options{})
	defer r.Shutdown()

	first := join(t, r, "docs/a.md", "alice", "hello")
	assert.Equal(t, "hello", first.Content)
	assert.Equal(t, 0, first.Version)
	assert.Equal(t, domain.Palette[0], first.Color)

	_, err := r.ApplyOperation(ApplyOperationCommand{
		DocumentID: "docs/a.md", UserID: "alice",
		Type: domain.OperationInsert, Position: 5, Content: "!",
	})
	require.NoError(t, err)

	// Bob's locally cached copy must not win over the live session.
	second := join(t, r, "docs/a.md", "bob", "a stale local copy")
	assert.Equal(t, "hello!", second.Content)
	assert.Equal(t, 1, second.Version)
	assert.NotEqual(t, first.Color, second.Color)
	assert.Len(t, second.Participants, 2)
}

func TestLeaveIsIdempotent(t *testing.T) {
	t.Parallel()

	r := NewRegistry(newFakeClock(), nil, Options{})
	defer r.Shutdown()

	join(t, r, "docs/a.md", "alice", "hello")

	assert.True(t, r.Leave("docs/a.md", "alice"))
	assert.False(t, r.Leave("docs/a.md", "alice"))
	assert.False(t, r.Leave("docs/missing.md", "alice"))
}

func TestSessionReclaimedAfterGracePeriod(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	scheduler := &manualScheduler{}
	r := NewRegistry(clock, scheduler, Options{})
	defer r.Shutdown()

	join(t, r, "docs/a.md", "alice", "hello")
	leftAt := clock.Now()
	require.True(t, r.Leave("docs/a.md", "alice"))

	tasks := scheduler.pending()
	require.Len(t, tasks, 1)
	assert.Equal(t, domain.DocumentID("docs/a.md"), tasks[0].DocumentID)
	assert.Equal(t, leftAt.Add(DefaultGracePeriod), tasks[0].DueAt)

	// Still retrievable during the whole grace window.
	clock.Advance(5*time.Minute - time.Second)
	state, err := r.GetContent("docs/a.md")
	require.NoError(t, err)
	assert.Equal(t, "hello", state.Content)

	clock.Advance(time.Second)
	scheduler.fireAll()

	_, err = r.GetContent("docs/a.md")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = r.GetState("docs/a.md", -1)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRejoinDuringGraceWindowSkipsDeletion(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	scheduler := &manualScheduler{}
	r := NewRegistry(clock, scheduler, Options{})
	defer r.Shutdown()

	join(t, r, "docs/a.md", "alice", "hello")
	require.True(t, r.Leave("docs/a.md", "alice"))

	clock.Advance(time.Minute)
	join(t, r, "docs/a.md", "alice", "ignored")

	// The stale task fires anyway; the emptiness re-check keeps the session.
	clock.Advance(5 * time.Minute)
	scheduler.fireAll()

	state, err := r.GetContent("docs/a.md")
	require.NoError(t, err)
	assert.Equal(t, "hello", state.Content)
}

func TestUpdateCursorRequiresJoin(t *testing.T) {
	t.Parallel()

	r := NewRegistry(newFakeClock(), nil, Options{})
	defer r.Shutdown()

	assert.False(t, r.UpdateCursor(UpdateCursorCommand{DocumentID: "docs/a.md", UserID: "alice", Position: 0}))

	join(t, r, "docs/a.md", "alice", "hello")
	assert.False(t, r.UpdateCursor(UpdateCursorCommand{DocumentID: "docs/a.md", UserID: "bob", Position: 0}))
	assert.True(t, r.UpdateCursor(UpdateCursorCommand{DocumentID: "docs/a.md", UserID: "alice", Position: 3}))
}

func TestApplyOperationFailures(t *testing.T) {
	t.Parallel()

	r := NewRegistry(newFakeClock(), nil, Options{})
	defer r.Shutdown()

	_, err := r.ApplyOperation(ApplyOperationCommand{
		DocumentID: "docs/a.md", UserID: "alice",
		Type: domain.OperationInsert, Position: 0, Content: "x",
	})
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	join(t, r, "docs/a.md", "alice", "hello")

	_, err = r.ApplyOperation(ApplyOperationCommand{
		DocumentID: "docs/a.md", UserID: "alice",
		Type: domain.OperationType("scribble"), Position: 0,
	})
	require.ErrorIs(t, err, ErrUnsupportedOperationType)

	_, err = r.ApplyOperation(ApplyOperationCommand{
		DocumentID: "docs/a.md", UserID: "alice",
		Type: domain.OperationDelete, Position: 2, Length: 10,
	})
	require.ErrorIs(t, err, domain.ErrInvalidRange)

	_, err = r.ApplyOperation(ApplyOperationCommand{
		DocumentID: "docs/a.md", UserID: "bob",
		Type: domain.OperationInsert, Position: 0, Content: "x",
	})
	require.ErrorIs(t, err, domain.ErrParticipantNotFound)

	state, err := r.GetContent("docs/a.md")
	require.NoError(t, err)
	assert.Equal(t, "hello", state.Content)
	assert.Equal(t, 0, state.Version)
}

func TestGetStateReplaysPendingOperations(t *testing.T) {
	t.Parallel()

	r := NewRegistry(newFakeClock(), nil, Options{})
	defer r.Shutdown()

	join(t, r, "docs/a.md", "alice", "hello")
	for i := 0; i < 5; i++ {
		_, err := r.ApplyOperation(ApplyOperationCommand{
			DocumentID: "docs/a.md", UserID: "alice",
			Type: domain.OperationInsert, Position: 0, Content: "x",
		})
		require.NoError(t, err)
	}

	state, err := r.GetState("docs/a.md", 3)
	require.NoError(t, err)
	assert.Equal(t, 5, state.Version)
	require.Len(t, state.PendingOperations, 2)
	assert.Equal(t, 4, state.PendingOperations[0].Version)
	assert.Equal(t, 5, state.PendingOperations[1].Version)

	presence, err := r.GetState("docs/a.md", -1)
	require.NoError(t, err)
	assert.Empty(t, presence.PendingOperations)
}

func TestGetStateStaleSyncWindowDirectsToFullResync(t *testing.T) {
	t.Parallel()

	r := NewRegistry(newFakeClock(), nil, Options{})
	defer r.Shutdown()

	join(t, r, "docs/a.md", "alice", "")
	for i := 0; i < 150; i++ {
		_, err := r.ApplyOperation(ApplyOperationCommand{
			DocumentID: "docs/a.md", UserID: "alice",
			Type: domain.OperationInsert, Position: 0, Content: "x",
		})
		require.NoError(t, err)
	}

	_, err := r.GetState("docs/a.md", 10)
	require.ErrorIs(t, err, domain.ErrStaleSyncWindow)

	// The documented reconciliation path still works.
	content, err := r.GetContent("docs/a.md")
	require.NoError(t, err)
	assert.Equal(t, 150, content.Version)
	assert.Len(t, content.Content, 150)

	state, err := r.GetState("docs/a.md", 120)
	require.NoError(t, err)
	assert.Len(t, state.PendingOperations, 30)
}

func TestGetStateHidesInactiveCursors(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	r := NewRegistry(clock, nil, Options{})
	defer r.Shutdown()

	join(t, r, "docs/a.md", "alice", "hello")
	join(t, r, "docs/a.md", "bob", "")
	require.True(t, r.UpdateCursor(UpdateCursorCommand{DocumentID: "docs/a.md", UserID: "bob", Position: 2}))

	clock.Advance(31 * time.Second)
	require.True(t, r.UpdateCursor(UpdateCursorCommand{DocumentID: "docs/a.md", UserID: "alice", Position: 4}))

	state, err := r.GetState("docs/a.md", -1)
	require.NoError(t, err)
	require.Len(t, state.Participants, 2)

	alice, bob := state.Participants[0], state.Participants[1]
	require.Equal(t, domain.UserID("alice"), alice.UserID)
	assert.True(t, alice.IsActive)
	require.NotNil(t, alice.Cursor)
	assert.Equal(t, 4, alice.Cursor.Position)

	require.Equal(t, domain.UserID("bob"), bob.UserID)
	assert.False(t, bob.IsActive, "no update for 31s")
	assert.Nil(t, bob.Cursor, "stale cursor is hidden, not deleted")
}

func TestSyncContentWinsWholesale(t *testing.T) {
	t.Parallel()

	r := NewRegistry(newFakeClock(), nil, Options{})
	defer r.Shutdown()

	join(t, r, "docs/a.md", "alice", "hello")
	_, err := r.ApplyOperation(ApplyOperationCommand{
		DocumentID: "docs/a.md", UserID: "alice",
		Type: domain.OperationInsert, Position: 5, Content: " world",
	})
	require.NoError(t, err)

	version, err := r.SyncContent(SyncContentCommand{DocumentID: "docs/a.md", UserID: "alice", Content: "rewritten"})
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	content, err := r.GetContent("docs/a.md")
	require.NoError(t, err)
	assert.Equal(t, "rewritten", content.Content)

	// The cleared log can no longer bridge the gap for stragglers.
	_, err = r.GetState("docs/a.md", 1)
	require.ErrorIs(t, err, domain.ErrStaleSyncWindow)

	_, err = r.SyncContent(SyncContentCommand{DocumentID: "docs/nope.md", UserID: "alice", Content: ""})
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestListActiveSessions(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	r := NewRegistry(clock, nil, Options{})
	defer r.Shutdown()

	assert.Empty(t, r.ListActiveSessions())

	join(t, r, "docs/b.md", "bob", "b")
	clock.Advance(31 * time.Second)
	join(t, r, "docs/a.md", "alice", "a")
	join(t, r, "docs/a.md", "carol", "")

	infos := r.ListActiveSessions()
	require.Len(t, infos, 2)
	assert.Equal(t, domain.DocumentID("docs/a.md"), infos[0].DocumentID)
	assert.Equal(t, 2, infos[0].ParticipantCount)
	assert.Equal(t, 2, infos[0].ActiveParticipants)
	assert.Equal(t, domain.DocumentID("docs/b.md"), infos[1].DocumentID)
	assert.Equal(t, 1, infos[1].ParticipantCount)
	assert.Equal(t, 0, infos[1].ActiveParticipants)
}

func TestDocumentsEditInParallel(t *testing.T) {
	t.Parallel()

	r := NewRegistry(newFakeClock(), nil, Options{})
	defer r.Shutdown()

	const docs = 8
	const opsPerDoc = 50

	var wg sync.WaitGroup
	for i := 0; i < docs; i++ {
		doc := domain.DocumentID(fmt.Sprintf("docs/%d.md", i))
		join(t, r, doc, "alice", "")

		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < opsPerDoc; j++ {
				_, err := r.ApplyOperation(ApplyOperationCommand{
					DocumentID: doc, UserID: "alice",
					Type: domain.OperationInsert, Position: 0, Content: "x",
				})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	for i := 0; i < docs; i++ {
		doc := domain.DocumentID(fmt.Sprintf("docs/%d.md", i))
		content, err := r.GetContent(doc)
		require.NoError(t, err)
		assert.Equal(t, opsPerDoc, content.Version)
		assert.Len(t, content.Content, opsPerDoc)
	}
}

func TestShutdownDropsSessions(t *testing.T) {
	t.Parallel()

	r := NewRegistry(newFakeClock(), &manualScheduler{}, Options{})
	join(t, r, "docs/a.md", "alice", "hello")

	r.Shutdown()

	_, err := r.GetContent("docs/a.md")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}
