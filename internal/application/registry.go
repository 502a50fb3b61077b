package application

import (
	"errors"
	"sync"
	"time"

	"github.com/bnema/collab-core/internal/domain"
	"github.com/bnema/collab-core/internal/ports"
	"github.com/google/uuid"
)

var ErrUnsupportedOperationType = errors.New("unsupported operation type")

const (
	DefaultGracePeriod       = 5 * time.Minute
	DefaultActivityThreshold = 30 * time.Second
)

type Options struct {
	// GracePeriod is how long an empty session stays reclaimable before the
	// scheduled cleanup may delete it.
	GracePeriod time.Duration
	// ActivityThreshold bounds how old a participant's last update may be
	// for the participant to still count as active.
	ActivityThreshold time.Duration
	// LogCapacity bounds the per-session operation log.
	LogCapacity int
}

func (o Options) withDefaults() Options {
	if o.GracePeriod <= 0 {
		o.GracePeriod = DefaultGracePeriod
	}
	if o.ActivityThreshold <= 0 {
		o.ActivityThreshold = DefaultActivityThreshold
	}
	if o.LogCapacity <= 0 {
		o.LogCapacity = domain.DefaultLogCapacity
	}
	return o
}

// Registry maps document IDs to live collaboration sessions and owns their
// lifecycle. Each session has its own serialization point (entry mutex), so
// operations on the same document are totally ordered while different
// documents proceed in parallel; the registry mutex is held only for map
// lookups and inserts, never across a session mutation.
type Registry struct {
	opts           Options
	clock          ports.Clock
	scheduler      ports.CleanupScheduler
	newOperationID func() string

	mu       sync.RWMutex
	sessions map[domain.DocumentID]*sessionEntry
}

type sessionEntry struct {
	mu      sync.Mutex
	session *domain.Session
	// removed marks an entry deleted from the map while another goroutine
	// may still hold a stale pointer to it.
	removed bool
}

// NewRegistry builds a registry with the given lifecycle collaborators. A
// nil scheduler disables session reclamation (empty sessions then live until
// Shutdown), which is what most tests want.
func NewRegistry(clock ports.Clock, scheduler ports.CleanupScheduler, opts Options) *Registry {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &Registry{
		opts:           opts.withDefaults(),
		clock:          clock,
		scheduler:      scheduler,
		newOperationID: uuid.NewString,
		sessions:       map[domain.DocumentID]*sessionEntry{},
	}
}

// Join attaches the user to the document's session, creating the session
// from the supplied initial content when none exists. An existing session
// keeps its own content and version; the joiner adopts that state and must
// not assume its locally cached copy won.
func (r *Registry) Join(cmd JoinCommand) JoinResult {
	for {
		entry := r.getOrCreateEntry(cmd.DocumentID, cmd.InitialContent)

		entry.mu.Lock()
		if entry.removed {
			// Reclaimed between lookup and lock; start over.
			entry.mu.Unlock()
			continue
		}

		now := r.clock.Now()
		p := entry.session.Join(cmd.UserID, cmd.Name, now)
		result := JoinResult{
			DocumentID:   cmd.DocumentID,
			Content:      entry.session.Content,
			Version:      entry.session.Version,
			Color:        p.Color,
			Participants: r.participantViews(entry.session, now),
		}
		entry.mu.Unlock()

		return result
	}
}

// Leave removes the participant. It is idempotent: leaving twice, or leaving
// a document with no session, returns false without error. When the last
// participant leaves, deletion is scheduled after the grace period rather
// than done immediately, so reconnect churn keeps the session alive.
func (r *Registry) Leave(documentID domain.DocumentID, userID domain.UserID) bool {
	entry, ok := r.lookup(documentID)
	if !ok {
		return false
	}

	entry.mu.Lock()
	if entry.removed {
		entry.mu.Unlock()
		return false
	}
	removed := entry.session.RemoveParticipant(userID)
	empty := len(entry.session.Participants) == 0
	entry.mu.Unlock()

	if removed && empty && r.scheduler != nil {
		r.scheduler.Schedule(ports.CleanupTask{
			DocumentID: documentID,
			DueAt:      r.clock.Now().Add(r.opts.GracePeriod),
		}, func() {
			r.removeIfEmpty(documentID)
		})
	}

	return removed
}

// UpdateCursor records the participant's cursor and selection. It returns
// false, silently, when the session or the participant does not exist;
// callers must have joined first.
func (r *Registry) UpdateCursor(cmd UpdateCursorCommand) bool {
	entry, ok := r.lookup(cmd.DocumentID)
	if !ok {
		return false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.removed {
		return false
	}

	return entry.session.SetCursor(cmd.UserID, cmd.Position, cmd.Selection, r.clock.Now())
}

// ApplyOperation serializes one edit into the session: content mutation,
// version bump, cursor rebasing for every other participant, and log append
// all happen under the session's single serialization point. A failed
// operation leaves the session untouched.
func (r *Registry) ApplyOperation(cmd ApplyOperationCommand) (domain.Operation, error) {
	if !cmd.Type.Valid() {
		return domain.Operation{}, ErrUnsupportedOperationType
	}

	entry, ok := r.lookup(cmd.DocumentID)
	if !ok {
		return domain.Operation{}, domain.ErrSessionNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.removed {
		return domain.Operation{}, domain.ErrSessionNotFound
	}

	return entry.session.Apply(domain.Operation{
		ID:        r.newOperationID(),
		Author:    cmd.UserID,
		Type:      cmd.Type,
		Position:  cmd.Position,
		Content:   cmd.Content,
		Length:    cmd.Length,
		AppliedAt: r.clock.Now(),
	})
}

// SyncContent force-replaces the session content with the caller's full
// copy, clearing the operation log and bumping the version. Last full sync
// wins; concurrent syncs are not merged and the losing writer is not told.
func (r *Registry) SyncContent(cmd SyncContentCommand) (int, error) {
	entry, ok := r.lookup(cmd.DocumentID)
	if !ok {
		return 0, domain.ErrSessionNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.removed {
		return 0, domain.ErrSessionNotFound
	}

	return entry.session.ReplaceAll(cmd.Content, cmd.UserID, r.clock.Now()), nil
}

// Shutdown stops the cleanup scheduler and drops every session. The
// registry must not be used afterwards.
func (r *Registry) Shutdown() {
	if r.scheduler != nil {
		r.scheduler.Stop()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.sessions {
		entry.mu.Lock()
		entry.removed = true
		entry.mu.Unlock()
	}
	r.sessions = map[domain.DocumentID]*sessionEntry{}
}

func (r *Registry) lookup(documentID domain.DocumentID) (*sessionEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[documentID]
	return entry, ok
}

func (r *Registry) getOrCreateEntry(documentID domain.DocumentID, initialContent string) *sessionEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.sessions[documentID]; ok {
		return entry
	}

	entry := &sessionEntry{
		session: domain.NewSession(documentID, initialContent, r.clock.Now(), r.opts.LogCapacity),
	}
	r.sessions[documentID] = entry
	return entry
}

// removeIfEmpty is the cleanup-task body. It re-checks emptiness at fire
// time instead of relying on timer cancellation: a rejoin during the grace
// window makes the participant set non-empty and the task a no-op.
func (r *Registry) removeIfEmpty(documentID domain.DocumentID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[documentID]
	if !ok {
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if len(entry.session.Participants) > 0 {
		return
	}

	entry.removed = true
	delete(r.sessions, documentID)
}
