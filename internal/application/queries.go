package application

import (
	"sort"
	"time"

	"github.com/bnema/collab-core/internal/domain"
)

// SyncState is the point-in-time projection a polling client pulls: current
// version, who is present, and the operations it has not replayed yet.
type SyncState struct {
	DocumentID        domain.DocumentID
	Version           int
	Participants      []ParticipantView
	PendingOperations []domain.Operation
}

// ParticipantView hides a stale cursor by contract: Cursor is nil whenever
// the participant is inactive, even though the underlying session still
// remembers the position.
type ParticipantView struct {
	UserID     domain.UserID
	Name       string
	Color      string
	IsActive   bool
	Cursor     *CursorView
	LastUpdate time.Time
}

type CursorView struct {
	Position  int
	Selection *domain.Selection
}

type ContentState struct {
	Content string
	Version int
}

// SessionInfo is the operational/monitoring projection of one live session.
type SessionInfo struct {
	DocumentID         domain.DocumentID
	ParticipantCount   int
	ActiveParticipants int
	Version            int
	LastActivity       time.Time
}

// GetState returns the session snapshot plus the retained operations with
// version greater than sinceVersion. Pass a negative sinceVersion for a
// presence-only snapshot with no operation replay. When the log has already
// evicted the requested range, GetState returns ErrStaleSyncWindow and the
// caller must fall back to GetContent for a full resync.
func (r *Registry) GetState(documentID domain.DocumentID, sinceVersion int) (SyncState, error) {
	entry, ok := r.lookup(documentID)
	if !ok {
		return SyncState{}, domain.ErrSessionNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.removed {
		return SyncState{}, domain.ErrSessionNotFound
	}

	state := SyncState{
		DocumentID:   documentID,
		Version:      entry.session.Version,
		Participants: r.participantViews(entry.session, r.clock.Now()),
	}

	if sinceVersion >= 0 {
		ops, ok := entry.session.OperationsSince(sinceVersion)
		if !ok {
			return SyncState{}, domain.ErrStaleSyncWindow
		}
		state.PendingOperations = ops
	}

	return state, nil
}

// GetContent is the full-resync read: the authoritative content and the
// version it corresponds to.
func (r *Registry) GetContent(documentID domain.DocumentID) (ContentState, error) {
	entry, ok := r.lookup(documentID)
	if !ok {
		return ContentState{}, domain.ErrSessionNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.removed {
		return ContentState{}, domain.ErrSessionNotFound
	}

	return ContentState{Content: entry.session.Content, Version: entry.session.Version}, nil
}

// ListActiveSessions reports every live session, ordered by document ID.
func (r *Registry) ListActiveSessions() []SessionInfo {
	r.mu.RLock()
	entries := make(map[domain.DocumentID]*sessionEntry, len(r.sessions))
	for id, entry := range r.sessions {
		entries[id] = entry
	}
	r.mu.RUnlock()

	now := r.clock.Now()
	infos := make([]SessionInfo, 0, len(entries))
	for id, entry := range entries {
		entry.mu.Lock()
		if entry.removed {
			entry.mu.Unlock()
			continue
		}
		info := SessionInfo{
			DocumentID:       id,
			ParticipantCount: len(entry.session.Participants),
			Version:          entry.session.Version,
			LastActivity:     entry.session.LastActivity,
		}
		for _, p := range entry.session.Participants {
			if p.ActiveAt(now, r.opts.ActivityThreshold) {
				info.ActiveParticipants++
			}
		}
		entry.mu.Unlock()
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].DocumentID < infos[j].DocumentID
	})

	return infos
}

// participantViews snapshots the participant map. Liveness is computed here,
// lazily, from last-update timestamps; no background timer maintains it.
// Caller holds the session entry lock.
func (r *Registry) participantViews(s *domain.Session, now time.Time) []ParticipantView {
	views := make([]ParticipantView, 0, len(s.Participants))
	for _, p := range s.Participants {
		view := ParticipantView{
			UserID:     p.UserID,
			Name:       p.Name,
			Color:      p.Color,
			IsActive:   p.ActiveAt(now, r.opts.ActivityThreshold),
			LastUpdate: p.LastUpdate,
		}
		if view.IsActive {
			cursor := CursorView{Position: p.Position}
			if p.Selection != nil {
				selection := *p.Selection
				cursor.Selection = &selection
			}
			view.Cursor = &cursor
		}
		views = append(views, view)
	}

	sort.Slice(views, func(i, j int) bool {
		return views[i].UserID < views[j].UserID
	})

	return views
}
