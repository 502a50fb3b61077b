package domain

import "time"

type DocumentID string

// DefaultLogCapacity bounds the per-session operation log. Clients further
// behind than this must resync from full content.
const DefaultLogCapacity = 100

// Session is the live collaborative state for one document. It owns the
// authoritative content string, the monotonic version counter, the bounded
// operation log, and the participant map. Session itself is not safe for
// concurrent use: all mutation must go through the single per-session
// serialization point held by the registry.
type Session struct {
	DocumentID   DocumentID
	Content      string
	Version      int
	CreatedAt    time.Time
	LastActivity time.Time
	Participants map[UserID]*Participant

	operations  []Operation
	logCapacity int
}

func NewSession(documentID DocumentID, content string, now time.Time, logCapacity int) *Session {
	if logCapacity <= 0 {
		logCapacity = DefaultLogCapacity
	}

	return &Session{
		DocumentID:   documentID,
		Content:      content,
		CreatedAt:    now,
		LastActivity: now,
		Participants: map[UserID]*Participant{},
		logCapacity:  logCapacity,
	}
}

// Len is the document length in runes; all operation and cursor offsets are
// measured against it.
func (s *Session) Len() int {
	return len([]rune(s.Content))
}

// Join registers the user, assigning a display color on first join. A rejoin
// keeps the previously assigned color and refreshes the display name.
func (s *Session) Join(userID UserID, name string, now time.Time) *Participant {
	if p, ok := s.Participants[userID]; ok {
		p.Name = name
		p.LastUpdate = now
		s.LastActivity = now
		return p
	}

	taken := make(map[string]bool, len(s.Participants))
	for _, p := range s.Participants {
		taken[p.Color] = true
	}

	p := &Participant{
		UserID:     userID,
		Name:       name,
		Color:      PickColor(taken),
		JoinedAt:   now,
		LastUpdate: now,
	}
	s.Participants[userID] = p
	s.LastActivity = now

	return p
}

// RemoveParticipant deletes the participant. Removing a non-member is a
// no-op returning false, so leave stays idempotent.
func (s *Session) RemoveParticipant(userID UserID) bool {
	if _, ok := s.Participants[userID]; !ok {
		return false
	}
	delete(s.Participants, userID)
	return true
}

// SetCursor updates the participant's cursor and optional selection,
// clamping both into document bounds. Returns false if the user never
// joined; callers must join first.
func (s *Session) SetCursor(userID UserID, position int, selection *Selection, now time.Time) bool {
	p, ok := s.Participants[userID]
	if !ok {
		return false
	}

	docLen := s.Len()
	p.Position = clampOffset(position, docLen)
	if selection != nil {
		sel := selection.normalized().clamped(docLen)
		p.Selection = &sel
	} else {
		p.Selection = nil
	}
	p.LastUpdate = now
	s.LastActivity = now

	return true
}

// Apply validates and applies one operation, rebases every other
// participant's cursor against it, appends it to the bounded log, and bumps
// the version. On ErrInvalidRange the session is left untouched: no partial
// mutation, no version bump, no rebasing.
func (s *Session) Apply(op Operation) (Operation, error) {
	if _, ok := s.Participants[op.Author]; !ok {
		return Operation{}, ErrParticipantNotFound
	}

	runes := []rune(s.Content)
	docLen := len(runes)
	if op.Position < 0 || op.Position > docLen {
		return Operation{}, ErrInvalidRange
	}

	var next []rune
	switch op.Type {
	case OperationInsert:
		op.Length = 0
		next = splice(runes, op.Position, 0, []rune(op.Content))
	case OperationDelete:
		if op.Length < 0 || op.Position+op.Length > docLen {
			return Operation{}, ErrInvalidRange
		}
		op.Content = ""
		next = splice(runes, op.Position, op.Length, nil)
	case OperationReplace:
		if op.Length < 0 || op.Position+op.Length > docLen {
			return Operation{}, ErrInvalidRange
		}
		next = splice(runes, op.Position, op.Length, []rune(op.Content))
	default:
		return Operation{}, ErrInvalidRange
	}

	s.Content = string(next)
	s.Version++
	op.Version = s.Version
	s.LastActivity = op.AppliedAt

	s.rebaseCursors(op, len(next))
	if author, ok := s.Participants[op.Author]; ok {
		author.LastUpdate = op.AppliedAt
	}
	s.appendOperation(op)

	return op, nil
}

// ReplaceAll swaps in a full copy of the content, clears the operation log,
// and bumps the version once. This is the conflict-of-last-resort: last full
// sync wins, no merging. Every cursor is clamped into the new bounds.
func (s *Session) ReplaceAll(content string, author UserID, now time.Time) int {
	s.Content = content
	s.Version++
	s.operations = s.operations[:0]
	s.LastActivity = now

	docLen := s.Len()
	for _, p := range s.Participants {
		p.Position = clampOffset(p.Position, docLen)
		if p.Selection != nil {
			sel := p.Selection.clamped(docLen)
			p.Selection = &sel
		}
	}
	if p, ok := s.Participants[author]; ok {
		p.LastUpdate = now
	}

	return s.Version
}

// OperationsSince returns the retained operations with Version > since, in
// order. ok is false when the log has already evicted part of that range (or
// was cleared by a full sync); the caller must fall back to a full content
// resync.
func (s *Session) OperationsSince(since int) (ops []Operation, ok bool) {
	if since >= s.Version {
		return nil, true
	}
	if len(s.operations) == 0 || s.operations[0].Version > since+1 {
		return nil, false
	}

	start := since + 1 - s.operations[0].Version
	out := make([]Operation, s.Version-since)
	copy(out, s.operations[start:])
	return out, true
}

func (s *Session) appendOperation(op Operation) {
	if len(s.operations) >= s.logCapacity {
		drop := len(s.operations) - s.logCapacity + 1
		s.operations = append(s.operations[:0], s.operations[drop:]...)
	}
	s.operations = append(s.operations, op)
}

// rebaseCursors shifts every other participant's cursor so it still points
// at the same logical spot after the content moved. The author's own cursor
// is advanced client-side; here it is only clamped into the new bounds.
func (s *Session) rebaseCursors(op Operation, docLen int) {
	for _, p := range s.Participants {
		if p.UserID != op.Author {
			p.Position = rebaseOffset(p.Position, op)
			if p.Selection != nil {
				sel := Selection{
					Start: rebaseOffset(p.Selection.Start, op),
					End:   rebaseOffset(p.Selection.End, op),
				}.normalized()
				p.Selection = &sel
			}
		}

		p.Position = clampOffset(p.Position, docLen)
		if p.Selection != nil {
			sel := p.Selection.clamped(docLen)
			p.Selection = &sel
		}
	}
}

// rebaseOffset is the classic single-operation cursor transform:
//   - insert shifts any offset at or past the insertion point by the
//     inserted length;
//   - delete collapses offsets inside the removed span to its start and
//     shifts offsets past it back by the removed length;
//   - replace collapses offsets inside the replaced span to just after the
//     inserted text and shifts offsets past the span by the length delta.
func rebaseOffset(offset int, op Operation) int {
	switch op.Type {
	case OperationInsert:
		if offset >= op.Position {
			offset += len([]rune(op.Content))
		}
	case OperationDelete:
		switch {
		case offset >= op.Position+op.Length:
			offset -= op.Length
		case offset >= op.Position:
			offset = op.Position
		}
	case OperationReplace:
		inserted := len([]rune(op.Content))
		switch {
		case offset >= op.Position+op.Length:
			offset += inserted - op.Length
		case offset >= op.Position:
			offset = op.Position + inserted
		}
	}

	if offset < 0 {
		return 0
	}
	return offset
}

func splice(runes []rune, position, remove int, insert []rune) []rune {
	out := make([]rune, 0, len(runes)-remove+len(insert))
	out = append(out, runes[:position]...)
	out = append(out, insert...)
	out = append(out, runes[position+remove:]...)
	return out
}
