package application

import (
	"github.com/bnema/collab-core/internal/domain"
)

type JoinCommand struct {
	DocumentID     domain.DocumentID
	UserID         domain.UserID
	Name           string
	InitialContent string
}

// JoinResult carries the state the joining client needs to render: the
// adopted session content and version, the color assigned to the user, and
// who else is present.
type JoinResult struct {
	DocumentID   domain.DocumentID
	Content      string
	Version      int
	Color        string
	Participants []ParticipantView
}

type UpdateCursorCommand struct {
	DocumentID domain.DocumentID
	UserID     domain.UserID
	Position   int
	Selection  *domain.Selection
}

type ApplyOperationCommand struct {
	DocumentID domain.DocumentID
	UserID     domain.UserID
	Type       domain.OperationType
	Position   int
	Content    string
	Length     int
}

type SyncContentCommand struct {
	DocumentID domain.DocumentID
	UserID     domain.UserID
	Content    string
}
