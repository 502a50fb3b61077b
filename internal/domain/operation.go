package domain

import "time"

type OperationType string

const (
	OperationInsert  OperationType = "insert"
	OperationDelete  OperationType = "delete"
	OperationReplace OperationType = "replace"
)

func (t OperationType) Valid() bool {
	switch t {
	case OperationInsert, OperationDelete, OperationReplace:
		return true
	default:
		return false
	}
}

// Operation is a single applied edit. Once applied it is immutable; the
// bounded session log only ever retires whole entries, never rewrites them.
// Position and Length are rune offsets into the session content, and Version
// is the session version the operation produced.
type Operation struct {
	ID        string
	Author    UserID
	Type      OperationType
	Position  int
	Content   string
	Length    int
	Version   int
	AppliedAt time.Time
}
