package domain

import (
	"errors"
	"time"
)

var ErrDocumentNotFound = errors.New("document not found")

// StoredDocument is the durable shape a file-storage collaborator holds for
// a document: the last materialized content and the session version it was
// saved at.
type StoredDocument struct {
	ID        DocumentID
	Content   string
	Version   int
	UpdatedAt time.Time
}
