package ports

import (
	"context"

	"github.com/bnema/collab-core/internal/domain"
)

// DocumentStore is the external file-storage collaborator. It supplies a
// document's initial content on first join and persists materialized session
// content on explicit save; the collaboration core itself never touches
// durable storage.
type DocumentStore interface {
	Load(ctx context.Context, id domain.DocumentID) (domain.StoredDocument, error)
	Save(ctx context.Context, doc domain.StoredDocument) error
	List(ctx context.Context) ([]domain.StoredDocument, error)
}
