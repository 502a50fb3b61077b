package toml

import (
	"fmt"
	"time"

	"github.com/bnema/collab-core/internal/domain"
)

const currentSchemaVersion = 1

type fileSchema struct {
	Version   int              `toml:"version"`
	Documents []documentSchema `toml:"documents"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported documents schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type documentSchema struct {
	ID        string `toml:"id"`
	Content   string `toml:"content"`
	Version   int    `toml:"session_version"`
	UpdatedAt string `toml:"updated_at,omitempty"`
}

func toSchema(doc domain.StoredDocument) documentSchema {
	entry := documentSchema{
		ID:      string(doc.ID),
		Content: doc.Content,
		Version: doc.Version,
	}
	if !doc.UpdatedAt.IsZero() {
		entry.UpdatedAt = doc.UpdatedAt.UTC().Format(time.RFC3339)
	}

	return entry
}

func fromSchema(entry documentSchema) domain.StoredDocument {
	doc := domain.StoredDocument{
		ID:      domain.DocumentID(entry.ID),
		Content: entry.Content,
		Version: entry.Version,
	}
	if entry.UpdatedAt != "" {
		if parsed, err := time.Parse(time.RFC3339, entry.UpdatedAt); err == nil {
			doc.UpdatedAt = parsed
		}
	}

	return doc
}
