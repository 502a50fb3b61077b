package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bnema/collab-core/internal/domain"
	"github.com/bnema/collab-core/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	configName         = "config"
	configType         = "toml"
	documentsPathKey   = "documents.path"
	documentsFileMode  = 0o600
	documentsDirMode   = 0o700
	documentsConfigDir = ".collab"
	documentsFile      = "documents.toml"
	tempFilePattern    = ".documents-*.toml.tmp"
)

// Store is a file-backed DocumentStore: the collaboration core's external
// file-storage collaborator. It supplies initial content on first join and
// persists materialized session content on explicit save.
type Store struct {
	documentsPath string
	mu            *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.DocumentStore = (*Store)(nil)

func NewStore(cfg *viper.Viper) (*Store, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	defaultPath := filepath.Join(homeDir, documentsConfigDir, documentsFile)

	cfg.SetConfigName(configName)
	cfg.SetConfigType(configType)
	cfg.AddConfigPath(filepath.Join(homeDir, documentsConfigDir))
	cfg.SetDefault(documentsPathKey, defaultPath)

	err = cfg.ReadInConfig()
	if err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	documentsPath := cfg.GetString(documentsPathKey)
	if documentsPath == "" {
		return nil, errors.New("documents path is empty")
	}
	documentsPath, err = normalizeDocumentsPath(documentsPath)
	if err != nil {
		return nil, err
	}

	return &Store{documentsPath: documentsPath, mu: lockForPath(documentsPath)}, nil
}

func (s *Store) Load(ctx context.Context, id domain.DocumentID) (domain.StoredDocument, error) {
	if err := ctx.Err(); err != nil {
		return domain.StoredDocument{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.readSchema()
	if err != nil {
		return domain.StoredDocument{}, err
	}

	for _, entry := range file.Documents {
		if entry.ID == string(id) {
			return fromSchema(entry), nil
		}
	}

	return domain.StoredDocument{}, domain.ErrDocumentNotFound
}

func (s *Store) Save(ctx context.Context, doc domain.StoredDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.readSchema()
	if err != nil {
		return err
	}
	file.applyDefaults()

	encoded := toSchema(doc)
	updated := false
	for i := range file.Documents {
		if file.Documents[i].ID == encoded.ID {
			file.Documents[i] = encoded
			updated = true
			break
		}
	}
	if !updated {
		file.Documents = append(file.Documents, encoded)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return s.writeSchema(file)
}

func (s *Store) List(ctx context.Context) ([]domain.StoredDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.readSchema()
	if err != nil {
		return nil, err
	}

	docs := make([]domain.StoredDocument, 0, len(file.Documents))
	for _, entry := range file.Documents {
		docs = append(docs, fromSchema(entry))
	}

	return docs, nil
}

func (s *Store) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(s.documentsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{}, nil
		}
		return fileSchema{}, fmt.Errorf("read documents file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode documents file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func (s *Store) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(s.documentsPath), documentsDirMode); err != nil {
		return fmt.Errorf("create documents directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode documents file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(s.documentsPath), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp documents file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp documents file: %w", err)
	}

	if err := tempFile.Chmod(documentsFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp documents file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp documents file: %w", err)
	}

	if err := os.Rename(tempName, s.documentsPath); err != nil {
		return fmt.Errorf("replace documents file: %w", err)
	}

	cleanup = false

	if err := os.Chmod(s.documentsPath, documentsFileMode); err != nil {
		return fmt.Errorf("chmod documents file: %w", err)
	}

	return nil
}

func normalizeDocumentsPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve documents path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}
