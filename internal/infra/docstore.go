package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/trackd/internal/domain"
)

// Envelope keys shared by the file-backed stores.
const (
	envelopeVersionKey = "schema_version"
	envelopeDataKey    = "data"
)

// JSONDocumentStore keeps a family in a JSON file. Comments in hand-edited
// files are tolerated on read.
type JSONDocumentStore struct {
	family string
	path   string
}

// NewJSONDocumentStore creates a JSON-backed family store.
func NewJSONDocumentStore(family, path string) *JSONDocumentStore {
	return &JSONDocumentStore{family: family, path: path}
}

// Family returns the family identifier.
func (s *JSONDocumentStore) Family() string { return s.family }

// Load reads the family file.
func (s *JSONDocumentStore) Load(ctx context.Context) (domain.Document, int, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Document{}, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	var raw map[string]any
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return nil, 0, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	doc, version := unwrapEnvelope(raw)
	return doc, version, nil
}

// Save writes the family file atomically.
func (s *JSONDocumentStore) Save(ctx context.Context, doc domain.Document, version int) error {
	data, err := json.MarshalIndent(wrapEnvelope(doc, version), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", s.family, err)
	}
	return writeFamilyFile(s.path, append(data, '\n'))
}

// YAMLDocumentStore keeps a family in a YAML file.
type YAMLDocumentStore struct {
	family string
	path   string
}

// NewYAMLDocumentStore creates a YAML-backed family store.
func NewYAMLDocumentStore(family, path string) *YAMLDocumentStore {
	return &YAMLDocumentStore{family: family, path: path}
}

// Family returns the family identifier.
func (s *YAMLDocumentStore) Family() string { return s.family }

// Load reads the family file.
func (s *YAMLDocumentStore) Load(ctx context.Context) (domain.Document, int, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Document{}, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	doc, version := unwrapEnvelope(raw)
	return doc, version, nil
}

// Save writes the family file atomically.
func (s *YAMLDocumentStore) Save(ctx context.Context, doc domain.Document, version int) error {
	data, err := yaml.Marshal(wrapEnvelope(doc, version))
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", s.family, err)
	}
	return writeFamilyFile(s.path, data)
}

// unwrapEnvelope splits a stored file into document and version.
// Files written before versioning have no envelope and are version 0.
func unwrapEnvelope(raw map[string]any) (domain.Document, int) {
	if raw == nil {
		return domain.Document{}, 0
	}
	version, okVersion := asInt(raw[envelopeVersionKey])
	data, okData := raw[envelopeDataKey].(map[string]any)
	if okVersion && okData && len(raw) == 2 {
		return domain.Document(data), version
	}
	return domain.Document(raw), 0
}

func wrapEnvelope(doc domain.Document, version int) map[string]any {
	if doc == nil {
		doc = domain.Document{}
	}
	return map[string]any{
		envelopeVersionKey: version,
		envelopeDataKey:    map[string]any(doc),
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

func writeFamilyFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := atomicWriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Ensure stores implement domain.DocumentStore.
var (
	_ domain.DocumentStore = (*JSONDocumentStore)(nil)
	_ domain.DocumentStore = (*YAMLDocumentStore)(nil)
)
