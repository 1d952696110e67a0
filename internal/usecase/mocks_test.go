package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/eliteGoblin/trackd/internal/domain"
)

// mockFileSystemManager implements domain.FileSystemManager for testing
type mockFileSystemManager struct {
	calls  []string // "op path" in call order
	failOn map[string]error
}

func (m *mockFileSystemManager) record(op, path string) error {
	m.calls = append(m.calls, op+" "+path)
	if err, ok := m.failOn[path]; ok {
		return err
	}
	return nil
}

func (m *mockFileSystemManager) CreateFile(path string, data []byte, mode uint32) error {
	return m.record("create", path)
}

func (m *mockFileSystemManager) WriteFile(path string, data []byte, mode uint32) error {
	return m.record("write", path)
}

func (m *mockFileSystemManager) Mkdir(path string, mode uint32) error {
	return m.record("mkdir", path)
}

func (m *mockFileSystemManager) Remove(path string) error {
	return m.record("remove", path)
}

// mockHashStore implements domain.HashStore for testing
type mockHashStore struct {
	mu        sync.Mutex
	hashes    map[string]string
	recordErr error
	reloads   int
}

func newMockHashStore(initial map[string]string) *mockHashStore {
	h := &mockHashStore{hashes: make(map[string]string)}
	for k, v := range initial {
		h.hashes[k] = v
	}
	return h
}

func (m *mockHashStore) All() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.hashes))
	for k, v := range m.hashes {
		out[k] = v
	}
	return out
}

func (m *mockHashStore) Record(path, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return m.recordErr
	}
	m.hashes[path] = hash
	return nil
}

func (m *mockHashStore) Forget(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.hashes, path)
	return nil
}

func (m *mockHashStore) Reload() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reloads++
	return nil
}

// mockVersionStore implements domain.VersionStore for testing
type mockVersionStore struct {
	mu       sync.Mutex
	versions map[string]int
	setErr   error
}

func newMockVersionStore() *mockVersionStore {
	return &mockVersionStore{versions: make(map[string]int)}
}

func (m *mockVersionStore) Get(family string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.versions[family], nil
}

func (m *mockVersionStore) Set(family string, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.versions[family] = version
	return nil
}

func (m *mockVersionStore) All() (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.versions))
	for k, v := range m.versions {
		out[k] = v
	}
	return out, nil
}

// mockDocumentStore implements domain.DocumentStore for testing
type mockDocumentStore struct {
	family  string
	doc     domain.Document
	version int
	saves   int
	// failAfter makes every save after the first n fail; negative never fails
	failAfter int
	loadErr   error
}

func newMockDocumentStore(family string, doc domain.Document, version int) *mockDocumentStore {
	return &mockDocumentStore{family: family, doc: doc, version: version, failAfter: -1}
}

func (m *mockDocumentStore) Family() string { return m.family }

func (m *mockDocumentStore) Load(ctx context.Context) (domain.Document, int, error) {
	if m.loadErr != nil {
		return nil, 0, m.loadErr
	}
	return m.doc.Clone(), m.version, nil
}

func (m *mockDocumentStore) Save(ctx context.Context, doc domain.Document, version int) error {
	if m.failAfter >= 0 && m.saves >= m.failAfter {
		return errors.New("disk full")
	}
	m.saves++
	m.doc = doc.Clone()
	m.version = version
	return nil
}

// mockSnapshotStore implements domain.SnapshotStore for testing
type mockSnapshotStore struct {
	snaps   []domain.Snapshot
	saveErr error
}

func (m *mockSnapshotStore) Save(family string, version int, doc domain.Document) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	loc := fmt.Sprintf("%s-%d-%d", family, version, len(m.snaps))
	m.snaps = append(m.snaps, domain.Snapshot{Location: loc, Family: family, Version: version, Document: doc.Clone()})
	return loc, nil
}

func (m *mockSnapshotStore) Latest(family string) (*domain.Snapshot, error) {
	for i := len(m.snaps) - 1; i >= 0; i-- {
		if m.snaps[i].Family == family {
			s := m.snaps[i]
			return &s, nil
		}
	}
	return nil, fmt.Errorf("no usable snapshot for family %q", family)
}

func (m *mockSnapshotStore) List(family string) ([]string, error) {
	var out []string
	for i := len(m.snaps) - 1; i >= 0; i-- {
		if m.snaps[i].Family == family {
			out = append(out, m.snaps[i].Location)
		}
	}
	return out, nil
}

// mockLocker implements domain.Locker for testing
type mockLocker struct {
	mu      sync.Mutex
	held    bool
	busyErr error
}

func (m *mockLocker) TryLock() (domain.UnlockFunc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busyErr != nil {
		return nil, m.busyErr
	}
	if m.held {
		return nil, &domain.LockError{Path: "mock", Err: domain.ErrBusy}
	}
	m.held = true
	return func() error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.held = false
		return nil
	}, nil
}

// mockTemplates implements domain.TemplateSource for testing
type mockTemplates []domain.ManagedFileTemplate

func (m mockTemplates) Templates() []domain.ManagedFileTemplate { return m }

// mockCatalog implements domain.MigrationCatalog over a fixed chain per family
type mockCatalog map[string][]domain.MigrationDefinition

func (m mockCatalog) Path(family string, from, to int) ([]domain.MigrationDefinition, domain.Direction, error) {
	if from == to {
		return nil, domain.DirectionNone, nil
	}
	noPath := &domain.ChainError{Family: family, From: from, To: to, Err: domain.ErrNoPath}
	chain := m[family]
	var steps []domain.MigrationDefinition
	if to > from {
		for _, d := range chain {
			if d.From >= from && d.To <= to {
				steps = append(steps, d)
			}
		}
		if len(steps) != to-from {
			return nil, domain.DirectionUp, noPath
		}
		return steps, domain.DirectionUp, nil
	}
	for i := len(chain) - 1; i >= 0; i-- {
		d := chain[i]
		if d.From >= to && d.To <= from {
			steps = append(steps, d)
		}
	}
	if len(steps) != from-to {
		return nil, domain.DirectionDown, noPath
	}
	return steps, domain.DirectionDown, nil
}

func (m mockCatalog) Latest(family string) int {
	chain := m[family]
	if len(chain) == 0 {
		return 0
	}
	return chain[len(chain)-1].To
}

func (m mockCatalog) Families() []string {
	out := make([]string, 0, len(m))
	for f := range m {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
