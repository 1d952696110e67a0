package infra

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/eliteGoblin/trackd/internal/domain"
)

const (
	snapshotExt          = ".cbor.zst"
	defaultSnapshotLimit = 5
)

// snapshotFile is the CBOR payload inside a compressed snapshot.
type snapshotFile struct {
	Family    string `cbor:"family"`
	Version   int    `cbor:"version"`
	CreatedAt int64  `cbor:"created_at"`
	SHA256    string `cbor:"sha256"`   // Digest of Document
	Document  []byte `cbor:"document"` // Canonical CBOR of the family document
}

// SnapshotManager implements domain.SnapshotStore with zstd-compressed CBOR
// files, keeping the newest few per family.
type SnapshotManager struct {
	dir     string
	limit   int
	now     func() time.Time
	encMode cbor.EncMode
	decMode cbor.DecMode
	logger  *zap.Logger
}

// NewSnapshotManager creates a snapshot store rooted at dir.
func NewSnapshotManager(dir string, logger *zap.Logger) (*SnapshotManager, error) {
	encMode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	decMode, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		return nil, err
	}
	return &SnapshotManager{
		dir:     dir,
		limit:   defaultSnapshotLimit,
		now:     time.Now,
		encMode: encMode,
		decMode: decMode,
		logger:  logger,
	}, nil
}

// Save writes a snapshot and prunes older ones beyond the limit.
func (m *SnapshotManager) Save(family string, version int, doc domain.Document) (string, error) {
	body, err := m.encMode.Marshal(map[string]any(doc))
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	sum := sha256.Sum256(body)
	created := m.now()

	payload, err := m.encMode.Marshal(snapshotFile{
		Family:    family,
		Version:   version,
		CreatedAt: created.UnixNano(),
		SHA256:    hex.EncodeToString(sum[:]),
		Document:  body,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return "", err
	}
	compressed := enc.EncodeAll(payload, nil)
	_ = enc.Close()

	if err := os.MkdirAll(m.dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	path := filepath.Join(m.dir, fmt.Sprintf("%s-v%d-%d%s", family, version, created.UnixNano(), snapshotExt))
	if err := atomicWriteFile(path, compressed, 0600); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}

	m.prune(family)
	return path, nil
}

// Latest returns the newest readable snapshot, skipping corrupt ones.
func (m *SnapshotManager) Latest(family string) (*domain.Snapshot, error) {
	paths, err := m.List(family)
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		snap, err := m.Read(p)
		if err != nil {
			m.logger.Warn("skipping unreadable snapshot",
				zap.String("path", p),
				zap.Error(err))
			continue
		}
		return snap, nil
	}
	return nil, fmt.Errorf("no usable snapshot for family %q", family)
}

// Read decodes and verifies one snapshot file.
func (m *SnapshotManager) Read(path string) (*domain.Snapshot, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	payload, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress snapshot: %w", err)
	}

	var file snapshotFile
	if err := m.decMode.Unmarshal(payload, &file); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	sum := sha256.Sum256(file.Document)
	if hex.EncodeToString(sum[:]) != file.SHA256 {
		return nil, fmt.Errorf("snapshot %s failed integrity check", path)
	}

	var doc map[string]any
	if err := m.decMode.Unmarshal(file.Document, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot document: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}

	return &domain.Snapshot{
		Location: path,
		Family:   file.Family,
		Version:  file.Version,
		Document: domain.Document(doc),
	}, nil
}

// List returns snapshot paths for family, newest first.
func (m *SnapshotManager) List(family string) ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	prefix := family + "-v"
	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, snapshotExt) {
			continue
		}
		paths = append(paths, filepath.Join(m.dir, name))
	}
	sort.Slice(paths, func(i, j int) bool {
		return snapshotStamp(paths[i]) > snapshotStamp(paths[j])
	})
	return paths, nil
}

// snapshotStamp extracts the creation stamp from a snapshot file name.
// Unparseable names sort last.
func snapshotStamp(path string) int64 {
	name := strings.TrimSuffix(filepath.Base(path), snapshotExt)
	i := strings.LastIndex(name, "-")
	if i < 0 {
		return 0
	}
	stamp, err := strconv.ParseInt(name[i+1:], 10, 64)
	if err != nil {
		return 0
	}
	return stamp
}

func (m *SnapshotManager) prune(family string) {
	paths, err := m.List(family)
	if err != nil || len(paths) <= m.limit {
		return
	}
	for _, p := range paths[m.limit:] {
		if err := os.Remove(p); err != nil {
			m.logger.Debug("failed to prune snapshot", zap.String("path", p), zap.Error(err))
		}
	}
}

// Ensure SnapshotManager implements domain.SnapshotStore.
var _ domain.SnapshotStore = (*SnapshotManager)(nil)
