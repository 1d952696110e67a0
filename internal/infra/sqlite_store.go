package infra

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/trackd/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

const schemaVersionMetaKey = "schema_version"

// SQLiteDocumentStore keeps a family in a SQLCipher database: one row per
// top-level document key, with the schema version in the meta table so data
// and version commit together.
type SQLiteDocumentStore struct {
	family string
	db     *sql.DB
	dbPath string
}

// NewSQLiteDocumentStore opens (or creates) the database at dbPath.
// A nil key opens an unencrypted database.
func NewSQLiteDocumentStore(family, dbPath string, key []byte) (*SQLiteDocumentStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dsn := dbPath
	if len(key) > 0 {
		dsn = fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, hex.EncodeToString(key))
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify the key by touching the schema
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, unreadableDatabase(dbPath, key, err)
	}

	s := &SQLiteDocumentStore{family: family, db: db, dbPath: dbPath}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, unreadableDatabase(dbPath, key, err)
	}
	return s, nil
}

// unreadableDatabase names the settings that must match the database on disk.
// A database created with index.encrypt on cannot be read with it off, and
// the reverse.
func unreadableDatabase(dbPath string, key []byte, err error) error {
	mode := "off"
	if len(key) > 0 {
		mode = "on"
	}
	return fmt.Errorf("cannot open %s with index.encrypt %s: the setting and the key file (state/%s) must match those the database was created with: %w",
		dbPath, mode, keyFileName, err)
}

func (s *SQLiteDocumentStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Family returns the family identifier.
func (s *SQLiteDocumentStore) Family() string { return s.family }

// Path returns the database file path.
func (s *SQLiteDocumentStore) Path() string { return s.dbPath }

// Load reads every document row and the stored version.
func (s *SQLiteDocumentStore) Load(ctx context.Context) (domain.Document, int, error) {
	version := 0
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, schemaVersionMetaKey).Scan(&raw)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, 0, err
	default:
		if version, err = strconv.Atoi(raw); err != nil {
			return nil, 0, fmt.Errorf("corrupt schema version %q: %w", raw, err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM documents`)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	doc := domain.Document{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, 0, err
		}
		var value any
		if err := json.Unmarshal([]byte(v), &value); err != nil {
			return nil, 0, fmt.Errorf("corrupt value for %q: %w", k, err)
		}
		doc[k] = value
	}
	return doc, version, rows.Err()
}

// Save replaces all rows and the version in one transaction.
func (s *SQLiteDocumentStore) Save(ctx context.Context, doc domain.Document, version int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return err
	}
	for k, v := range doc {
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode %q: %w", k, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO documents (key, value) VALUES (?, ?)`, k, string(encoded)); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`,
		schemaVersionMetaKey, strconv.Itoa(version)); err != nil {
		return err
	}
	return tx.Commit()
}

// Close releases the database connection.
func (s *SQLiteDocumentStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ensure SQLiteDocumentStore implements domain.DocumentStore.
var _ domain.DocumentStore = (*SQLiteDocumentStore)(nil)
