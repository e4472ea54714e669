// Package sqlstore keeps pedigree revisions in a SQL table. It speaks to
// SQLite (pure Go driver) and PostgreSQL.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/introspection"
	"github.com/google/uuid"
	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/aretw0/pedigree/pkg/core"
)

// Supported dialects. The value is also the database/sql driver name.
const (
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// DefaultKey names the pedigree when a database holds just one.
const DefaultKey = "default"

// Config holds the configuration for a SQL store.
type Config struct {
	Dialect  string // SQLite or Postgres
	DSN      string // file path for SQLite, connection string for Postgres
	Key      string // pedigree identifier within the table
	ReadOnly bool
	Logger   *slog.Logger
}

// Store implements core.VersionedStore on a single versions table.
type Store struct {
	db      *sql.DB
	dialect string
	config  Config

	mu          sync.Mutex
	persists    int
	lastPersist *time.Time
}

// Open connects to the database and ensures the schema exists.
func Open(ctx context.Context, config Config) (*Store, error) {
	if config.Dialect == "" {
		config.Dialect = SQLite
	}
	switch config.Dialect {
	case SQLite:
		if config.DSN == "" {
			config.DSN = "pedigree.db"
		}
		if err := os.MkdirAll(filepath.Dir(config.DSN), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	case Postgres:
		if config.DSN == "" {
			config.DSN = PostgresDSNFromEnv()
		}
	default:
		return nil, fmt.Errorf("unsupported sql dialect %q", config.Dialect)
	}

	db, err := sql.Open(config.Dialect, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", config.Dialect, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", config.Dialect, err)
	}
	if config.Dialect == SQLite {
		// One writer at a time avoids SQLITE_BUSY under concurrent saves.
		db.SetMaxOpenConns(1)
	}

	s, err := New(ctx, db, config)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database. The schema is created if missing.
func New(ctx context.Context, db *sql.DB, config Config) (*Store, error) {
	if config.Dialect == "" {
		config.Dialect = SQLite
	}
	if config.Key == "" {
		config.Key = DefaultKey
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Store{db: db, dialect: config.Dialect, config: config}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// PostgresDSNFromEnv builds a connection string from the libpq variables.
func PostgresDSNFromEnv() string {
	host := getEnv("PGHOST", "127.0.0.1")
	port := getEnv("PGPORT", "5432")
	user := getEnv("PGUSER", "pedigree")
	dbname := getEnv("PGDATABASE", "pedigree")
	password := os.Getenv("PGPASSWORD")

	if password != "" {
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host, port, user, password, dbname)
	}
	return fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable",
		host, port, user, dbname)
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func (s *Store) migrate(ctx context.Context) error {
	blob := "BLOB"
	if s.dialect == Postgres {
		blob = "BYTEA"
	}
	ddl := `CREATE TABLE IF NOT EXISTS pedigree_versions (
		id TEXT PRIMARY KEY,
		doc_key TEXT NOT NULL,
		seq BIGINT NOT NULL,
		created_at BIGINT NOT NULL,
		message TEXT NOT NULL,
		document TEXT NOT NULL,
		image ` + blob + `,
		UNIQUE (doc_key, seq)
	)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create versions table: %w", err)
	}
	return nil
}

// rebind turns ? placeholders into $n for Postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// FetchDocument returns the newest revision, or "" when none exists.
func (s *Store) FetchDocument(ctx context.Context) (string, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT document FROM pedigree_versions WHERE doc_key = ? ORDER BY seq DESC LIMIT 1`),
		s.config.Key).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("select document: %w", err)
	}
	return doc, nil
}

// PersistDocument appends a revision.
func (s *Store) PersistDocument(ctx context.Context, text string, aux []byte) (retErr error) {
	if s.config.ReadOnly {
		return core.ErrReadOnly
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	var seq int64
	if err := tx.QueryRowContext(ctx,
		s.rebind(`SELECT COALESCE(MAX(seq), 0) + 1 FROM pedigree_versions WHERE doc_key = ?`),
		s.config.Key).Scan(&seq); err != nil {
		return fmt.Errorf("next seq: %w", err)
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx,
		s.rebind(`INSERT INTO pedigree_versions (id, doc_key, seq, created_at, message, document, image) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		uuid.NewString(), s.config.Key, seq, now.UnixNano(), core.ChangeReason(ctx, "save pedigree"), text, aux); err != nil {
		return fmt.Errorf("insert version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.mu.Lock()
	s.persists++
	s.lastPersist = &now
	s.mu.Unlock()
	s.config.Logger.Debug("pedigree revision stored", "key", s.config.Key, "seq", seq)
	return nil
}

// Versions lists revisions newest first.
func (s *Store) Versions(ctx context.Context) ([]core.Version, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT id, created_at, message FROM pedigree_versions WHERE doc_key = ? ORDER BY seq DESC`),
		s.config.Key)
	if err != nil {
		return nil, fmt.Errorf("select versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var versions []core.Version
	for rows.Next() {
		var (
			v     core.Version
			nanos int64
		)
		if err := rows.Scan(&v.ID, &nanos, &v.Message); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		v.Created = time.Unix(0, nanos)
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// FetchVersion returns the text of one revision.
func (s *Store) FetchVersion(ctx context.Context, id string) (string, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT document FROM pedigree_versions WHERE doc_key = ? AND id = ?`),
		s.config.Key, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", core.ErrVersionNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("select version: %w", err)
	}
	return doc, nil
}

// Image returns the snapshot stored with the newest revision, if any.
func (s *Store) Image(ctx context.Context) ([]byte, error) {
	var img []byte
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT image FROM pedigree_versions WHERE doc_key = ? ORDER BY seq DESC LIMIT 1`),
		s.config.Key).Scan(&img)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select image: %w", err)
	}
	return img, nil
}

// StoreState exposes internal state for observability.
type StoreState struct {
	Dialect     string     `json:"dialect"`
	Key         string     `json:"key"`
	ReadOnly    bool       `json:"read_only"`
	Persists    int        `json:"persists"`
	LastPersist *time.Time `json:"last_persist,omitempty"`
	OpenConns   int        `json:"open_conns"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StoreState{
		Dialect:     s.dialect,
		Key:         s.config.Key,
		ReadOnly:    s.config.ReadOnly,
		Persists:    s.persists,
		LastPersist: s.lastPersist,
		OpenConns:   s.db.Stats().OpenConnections,
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "store"
}

var _ core.VersionedStore = (*Store)(nil)
var _ introspection.Introspectable = (*Store)(nil)
