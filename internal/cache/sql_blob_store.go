package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

// dialect captures what differs between the SQL backends
type dialect struct {
	name       string
	driverName string
	blobType   string
	numbered   bool // $1 placeholders instead of ?
	// lockedBegin opens a transaction that holds the schema lock until it ends
	lockedBegin []string
}

// migrationLockKey names the Postgres advisory lock held while migrating
const migrationLockKey = 0x77656174 // "weat"

var (
	sqliteDialect = dialect{
		name:        "sqlite",
		driverName:  "sqlite",
		blobType:    "BLOB",
		lockedBegin: []string{"BEGIN IMMEDIATE"},
	}
	postgresDialect = dialect{
		name:        "postgres",
		driverName:  "postgres",
		blobType:    "BYTEA",
		numbered:    true,
		lockedBegin: []string{"BEGIN", "SELECT pg_advisory_xact_lock(" + strconv.Itoa(migrationLockKey) + ")"},
	}
)

func (d dialect) migrations() []migration {
	return []migration{
		{
			Version:     1,
			Description: "create databases table",
			SQL:         `CREATE TABLE IF NOT EXISTS databases ("key" TEXT PRIMARY KEY, "value" ` + d.blobType + `)`,
		},
		{
			Version:     2,
			Description: "add updated_at",
			SQL:         `ALTER TABLE databases ADD COLUMN updated_at BIGINT NOT NULL DEFAULT 0`,
		},
	}
}

// rebind rewrites ? placeholders for dialects that number them
func (d dialect) rebind(query string) string {
	if !d.numbered {
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

// SQLBlobStore keeps the image as a row of the databases table in SQLite or Postgres
type SQLBlobStore struct {
	mu      sync.Mutex
	dialect dialect
	dsn     string
	db      *sql.DB
	clock   clock
}

// NewSQLiteBlobStore stores the image in a SQLite file, creating its directory on first open
func NewSQLiteBlobStore(path string) *SQLBlobStore {
	return &SQLBlobStore{
		dialect: sqliteDialect,
		dsn:     path,
		clock:   systemClock{},
	}
}

// NewPostgresBlobStore stores the image in a Postgres database reachable through dsn
func NewPostgresBlobStore(dsn string) *SQLBlobStore {
	return &SQLBlobStore{
		dialect: postgresDialect,
		dsn:     dsn,
		clock:   systemClock{},
	}
}

// open connects and migrates once; later calls reuse the connection
func (s *SQLBlobStore) open(ctx context.Context) (*sql.DB, error) {
	if s.db != nil {
		return s.db, nil
	}

	dsn := s.dsn
	if s.dialect.name == sqliteDialect.name {
		if dsn == "" {
			return nil, errors.New("empty sqlite path")
		}
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("creating directory for %q: %w", dsn, err)
		}
		dsn += "?_pragma=busy_timeout(5000)"
	} else if dsn == "" {
		return nil, errors.New("empty postgres dsn")
	}

	db, err := sql.Open(s.dialect.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if s.dialect.name == sqliteDialect.name {
		db.SetMaxOpenConns(1)
	}

	if err := s.migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s.db = db
	return db, nil
}

// migrate applies every unapplied migration inside one transaction that holds
// the schema lock. Concurrent openers of the same area wait for each other and
// re-check the recorded versions once they hold the lock.
func (s *SQLBlobStore) migrate(ctx context.Context, db *sql.DB) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Error releasing migration connection")
		}
	}()

	for _, stmt := range s.dialect.lockedBegin {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			if stmt != s.dialect.lockedBegin[0] {
				s.rollback(ctx, conn)
			}
			return fmt.Errorf("lock schema: %w", err)
		}
	}

	if err := s.applyMigrations(ctx, conn); err != nil {
		s.rollback(ctx, conn)
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		s.rollback(ctx, conn)
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}

func (s *SQLBlobStore) applyMigrations(ctx context.Context, conn *sql.Conn) error {
	const createMigTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
		version     INTEGER PRIMARY KEY,
		description TEXT
	)`
	if _, err := conn.ExecContext(ctx, createMigTable); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	for _, m := range s.dialect.migrations() {
		var exists int
		err := conn.QueryRowContext(ctx, s.dialect.rebind("SELECT COUNT(*) FROM schema_migrations WHERE version = ?"), m.Version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check migration v%d: %w", m.Version, err)
		}
		if exists > 0 {
			continue
		}

		if _, err := conn.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("apply migration v%d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := conn.ExecContext(ctx,
			s.dialect.rebind("INSERT INTO schema_migrations (version, description) VALUES (?, ?)"),
			m.Version, m.Description,
		); err != nil {
			return fmt.Errorf("record migration v%d: %w", m.Version, err)
		}
		log.Debug().Str("dialect", s.dialect.name).Int("version", m.Version).Msg("Applied durable area migration")
	}
	return nil
}

func (s *SQLBlobStore) rollback(ctx context.Context, conn *sql.Conn) {
	if _, err := conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK"); err != nil {
		log.Warn().Err(err).Str("dialect", s.dialect.name).Msg("Error rolling back migrations")
	}
}

func (s *SQLBlobStore) Restore(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.open(ctx)
	if err != nil {
		return nil, NewPersistenceError(s.dialect.name, "open", err)
	}

	var image []byte
	err = db.QueryRowContext(ctx, s.dialect.rebind(`SELECT "value" FROM databases WHERE "key" = ?`), BlobKey).Scan(&image)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, NewPersistenceError(s.dialect.name, "restore", err)
	}
	if len(image) == 0 {
		return nil, nil
	}
	return image, nil
}

func (s *SQLBlobStore) Persist(ctx context.Context, image []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.open(ctx)
	if err != nil {
		return NewPersistenceError(s.dialect.name, "open", err)
	}

	const upsert = `INSERT INTO databases ("key", "value", updated_at) VALUES (?, ?, ?)
		ON CONFLICT ("key") DO UPDATE SET "value" = excluded."value", updated_at = excluded.updated_at`
	if _, err := db.ExecContext(ctx, s.dialect.rebind(upsert), BlobKey, image, s.clock.Now().Unix()); err != nil {
		return NewPersistenceError(s.dialect.name, "persist", err)
	}

	log.Debug().Int("bytes", len(image)).Str("dialect", s.dialect.name).Msg("Persisted weather image")
	return nil
}

// Close releases the connection; the next Restore or Persist reopens it
func (s *SQLBlobStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
