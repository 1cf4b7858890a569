// Package storage persists the pieces of state that must survive restarts:
// the known-devices file and the command audit database.
package storage

import (
	"database/sql"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	// Pure-Go SQLite driver, registered for database/sql. No CGO needed,
	// which keeps cross-compilation for the host platforms painless.
	_ "modernc.org/sqlite"

	apperrors "github.com/landevice/lanmanager/internal/errors"
)

// AuditEntry records one command request: what was asked, whether the gate
// allowed it, and how execution went.
type AuditEntry struct {
	ID         string
	Command    string
	Args       string
	Allowed    bool
	DenyReason string
	Success    bool
	ExitCode   int
	DurationMS int64
	ClientAddr string
	CreatedAt  time.Time
}

// AuditStore writes command audit entries to SQLite.
// Use ":memory:" as the path for tests.
type AuditStore struct {
	db *sql.DB
	mu sync.RWMutex

	timeNow func() time.Time
}

// OpenAuditStore opens or creates the audit database and ensures the schema.
func OpenAuditStore(path string) (*AuditStore, error) {
	log.Printf("storage: opening audit database at %s", path)

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageOpenFailed, "open audit database", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.CodeStorageOpenFailed, "ping audit database", err)
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS command_audit (
			id TEXT PRIMARY KEY,
			command TEXT NOT NULL,
			args TEXT NOT NULL,
			allowed INTEGER NOT NULL,
			deny_reason TEXT NOT NULL,
			success INTEGER NOT NULL,
			exit_code INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			client_addr TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_command_audit_created_at
			ON command_audit (created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.CodeStorageOpenFailed, "init audit schema", err)
	}

	return &AuditStore{db: db, timeNow: time.Now}, nil
}

// Close releases the database connection.
func (s *AuditStore) Close() error {
	log.Printf("storage: closing audit database")
	return s.db.Close()
}

// Record persists one audit entry. Missing ID and CreatedAt are filled in.
func (s *AuditStore) Record(entry *AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.timeNow()
	}

	const query = `
		INSERT INTO command_audit
			(id, command, args, allowed, deny_reason, success, exit_code, duration_ms, client_addr, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		entry.ID,
		entry.Command,
		entry.Args,
		boolToInt(entry.Allowed),
		entry.DenyReason,
		boolToInt(entry.Success),
		entry.ExitCode,
		entry.DurationMS,
		entry.ClientAddr,
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageSaveFailed, "save audit entry", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *AuditStore) Recent(limit int) ([]*AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const query = `
		SELECT id, command, args, allowed, deny_reason, success, exit_code, duration_ms, client_addr, created_at
		FROM command_audit
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageQueryFailed, "query audit entries", err)
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		var e AuditEntry
		var allowed, success int
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Command, &e.Args, &allowed, &e.DenyReason,
			&success, &e.ExitCode, &e.DurationMS, &e.ClientAddr, &createdAt); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorageQueryFailed, "scan audit entry", err)
		}
		e.Allowed = allowed != 0
		e.Success = success != 0
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			e.CreatedAt = t
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageQueryFailed, "iterate audit entries", err)
	}
	return entries, nil
}

// JoinArgs flattens an argument list for the audit row.
func JoinArgs(args []string) string {
	return strings.Join(args, " ")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
