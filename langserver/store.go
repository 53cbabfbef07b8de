package langserver

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/teranos/langgate/errors"
)

// ActiveServer records one running analyzer for bookkeeping.
type ActiveServer struct {
	Language  string
	PID       int
	StartedAt time.Time
}

// ActiveStore tracks which languages currently have a running analyzer. The
// registry acquires a language before launching so concurrent starts race on
// the store, not on the process spawn. Implementations must make Acquire
// atomic: exactly one of two concurrent acquirers wins.
type ActiveStore interface {
	// Acquire marks language active. Returns false when already active.
	Acquire(language string) (bool, error)
	// Release removes the active mark so a later start can retry.
	Release(language string) error
	// IsActive reports whether language is marked active.
	IsActive(language string) (bool, error)
	// UpdatePID records the analyzer's process id once known.
	UpdatePID(language string, pid int) error
	// Active lists all active servers.
	Active() ([]ActiveServer, error)
}

// MemoryStore is the in-process ActiveStore.
type MemoryStore struct {
	mu      sync.RWMutex
	servers map[string]ActiveServer
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		servers: make(map[string]ActiveServer),
	}
}

// Acquire marks language active; false when already held.
func (m *MemoryStore) Acquire(language string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.servers[language]; ok {
		return false, nil
	}
	m.servers[language] = ActiveServer{
		Language:  language,
		StartedAt: time.Now(),
	}
	return true, nil
}

// Release removes the active mark.
func (m *MemoryStore) Release(language string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.servers, language)
	return nil
}

// IsActive reports whether language is marked active.
func (m *MemoryStore) IsActive(language string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.servers[language]
	return ok, nil
}

// UpdatePID records the analyzer pid.
func (m *MemoryStore) UpdatePID(language string, pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if server, ok := m.servers[language]; ok {
		server.PID = pid
		m.servers[language] = server
	}
	return nil
}

// Active lists the active servers.
func (m *MemoryStore) Active() ([]ActiveServer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	servers := make([]ActiveServer, 0, len(m.servers))
	for _, server := range m.servers {
		servers = append(servers, server)
	}
	return servers, nil
}

// SQLiteStore persists active-server bookkeeping so a restarted host can
// find and reap analyzers left over from a previous run.
type SQLiteStore struct {
	db *sql.DB
}

const activeServersSchema = `
CREATE TABLE IF NOT EXISTS active_servers (
	language   TEXT PRIMARY KEY,
	pid        INTEGER NOT NULL DEFAULT 0,
	started_at TIMESTAMP NOT NULL
)`

// NewSQLiteStore opens (creating if needed) the store at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open registry store at %s", path)
	}

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStoreWithDB wraps an existing database handle. The schema must be
// initialized by the caller or by init; used by tests.
func NewSQLiteStoreWithDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) init() error {
	if _, err := s.db.Exec(activeServersSchema); err != nil {
		return errors.Wrap(err, "failed to create active_servers table")
	}
	return nil
}

// Acquire inserts the language row; the primary key makes concurrent
// acquires race safely, with exactly one winner.
func (s *SQLiteStore) Acquire(language string) (bool, error) {
	result, err := s.db.Exec(
		"INSERT OR IGNORE INTO active_servers (language, pid, started_at) VALUES (?, 0, ?)",
		language, time.Now(),
	)
	if err != nil {
		return false, errors.Wrapf(err, "failed to acquire %s", language)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrapf(err, "failed to check acquire result for %s", language)
	}
	return rows > 0, nil
}

// Release deletes the language row.
func (s *SQLiteStore) Release(language string) error {
	if _, err := s.db.Exec("DELETE FROM active_servers WHERE language = ?", language); err != nil {
		return errors.Wrapf(err, "failed to release %s", language)
	}
	return nil
}

// IsActive reports whether a row exists for language.
func (s *SQLiteStore) IsActive(language string) (bool, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM active_servers WHERE language = ?", language).Scan(&count)
	if err != nil {
		return false, errors.Wrapf(err, "failed to query active state for %s", language)
	}
	return count > 0, nil
}

// UpdatePID records the analyzer pid for the language.
func (s *SQLiteStore) UpdatePID(language string, pid int) error {
	if _, err := s.db.Exec("UPDATE active_servers SET pid = ? WHERE language = ?", pid, language); err != nil {
		return errors.Wrapf(err, "failed to record pid for %s", language)
	}
	return nil
}

// Active lists all recorded servers.
func (s *SQLiteStore) Active() ([]ActiveServer, error) {
	rows, err := s.db.Query("SELECT language, pid, started_at FROM active_servers ORDER BY language")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list active servers")
	}
	defer rows.Close()

	var servers []ActiveServer
	for rows.Next() {
		var server ActiveServer
		if err := rows.Scan(&server.Language, &server.PID, &server.StartedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan active server row")
		}
		servers = append(servers, server)
	}
	return servers, rows.Err()
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
