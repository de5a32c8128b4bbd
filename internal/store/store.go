package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// isBusyLock reports whether err indicates SQLite database lock (SQLITE_BUSY).
// Handles wrapped errors from database/sql.
func isBusyLock(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "database is locked") || strings.Contains(s, "SQLITE_BUSY")
}

// retryOnBusy runs fn and retries on SQLITE_BUSY with exponential backoff.
func retryOnBusy(fn func() error) error {
	const maxAttempts = 4
	backoff := 25 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil || !isBusyLock(lastErr) {
			return lastErr
		}
		if attempt < maxAttempts-1 {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return lastErr
}

// Invocation is one recorded call to the sandboxed algorithm.
type Invocation struct {
	ID          string    `json:"id"`
	ProcessDir  string    `json:"process_dir"`
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
	Args        []int     `json:"args"`
	Status      string    `json:"status"`
	ReturnValue *int      `json:"return_value,omitempty"`
	TimeUsage   int       `json:"time_usage"`
	MemoryUsage int       `json:"memory_usage"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	DurationMs  int64     `json:"duration_ms"`
}

type Store struct {
	db *sql.DB
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS invocations (
	id           TEXT PRIMARY KEY,
	process_dir  TEXT NOT NULL DEFAULT '',
	name         TEXT NOT NULL,
	kind         TEXT NOT NULL,
	args         TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT '',
	return_value INTEGER,
	time_usage   INTEGER NOT NULL DEFAULT 0,
	memory_usage INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	started_at   DATETIME NOT NULL,
	duration_ms  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_invocations_name ON invocations(name);
CREATE INDEX IF NOT EXISTS idx_invocations_started_at ON invocations(started_at);
`

// DefaultMaxOpenConns is the default connection pool size.
// Several harness processes may share one history file, so writers
// still serialize on SQLite's lock.
const DefaultMaxOpenConns = 4

// dsnWithPragmas returns a connection string with WAL and busy_timeout
// applied to every new connection.
func dsnWithPragmas(dbPath string) string {
	// busy_timeout: 15s wait on lock when harnesses record concurrently
	// journal_mode=WAL: concurrent reads during writes
	// synchronous=NORMAL: safe in WAL
	return dbPath + "?_pragma=busy_timeout(15000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)"
}

// New opens the store. maxOpenConns controls the connection pool size (0 = default 4).
func New(dbPath string, maxOpenConns int) (*Store, error) {
	db, err := sql.Open("sqlite", dsnWithPragmas(dbPath))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if maxOpenConns <= 0 {
		maxOpenConns = DefaultMaxOpenConns
	}
	if dbPath == ":memory:" {
		// Each connection would get its own empty database.
		maxOpenConns = 1
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxOpenConns)

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateInvocation inserts inv, assigning an ID when it has none.
func (s *Store) CreateInvocation(inv *Invocation) error {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	var ret sql.NullInt64
	if inv.ReturnValue != nil {
		ret = sql.NullInt64{Int64: int64(*inv.ReturnValue), Valid: true}
	}
	err := retryOnBusy(func() error {
		_, e := s.db.Exec(
			`INSERT INTO invocations (id, process_dir, name, kind, args, status, return_value, time_usage, memory_usage, error, started_at, duration_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			inv.ID, inv.ProcessDir, inv.Name, inv.Kind, formatArgs(inv.Args), inv.Status, ret,
			inv.TimeUsage, inv.MemoryUsage, inv.Error, inv.StartedAt.UTC(), inv.DurationMs,
		)
		return e
	})
	if err != nil {
		return fmt.Errorf("inserting invocation: %w", err)
	}
	return nil
}

const selectColumns = `SELECT id, process_dir, name, kind, args, status, return_value, time_usage, memory_usage, error, started_at, duration_ms
	 FROM invocations`

// GetInvocation returns nil, nil when id is unknown.
func (s *Store) GetInvocation(id string) (*Invocation, error) {
	row := s.db.QueryRow(selectColumns+` WHERE id = ?`, id)
	return scanInvocation(row)
}

// ListInvocations returns the most recent invocations first.
func (s *Store) ListInvocations(limit int) ([]*Invocation, error) {
	rows, err := s.db.Query(selectColumns+` ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing invocations: %w", err)
	}
	defer rows.Close()
	return scanInvocations(rows)
}

func (s *Store) ListInvocationsByName(name string, limit int) ([]*Invocation, error) {
	rows, err := s.db.Query(selectColumns+` WHERE name = ? ORDER BY started_at DESC LIMIT ?`, name, limit)
	if err != nil {
		return nil, fmt.Errorf("listing invocations of %s: %w", name, err)
	}
	defer rows.Close()
	return scanInvocations(rows)
}

func (s *Store) DeleteInvocation(id string) error {
	var result sql.Result
	err := retryOnBusy(func() error {
		var e error
		result, e = s.db.Exec(`DELETE FROM invocations WHERE id = ?`, id)
		return e
	})
	if err != nil {
		return fmt.Errorf("deleting invocation: %w", err)
	}
	return checkRowAffected(result, id)
}

// Prune deletes invocations started before t and reports how many went.
func (s *Store) Prune(t time.Time) (int64, error) {
	var result sql.Result
	err := retryOnBusy(func() error {
		var e error
		result, e = s.db.Exec(`DELETE FROM invocations WHERE started_at < ?`, t.UTC())
		return e
	})
	if err != nil {
		return 0, fmt.Errorf("pruning invocations: %w", err)
	}
	return result.RowsAffected()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanInvocation(row scannable) (*Invocation, error) {
	var inv Invocation
	var args string
	var ret sql.NullInt64
	err := row.Scan(
		&inv.ID, &inv.ProcessDir, &inv.Name, &inv.Kind, &args, &inv.Status, &ret,
		&inv.TimeUsage, &inv.MemoryUsage, &inv.Error, &inv.StartedAt, &inv.DurationMs,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning invocation: %w", err)
	}
	if ret.Valid {
		v := int(ret.Int64)
		inv.ReturnValue = &v
	}
	if inv.Args, err = parseArgs(args); err != nil {
		return nil, fmt.Errorf("scanning invocation %s: %w", inv.ID, err)
	}
	return &inv, nil
}

func scanInvocations(rows *sql.Rows) ([]*Invocation, error) {
	var invocations []*Invocation
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, err
		}
		invocations = append(invocations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invocations: %w", err)
	}
	return invocations, nil
}

func checkRowAffected(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("invocation not found: %s", id)
	}
	return nil
}

// Arguments are stored space separated, the way they appear on the wire.
func formatArgs(args []int) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = strconv.Itoa(a)
	}
	return strings.Join(parts, " ")
}

func parseArgs(s string) ([]int, error) {
	fields := strings.Fields(s)
	args := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("parsing argument %q: %w", f, err)
		}
		args[i] = n
	}
	return args, nil
}
