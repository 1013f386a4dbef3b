package sqlite

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"firewatch/internal/repository"
)

// DB wraps the SQLite database connection with thread-safe access.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// New creates and initializes a new SQLite database connection.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}

	if err := db.Migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// Wrap uses an already opened connection without migrating it.
func Wrap(conn *sql.DB) *DB {
	return &DB{conn: conn}
}

const schema = `
	CREATE TABLE IF NOT EXISTS cameras (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		locator TEXT NOT NULL,
		lat REAL NOT NULL,
		lon REAL NOT NULL,
		owner TEXT NOT NULL DEFAULT '',
		contact TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS camera_status (
		camera_id TEXT PRIMARY KEY,
		last_checked DATETIME NOT NULL,
		fire_detected INTEGER NOT NULL DEFAULT 0,
		confidence REAL NOT NULL DEFAULT 0,
		last_alert_at DATETIME,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_cameras_kind ON cameras(kind);
	CREATE INDEX IF NOT EXISTS idx_cameras_locator ON cameras(locator);
	CREATE INDEX IF NOT EXISTS idx_camera_status_fire ON camera_status(fire_detected);
	`

// Migrate creates the necessary tables if they don't exist.
func (db *DB) Migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection for use by repositories.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

func (db *DB) Lock()    { db.mu.Lock() }
func (db *DB) Unlock()  { db.mu.Unlock() }
func (db *DB) RLock()   { db.mu.RLock() }
func (db *DB) RUnlock() { db.mu.RUnlock() }

// NewStore opens the database at dbPath and returns its repositories.
func NewStore(dbPath string) (repository.Store, error) {
	db, err := New(dbPath)
	if err != nil {
		return repository.Store{}, err
	}
	return repository.Store{
		Cameras:  NewCameraRepository(db),
		Statuses: NewStatusRepository(db),
		Close:    db.Close,
	}, nil
}
