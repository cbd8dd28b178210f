package database

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/veritas-ponto/veritas-api/pkg/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS admins (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY,
    nome TEXT NOT NULL,
    matricula TEXT NOT NULL UNIQUE,
    turma TEXT NOT NULL DEFAULT '',
    email TEXT NOT NULL DEFAULT '',
    genero TEXT NOT NULL DEFAULT '',
    cabine TEXT NOT NULL DEFAULT '',
    turno TEXT NOT NULL DEFAULT '',
    dias_semana TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS activities (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    user_name TEXT NOT NULL DEFAULT '',
    user_turma TEXT NOT NULL DEFAULT '',
    user_cabine TEXT NOT NULL DEFAULT '',
    user_turno TEXT NOT NULL DEFAULT '',
    type TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_activities_user_ts ON activities (user_id, timestamp);

CREATE TABLE IF NOT EXISTS faltas (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    user_name TEXT NOT NULL DEFAULT '',
    user_turma TEXT NOT NULL DEFAULT '',
    user_turno TEXT NOT NULL DEFAULT '',
    date TEXT NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    UNIQUE (user_id, date),
    FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_faltas_date ON faltas (date);

CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL DEFAULT ''
);
`

// NewSQLite opens (and if needed creates) the SQLite store and applies
// the schema. The database file's directory is created on demand.
func NewSQLite(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?%s", url.PathEscape(cfg.Path),
		"_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// modernc sqlite serializes writers anyway; one connection avoids
	// SQLITE_BUSY on overlapping transactions.
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := seedDefaultAdmin(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// seedDefaultAdmin creates the bootstrap admin/admin account when the
// admins table is empty, matching the first-run behavior the operators
// expect. The password should be changed after the first login.
func seedDefaultAdmin(db *sqlx.DB) error {
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM admins"); err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash default password: %w", err)
	}
	if _, err := db.Exec("INSERT INTO admins (username, password_hash) VALUES (?, ?)", "admin", string(hash)); err != nil {
		return fmt.Errorf("seed default admin: %w", err)
	}
	return nil
}
