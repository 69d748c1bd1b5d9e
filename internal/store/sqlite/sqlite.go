package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tcserver/tcserver/internal/auth"
	"github.com/tcserver/tcserver/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at dbPath, applies the
// schema, and seeds the default admin user and lounge room on first boot.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := s.seed(); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		username      TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'user',
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS rooms (
		name        TEXT PRIMARY KEY,
		description TEXT NOT NULL DEFAULT '',
		created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS bans (
		username   TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// seed installs the default admin account and lounge room when the
// database is freshly created.
func (s *SQLiteStore) seed() error {
	ctx := context.Background()

	var userCount int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&userCount); err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if userCount == 0 {
		if _, err := s.Add(ctx, "admin", "admin", store.RoleAdmin); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
	}

	exists, err := s.Exists(ctx, "lounge")
	if err != nil {
		return fmt.Errorf("check lounge: %w", err)
	}
	if !exists {
		if _, err := s.Create(ctx, "lounge", "The default chat room"); err != nil {
			return fmt.Errorf("seed lounge: %w", err)
		}
	}

	return nil
}

// ==== UserStore implementation ====

// Authenticate reports whether username and password match a stored record.
func (s *SQLiteStore) Authenticate(ctx context.Context, username, password string) (bool, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT password_hash FROM users WHERE username = ?`, username,
	).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("select user: %w", err)
	}
	return auth.ComparePassword(hash, password) == nil, nil
}

// Add creates a user record with a hashed password. Returns false when
// the username is already taken, leaving the existing record untouched.
func (s *SQLiteStore) Add(ctx context.Context, username, password, role string) (bool, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (username, password_hash, role) VALUES (?, ?, ?)`,
		username, hash, role,
	)
	if err != nil {
		return false, fmt.Errorf("insert user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// SetRole updates the stored role of username.
func (s *SQLiteStore) SetRole(ctx context.Context, username, role string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE users SET role = ? WHERE username = ?`, role, username,
	); err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	return nil
}

// SetPassword replaces the stored password hash. Returns false if the
// username is unknown.
func (s *SQLiteStore) SetPassword(ctx context.Context, username, password string) (bool, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE username = ?`, hash, username,
	)
	if err != nil {
		return false, fmt.Errorf("update password: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// RoleOf returns the stored role, or "" when the username is unknown.
func (s *SQLiteStore) RoleOf(ctx context.Context, username string) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx,
		`SELECT role FROM users WHERE username = ?`, username,
	).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("select role: %w", err)
	}
	return role, nil
}

// ==== RoomStore implementation ====

// Exists reports whether a room with that name is defined.
func (s *SQLiteStore) Exists(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM rooms WHERE name = ?`, strings.ToLower(name),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("select room: %w", err)
	}
	return true, nil
}

// DescribeAll returns every defined room name mapped to its description.
func (s *SQLiteStore) DescribeAll(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, description FROM rooms`)
	if err != nil {
		return nil, fmt.Errorf("select rooms: %w", err)
	}
	defer rows.Close()

	rooms := make(map[string]string)
	for rows.Next() {
		var name, description string
		if err := rows.Scan(&name, &description); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms[name] = description
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}
	return rooms, nil
}

// Create defines a new room. Room names are stored lowercase so lookups
// match case-insensitively.
func (s *SQLiteStore) Create(ctx context.Context, name, description string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO rooms (name, description) VALUES (?, ?)`,
		strings.ToLower(name), description,
	)
	if err != nil {
		return false, fmt.Errorf("insert room: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ==== BanStore implementation ====

// Ban adds username to the ban set.
func (s *SQLiteStore) Ban(ctx context.Context, username string) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO bans (username) VALUES (?)`, strings.ToLower(username),
	); err != nil {
		return fmt.Errorf("insert ban: %w", err)
	}
	return nil
}

// Unban removes username from the ban set.
func (s *SQLiteStore) Unban(ctx context.Context, username string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM bans WHERE username = ?`, strings.ToLower(username),
	); err != nil {
		return fmt.Errorf("delete ban: %w", err)
	}
	return nil
}

// IsBanned reports whether username is in the ban set.
func (s *SQLiteStore) IsBanned(ctx context.Context, username string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM bans WHERE username = ?`, strings.ToLower(username),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("select ban: %w", err)
	}
	return true, nil
}
