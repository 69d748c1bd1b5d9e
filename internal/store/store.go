package store

import "context"

// Roles assignable to stored user records.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a stored credential record. Usernames are case-sensitive
// unique keys.
type User struct {
	Username     string
	PasswordHash string
	Role         string
}

// UserStore handles credential persistence.
type UserStore interface {
	// Authenticate reports whether username and password match a stored record.
	Authenticate(ctx context.Context, username, password string) (bool, error)

	// Add creates a user record with the given role. Returns false with no
	// state change if the username is already taken.
	Add(ctx context.Context, username, password, role string) (bool, error)

	// SetRole updates the stored role of username.
	SetRole(ctx context.Context, username, role string) error

	// SetPassword replaces the stored password hash. Returns false if the
	// username is unknown.
	SetPassword(ctx context.Context, username, password string) (bool, error)

	// RoleOf returns the stored role, or "" when the username is unknown.
	RoleOf(ctx context.Context, username string) (string, error)
}

// RoomStore handles room definition persistence.
type RoomStore interface {
	// Exists reports whether a room with that name is defined. Names are
	// matched case-insensitively.
	Exists(ctx context.Context, name string) (bool, error)

	// DescribeAll returns every defined room name mapped to its description.
	DescribeAll(ctx context.Context) (map[string]string, error)

	// Create defines a new room. Returns false with no state change if the
	// name is already taken.
	Create(ctx context.Context, name, description string) (bool, error)
}

// BanStore handles the set of banned usernames. Names are normalized to
// lowercase, so bans match case-insensitively.
type BanStore interface {
	Ban(ctx context.Context, username string) error
	Unban(ctx context.Context, username string) error
	IsBanned(ctx context.Context, username string) (bool, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	RoomStore
	BanStore

	// Close closes the underlying database connection.
	Close() error
}
