package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tcserver/tcserver/internal/store"
)

// ResultKind tags the outcome of one command.
type ResultKind int

const (
	// ResultInfo is plain text shown only to the issuer.
	ResultInfo ResultKind = iota
	// ResultBroadcast is text to be fanned out by the caller.
	ResultBroadcast
	// ResultKick names a connection to be forcibly disconnected.
	ResultKick
	// ResultQuit closes the issuer's own connection.
	ResultQuit
)

// Result is the typed outcome of one command. It carries a structured
// target identity rather than a serialized one, so nothing downstream ever
// re-parses response text.
type Result struct {
	Kind       ResultKind
	Text       string
	SystemWide bool
	Target     Identity // set for ResultKick
}

func info(text string) Result {
	return Result{Kind: ResultInfo, Text: text}
}

type handlerFunc func(ctx context.Context, args []string, id Identity) Result

// Router parses slash commands, enforces permissions, and produces a typed
// Result. Permission failures are Info results with no side effect.
type Router struct {
	sessions *Sessions
	rooms    *Rooms
	users    store.UserStore
	bans     store.BanStore
	limiter  *Limiter
	log      *zerolog.Logger
	handlers map[string]handlerFunc
}

// NewRouter wires the command dispatch table.
func NewRouter(sessions *Sessions, rooms *Rooms, users store.UserStore, bans store.BanStore, limiter *Limiter, logger *zerolog.Logger) *Router {
	r := &Router{
		sessions: sessions,
		rooms:    rooms,
		users:    users,
		bans:     bans,
		limiter:  limiter,
		log:      logger,
	}
	r.handlers = map[string]handlerFunc{
		"help":      r.cmdHelp,
		"login":     r.cmdLogin,
		"register":  r.cmdRegister,
		"whoami":    r.cmdWhoami,
		"users":     r.cmdUsers,
		"rooms":     r.cmdRooms,
		"join":      r.cmdJoin,
		"op":        r.cmdOp,
		"deop":      r.cmdDeop,
		"kick":      r.cmdKick,
		"ban":       r.cmdBan,
		"unban":     r.cmdUnban,
		"create":    r.cmdCreate,
		"broadcast": r.cmdBroadcast,
		"passwd":    r.cmdPasswd,
		"quit":      r.cmdQuit,
	}
	return r
}

// Process dispatches one command line (slash prefix already stripped) on
// behalf of id. The first whitespace token picks the handler
// case-insensitively; the rest are positional arguments.
func (r *Router) Process(ctx context.Context, line string, id Identity) Result {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return info("")
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	handler, ok := r.handlers[cmd]
	if !ok {
		return info(fmt.Sprintf("Unknown command: %s. Type 'help' for available commands.", cmd))
	}
	return handler(ctx, args, id)
}

func (r *Router) username(id Identity) string {
	name, _ := r.sessions.Username(id)
	return name
}

func (r *Router) isAuthenticated(id Identity) bool {
	name := r.username(id)
	return name != "" && !IsGuestName(name)
}

func (r *Router) isAdmin(ctx context.Context, id Identity) bool {
	name := r.username(id)
	if name == "" || IsGuestName(name) {
		return false
	}
	role, err := r.users.RoleOf(ctx, name)
	if err != nil {
		r.log.Warn().Err(err).Str("user", name).Msg("role lookup failed")
		return false
	}
	return role == store.RoleAdmin
}

func (r *Router) cmdHelp(ctx context.Context, _ []string, id Identity) Result {
	type entry struct{ cmd, desc string }

	guestCommands := []entry{
		{"help", "Show this help message"},
		{"login", "Login with username and password"},
		{"whoami", "Show current username"},
		{"register", "Register new user"},
		{"rooms", "List available rooms"},
		{"join", "Switch to another room"},
		{"quit", "Disconnect from the server"},
	}
	authCommands := []entry{
		{"broadcast", "Broadcast a message to all users"},
		{"users", "List online users"},
		{"passwd", "Change your password"},
	}
	adminCommands := []entry{
		{"op", "Give admin privileges to user"},
		{"deop", "Remove admin privileges from user"},
		{"kick", "Disconnect a user from the server"},
		{"ban", "Ban a username from the server"},
		{"unban", "Lift a username ban"},
		{"create", "Create a new room"},
	}

	lines := []string{
		"+-------------COMMANDS-------------+",
		"#  Basic Commands:                #",
	}
	for _, e := range guestCommands {
		lines = append(lines, fmt.Sprintf("# /%-10s - %-15s #", e.cmd, e.desc))
	}
	if r.isAuthenticated(id) {
		lines = append(lines, "#                                #", "#  User Commands:                #")
		for _, e := range authCommands {
			lines = append(lines, fmt.Sprintf("# /%-10s - %-15s #", e.cmd, e.desc))
		}
	}
	if r.isAdmin(ctx, id) {
		lines = append(lines, "#                                #", "#  Admin Commands:               #")
		for _, e := range adminCommands {
			lines = append(lines, fmt.Sprintf("# /%-10s - %-15s #", e.cmd, e.desc))
		}
	}
	lines = append(lines, "+--------------------------------+")
	return info(strings.Join(lines, "\n"))
}

func (r *Router) cmdLogin(ctx context.Context, args []string, id Identity) Result {
	if len(args) != 2 {
		return info("Usage: login <username> <password>")
	}
	username, password := args[0], args[1]

	matched, err := r.users.Authenticate(ctx, username, password)
	if err != nil {
		r.log.Warn().Err(err).Str("user", username).Msg("authenticate failed")
		return info("Invalid username or password")
	}
	if !matched {
		return info("Invalid username or password")
	}

	r.sessions.Login(id, username)
	r.limiter.Reset(id)
	return info(fmt.Sprintf("Successfully logged in as %s", username))
}

func (r *Router) cmdRegister(ctx context.Context, args []string, _ Identity) Result {
	if len(args) != 2 {
		return info("Usage: register <username> <password>")
	}
	username, password := args[0], args[1]

	added, err := r.users.Add(ctx, username, password, store.RoleUser)
	if err != nil {
		r.log.Warn().Err(err).Str("user", username).Msg("register failed")
		return info("Username already exists")
	}
	if !added {
		return info("Username already exists")
	}
	return info(fmt.Sprintf("User %s registered successfully", username))
}

func (r *Router) cmdWhoami(_ context.Context, _ []string, id Identity) Result {
	return info(fmt.Sprintf("You are: %s", r.username(id)))
}

func (r *Router) cmdUsers(_ context.Context, _ []string, id Identity) Result {
	if !r.isAuthenticated(id) {
		return info("You must be logged in to list users")
	}

	sessions := r.sessions.All()
	lines := make([]string, 0, len(sessions))
	for sid, name := range sessions {
		lines = append(lines, fmt.Sprintf("%s: %s", sid, name))
	}
	sort.Strings(lines)
	return info("Online users:\n" + strings.Join(lines, "\n"))
}

func (r *Router) cmdRooms(_ context.Context, _ []string, _ Identity) Result {
	rooms := r.rooms.List()
	names := make([]string, 0, len(rooms))
	for name := range rooms {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%s - %s", name, rooms[name]))
	}
	return info("Available rooms:\n" + strings.Join(lines, "\n"))
}

func (r *Router) cmdJoin(_ context.Context, args []string, id Identity) Result {
	if len(args) != 1 {
		return info("Usage: join <room>")
	}
	name := args[0]
	if !r.rooms.Join(id, name) {
		return info(fmt.Sprintf("Room %s does not exist", name))
	}
	return info(fmt.Sprintf("You joined %s", strings.ToLower(name)))
}

func (r *Router) cmdOp(ctx context.Context, args []string, id Identity) Result {
	if !r.isAdmin(ctx, id) {
		return info("You don't have permission to use this command")
	}
	if len(args) != 1 {
		return info("Usage: op <username>")
	}
	username := args[0]

	role, err := r.users.RoleOf(ctx, username)
	if err != nil || role == "" {
		return info("User not found")
	}
	if err := r.users.SetRole(ctx, username, store.RoleAdmin); err != nil {
		r.log.Warn().Err(err).Str("user", username).Msg("set role failed")
		return info("User not found")
	}
	return info(fmt.Sprintf("User %s is now an admin", username))
}

func (r *Router) cmdDeop(ctx context.Context, args []string, id Identity) Result {
	if !r.isAdmin(ctx, id) {
		return info("You don't have permission to use this command")
	}
	if len(args) != 1 {
		return info("Usage: deop <username>")
	}
	username := args[0]

	role, err := r.users.RoleOf(ctx, username)
	if err != nil || role == "" {
		return info("User not found")
	}
	if err := r.users.SetRole(ctx, username, store.RoleUser); err != nil {
		r.log.Warn().Err(err).Str("user", username).Msg("set role failed")
		return info("User not found")
	}
	return info(fmt.Sprintf("User %s is no longer an admin", username))
}

func (r *Router) cmdKick(ctx context.Context, args []string, id Identity) Result {
	if !r.isAdmin(ctx, id) {
		return info("You don't have permission to use this command")
	}
	if len(args) != 1 {
		return info("Usage: kick <username>")
	}
	username := args[0]

	target, ok := r.sessions.Find(username)
	if !ok {
		return info("User not found or not online")
	}
	role, err := r.users.RoleOf(ctx, username)
	if err == nil && role == store.RoleAdmin {
		return info("Cannot kick an admin")
	}
	return Result{Kind: ResultKick, Target: target}
}

func (r *Router) cmdBan(ctx context.Context, args []string, id Identity) Result {
	if !r.isAdmin(ctx, id) {
		return info("You don't have permission to use this command")
	}
	if len(args) != 1 {
		return info("Usage: ban <username>")
	}
	username := args[0]

	role, err := r.users.RoleOf(ctx, username)
	if err == nil && role == store.RoleAdmin {
		return info("Cannot ban an admin")
	}
	if err := r.bans.Ban(ctx, username); err != nil {
		r.log.Warn().Err(err).Str("user", username).Msg("ban failed")
		return info("Failed to ban user")
	}
	return info(fmt.Sprintf("User %s has been banned", username))
}

func (r *Router) cmdUnban(ctx context.Context, args []string, id Identity) Result {
	if !r.isAdmin(ctx, id) {
		return info("You don't have permission to use this command")
	}
	if len(args) != 1 {
		return info("Usage: unban <username>")
	}
	username := args[0]

	if err := r.bans.Unban(ctx, username); err != nil {
		r.log.Warn().Err(err).Str("user", username).Msg("unban failed")
		return info("Failed to unban user")
	}
	return info(fmt.Sprintf("User %s has been unbanned", username))
}

func (r *Router) cmdCreate(ctx context.Context, args []string, id Identity) Result {
	if !r.isAdmin(ctx, id) {
		return info("You don't have permission to use this command")
	}
	if len(args) < 1 {
		return info("Usage: create <room> [description]")
	}
	name := args[0]
	description := strings.Join(args[1:], " ")

	created, err := r.rooms.Create(ctx, name, description)
	if err != nil {
		r.log.Warn().Err(err).Str("room", name).Msg("create room failed")
		return info("Failed to create room")
	}
	if !created {
		return info("Room already exists")
	}
	return info(fmt.Sprintf("Room %s created", strings.ToLower(name)))
}

func (r *Router) cmdBroadcast(_ context.Context, args []string, id Identity) Result {
	if len(args) == 0 {
		return info("Usage: broadcast <message>")
	}
	if !r.isAuthenticated(id) {
		return info("You must be logged in to broadcast messages")
	}
	if r.limiter.IsLimited(id) {
		return info("Rate limit exceeded. Please wait a moment.")
	}
	return Result{Kind: ResultBroadcast, Text: strings.Join(args, " "), SystemWide: true}
}

func (r *Router) cmdPasswd(ctx context.Context, args []string, id Identity) Result {
	if len(args) != 2 {
		return info("Usage: passwd <old_password> <new_password>")
	}
	oldPassword, newPassword := args[0], args[1]

	if !r.isAuthenticated(id) {
		return info("You must be logged in to change password")
	}
	username := r.username(id)

	matched, err := r.users.Authenticate(ctx, username, oldPassword)
	if err != nil || !matched {
		return info("Current password is incorrect")
	}

	changed, err := r.users.SetPassword(ctx, username, newPassword)
	if err != nil || !changed {
		return info("Failed to change password")
	}
	return info("Password changed successfully")
}

func (r *Router) cmdQuit(_ context.Context, _ []string, _ Identity) Result {
	return Result{Kind: ResultQuit, Text: "Goodbye!"}
}
