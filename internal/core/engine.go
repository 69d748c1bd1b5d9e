package core

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

const kickNotice = "\r\nYou have been kicked from the server.\r\n"

// Engine ties the registries, router, and broadcaster together and
// executes one completed input line on behalf of a connection.
type Engine struct {
	Conns    *ConnTable
	Sessions *Sessions
	Rooms    *Rooms
	Limiter  *Limiter
	Router   *Router
	Cast     *Broadcaster

	log *zerolog.Logger
}

// NewEngine assembles the line-handling engine from its parts.
func NewEngine(conns *ConnTable, sessions *Sessions, rooms *Rooms, limiter *Limiter, router *Router, cast *Broadcaster, logger *zerolog.Logger) *Engine {
	return &Engine{
		Conns:    conns,
		Sessions: sessions,
		Rooms:    rooms,
		Limiter:  limiter,
		Router:   router,
		Cast:     cast,
		log:      logger,
	}
}

// HandleLine processes one completed, cleaned line from id. reply delivers
// text addressed to the issuer (the console's replies land in the log).
// It returns true when the issuer's own connection should be closed.
func (e *Engine) HandleLine(ctx context.Context, id Identity, line string, reply func(string)) (quit bool) {
	if line == "" {
		return false
	}

	e.log.Debug().Str("peer", id.String()).Str("line", line).Msg("line received")

	if line[0] == '/' {
		return e.handleCommand(ctx, id, line[1:], reply)
	}
	e.handleChat(id, line, reply)
	return false
}

func (e *Engine) handleCommand(ctx context.Context, id Identity, command string, reply func(string)) bool {
	res := e.Router.Process(ctx, command, id)

	switch res.Kind {
	case ResultBroadcast:
		username, _ := e.Sessions.Username(id)
		text := fmt.Sprintf("[BROADCAST] %s: %s", username, res.Text)
		if res.SystemWide {
			e.Cast.System(text, nil)
		} else {
			room := e.Rooms.RoomOf(id)
			e.Cast.ToRoom(e.Rooms.Members(room), text, nil)
		}
	case ResultKick:
		if link, ok := e.Conns.Get(res.Target); ok {
			if err := link.Send([]byte(kickNotice)); err != nil {
				e.log.Warn().Err(err).Str("peer", res.Target.String()).Msg("kick notice failed")
			}
			// The target's read loop observes the close and runs cleanup.
			_ = link.Close()
		}
	case ResultQuit:
		if res.Text != "" {
			reply(res.Text)
		}
		return true
	default:
		if res.Text != "" {
			reply(res.Text)
		}
	}
	return false
}

// Disconnect tears down every registry entry held for id: room membership,
// connection table entry, session, and rate-limit window. Safe to call for
// identities that were never fully seated. Returns the username the session
// held, if any.
func (e *Engine) Disconnect(id Identity) string {
	name, _ := e.Sessions.Username(id)
	e.Rooms.LeaveCurrent(id)
	e.Conns.Remove(id)
	e.Sessions.Remove(id)
	e.Limiter.Reset(id)
	return name
}

func (e *Engine) handleChat(id Identity, text string, reply func(string)) {
	username, _ := e.Sessions.Username(id)

	if username == "" || IsGuestName(username) {
		reply("You must be logged in to chat. Use /help for commands.")
		return
	}
	if e.Limiter.IsLimited(id) {
		reply("Rate limit exceeded. Please wait a moment.")
		return
	}

	room := e.Rooms.RoomOf(id)
	message := fmt.Sprintf("[%s@%s]: %s", username, room, text)

	// Fan out to the room first, then echo back to the sender.
	e.Cast.ToRoom(e.Rooms.Members(room), message, &id)
	reply(message)
}
