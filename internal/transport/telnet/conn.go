package telnet

import (
	"bytes"
	"context"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tcserver/tcserver/internal/core"
)

const (
	bannedNotice = "You are banned from this server.\r\n"
	readBufSize  = 1024
)

// handleConn owns one accepted socket: guest registration, ban check,
// welcome, and the byte-level read loop. Cleanup runs exactly once even
// when the close is triggered out-of-band by a kick.
func (s *Server) handleConn(ctx context.Context, sock net.Conn) {
	id := core.IdentityFromAddr(sock.RemoteAddr())
	logger := s.log.With().Str("conn_id", uuid.NewString()).Str("peer", id.String()).Logger()
	logger.Info().Msg("client connected")

	username := s.engine.Sessions.Register(id)
	s.engine.Rooms.Join(id, core.DefaultRoom)

	// The assigned name is a fresh guest name here, so this check matches
	// the ban set only if a ban targets the guest prefix space. Bans on
	// registered names take effect through kick/ban moderation instead.
	banned, err := s.bans.IsBanned(ctx, username)
	if err != nil {
		logger.Warn().Err(err).Msg("ban lookup failed")
	}
	if banned {
		_, _ = sock.Write([]byte(bannedNotice))
		_ = sock.Close()
		s.engine.Disconnect(id)
		logger.Info().Str("user", username).Msg("banned client refused")
		return
	}

	link := &netLink{sock: sock}
	s.engine.Conns.Add(id, link)

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			name := s.engine.Disconnect(id)
			_ = sock.Close()
			logger.Info().Str("user", name).Msg("client disconnected")
			s.engine.Cast.System("* User "+name+" disconnected", nil)
		})
	}
	defer cleanup()

	welcome := "\r\n" + s.banner + "\r\nYou are connected as: " + username + "\r\nType '/help' for available commands.\r\n"
	if err := link.Send([]byte(welcome)); err != nil {
		logger.Warn().Err(err).Msg("welcome failed")
		return
	}
	s.engine.Cast.System("* New user connected from "+id.Host+" as "+username, &id)

	reply := func(text string) {
		if err := link.Send([]byte("\r\n" + text + "\r\n")); err != nil {
			logger.Warn().Err(err).Msg("reply failed")
		}
	}

	var (
		input   []byte // raw bytes pending line assembly
		display []byte // what the client currently sees on its edit line
	)
	buf := make([]byte, readBufSize)

	for {
		n, err := sock.Read(buf)
		if n > 0 {
			data := buf[:n]

			// Character-at-a-time echo with backspace editing. The server,
			// not the client, provides local echo.
			for _, b := range data {
				if core.IsErase(b) {
					if len(display) > 0 {
						display = display[:len(display)-1]
						// backspace, space, backspace clears the character
						_ = link.Send([]byte{8, ' ', 8})
					}
					continue
				}
				display = append(display, b)
				_ = link.Send([]byte{b})
			}

			input = append(input, data...)
			for {
				cr := bytes.IndexByte(input, '\r')
				if cr < 0 {
					break
				}
				line := make([]byte, cr)
				copy(line, input[:cr])
				input = input[cr+1:]
				if len(input) > 0 && input[0] == '\n' {
					input = input[1:]
				}
				display = display[:0]

				// Each completed line is handled before the rest of the
				// buffer is examined.
				if s.handleLine(ctx, id, line, reply, &logger) {
					return
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// handleLine cleans one raw line and runs it through the engine. Returns
// true when the connection should close.
func (s *Server) handleLine(ctx context.Context, id core.Identity, raw []byte, reply func(string), logger *zerolog.Logger) bool {
	line, ok := core.CleanLine(raw)
	if !ok {
		logger.Warn().Msg("dropping line with non-ascii bytes")
		return false
	}
	return s.engine.HandleLine(ctx, id, line, reply)
}
