// Package telnet drives the raw-TCP line protocol: accept loop,
// per-connection byte-level line editing, and the local console.
package telnet

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tcserver/tcserver/internal/config"
	"github.com/tcserver/tcserver/internal/core"
	"github.com/tcserver/tcserver/internal/store"
)

const serverFullNotice = "Server is full. Please try again later.\r\n"

// Server accepts TCP clients and runs the per-connection lifecycle.
type Server struct {
	cfg    config.Config
	engine *core.Engine
	bans   store.BanStore
	banner string
	log    *zerolog.Logger

	ln net.Listener
}

// NewServer builds a server around an assembled engine.
func NewServer(cfg config.Config, engine *core.Engine, bans store.BanStore, banner string, logger *zerolog.Logger) *Server {
	return &Server{
		cfg:    cfg,
		engine: engine,
		bans:   bans,
		banner: banner,
		log:    logger,
	}
}

// Listen binds the TCP listener. A bind failure is fatal to the process,
// so it is returned rather than retried.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.cfg.Addr(), err)
	}
	s.ln = ln
	s.log.Info().Str("addr", ln.Addr().String()).Int("max_connections", s.cfg.MaxConnections).Msg("listening")
	return nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Serve accepts connections until ctx is cancelled or the listener fails.
// Connections over the configured cap are refused before any session is
// created.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.ln.Close()
	}()

	var backoff time.Duration
	for {
		sock, err := s.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			// Transient failures such as fd exhaustion must not take the
			// listener down. Back off and keep accepting.
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				if backoff == 0 {
					backoff = 5 * time.Millisecond
				} else {
					backoff *= 2
				}
				if backoff > time.Second {
					backoff = time.Second
				}
				s.log.Warn().Err(err).Dur("backoff", backoff).Msg("temporary accept error")
				time.Sleep(backoff)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		backoff = 0

		if s.engine.Conns.Len() >= s.cfg.MaxConnections {
			s.log.Warn().Str("peer", sock.RemoteAddr().String()).Msg("refusing connection, server full")
			_, _ = sock.Write([]byte(serverFullNotice))
			_ = sock.Close()
			continue
		}

		go s.handleConn(ctx, sock)
	}
}

// netLink is the outbound side of one TCP connection. Sends are serialized
// so concurrent fan-outs do not interleave mid-message.
type netLink struct {
	mu   sync.Mutex
	sock net.Conn
}

func (l *netLink) Send(p []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.sock.Write(p)
	return err
}

func (l *netLink) Close() error {
	return l.sock.Close()
}
