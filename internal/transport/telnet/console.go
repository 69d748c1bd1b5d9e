package telnet

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tcserver/tcserver/internal/core"
)

// Console feeds local stdin lines into the engine as a pre-authenticated
// admin session. It has no outbound socket: anything addressed to the
// issuer lands in the log instead.
type Console struct {
	engine *core.Engine
	log    *zerolog.Logger
	in     io.Reader
}

// NewConsole builds the console pseudo-connection reading from in.
func NewConsole(engine *core.Engine, in io.Reader, logger *zerolog.Logger) *Console {
	return &Console{engine: engine, log: logger, in: in}
}

// Run registers the console session and reads input lines until ctx is
// cancelled or the input stream ends.
func (c *Console) Run(ctx context.Context) {
	c.engine.Sessions.Login(core.Console, "admin")
	c.engine.Rooms.Join(core.Console, core.DefaultRoom)

	reply := func(text string) {
		c.log.Info().Msg(text)
	}

	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if c.engine.HandleLine(ctx, core.Console, line, reply) {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		c.log.Warn().Err(err).Msg("console input failed")
	}
}
