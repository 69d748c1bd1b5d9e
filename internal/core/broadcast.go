package core

import "github.com/rs/zerolog"

// Broadcaster fans a formatted message out to a recipient set. Delivery is
// best effort: a failed send to one recipient is logged and skipped, never
// aborting the remaining fan-out and never tearing the recipient down.
type Broadcaster struct {
	conns *ConnTable
	log   *zerolog.Logger
}

// NewBroadcaster returns a broadcaster delivering over conns.
func NewBroadcaster(conns *ConnTable, logger *zerolog.Logger) *Broadcaster {
	return &Broadcaster{conns: conns, log: logger}
}

// System delivers text to every active connection except exclude.
func (b *Broadcaster) System(text string, exclude *Identity) {
	b.deliver(b.conns.Identities(), text, exclude)
}

// ToRoom delivers text to the given room member set, except exclude.
func (b *Broadcaster) ToRoom(members []Identity, text string, exclude *Identity) {
	b.deliver(members, text, exclude)
}

func (b *Broadcaster) deliver(recipients []Identity, text string, exclude *Identity) {
	// The console always sees the message via the local log.
	b.log.Info().Msg(text)

	payload := []byte("\r\n" + text + "\r\n")
	for _, id := range recipients {
		if id == Console {
			continue
		}
		if exclude != nil && id == *exclude {
			continue
		}
		link, ok := b.conns.Get(id)
		if !ok {
			continue
		}
		if err := link.Send(payload); err != nil {
			// The recipient's own read loop owns cleanup.
			b.log.Warn().Err(err).Str("peer", id.String()).Msg("broadcast delivery failed")
		}
	}
}
