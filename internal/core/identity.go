// Package core implements the session, room, rate-limit, broadcast, and
// command-dispatch engine of the chat server.
package core

import (
	"net"
	"strconv"
)

// Identity uniquely keys one connection for the lifetime of its session:
// the peer address for TCP clients, or the synthetic console marker for
// the local stdin producer.
type Identity struct {
	Host string
	Port int
}

// Console is the synthetic identity of the local console pseudo-connection.
var Console = Identity{Host: "console", Port: 0}

// String renders the identity as host:port.
func (id Identity) String() string {
	return net.JoinHostPort(id.Host, strconv.Itoa(id.Port))
}

// IdentityFromAddr derives an Identity from a peer network address.
func IdentityFromAddr(addr net.Addr) Identity {
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return Identity{Host: addr.String()}
	}
	port, _ := strconv.Atoi(portStr)
	return Identity{Host: host, Port: port}
}
