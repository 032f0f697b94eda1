package main

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
)

// Relay is one configured upstream: its resolved address and the shared
// key used to derive the per-connection cipher key schedule.
type Relay struct {
	Addr *net.TCPAddr
	Key  []byte
}

// RelayResolveError marks a relay address resolution failure, which is
// fatal to the process at startup per spec §6 ("address-lookup failure at
// startup is fatal to the process") — distinguished from other setup
// failures so main.go can apply the right exit code.
type RelayResolveError struct {
	Err error
}

func (e *RelayResolveError) Error() string { return e.Err.Error() }
func (e *RelayResolveError) Unwrap() error { return e.Err }

// buildRelays resolves every configured server entry.
func buildRelays(servers []ServerConfig) ([]*Relay, error) {
	relays := make([]*Relay, 0, len(servers))
	for i, s := range servers {
		addr, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(s.Address, s.Port))
		if err != nil {
			return nil, &RelayResolveError{Err: fmt.Errorf("server[%d]: resolve %s:%s: %w", i, s.Address, s.Port, err)}
		}
		relays = append(relays, &Relay{
			Addr: addr,
			Key:  []byte(s.Key),
		})
	}
	return relays, nil
}

// pickRelay selects an index into a slice of n relays uniformly at random.
// Per spec §4.1: one crypto/rand read of a machine word, modulo n.
func pickRelay(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("pickRelay: no relays configured")
	}
	var word [8]byte
	if _, err := rand.Read(word[:]); err != nil {
		return 0, fmt.Errorf("read randomness: %w", err)
	}
	return int(binary.BigEndian.Uint64(word[:]) % uint64(n)), nil
}
