package main

import (
	"errors"
	"fmt"
	"log"
	"net"
	"time"
)

// Acceptor listens on the redirect endpoint and spins up one Connection
// per accepted client socket (spec §4.1).
type Acceptor struct {
	ln      net.Listener
	pool    *connPool
	relays  []*Relay
	timeout time.Duration
}

// NewAcceptor resolves every relay, opens the redirect listener, and
// returns an Acceptor ready to Serve. Listener bind/listen failure exits 4
// per spec §6; it is reported to the caller (main.go) to apply that code.
func NewAcceptor(cfg *Config) (*Acceptor, error) {
	relays, err := buildRelays(cfg.Server)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(cfg.Redir.Address, cfg.Redir.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	return &Acceptor{
		ln:      ln,
		pool:    newConnPool(cfg.PoolSize),
		relays:  relays,
		timeout: cfg.Timeout,
	}, nil
}

// Addr returns the listener's bound address.
func (a *Acceptor) Addr() net.Addr { return a.ln.Addr() }

// Close stops the listener; in-flight connections are not drained (spec
// §4.8 "in-flight connections are not drained").
func (a *Acceptor) Close() error { return a.ln.Close() }

// Serve accepts connections until the listener is closed.
func (a *Acceptor) Serve() error {
	for {
		c, err := a.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Printf("[acceptor] accept error: %v", err)
			continue
		}
		go a.handleAccept(c)
	}
}

// handleAccept implements spec §4.1 end to end for one accepted socket:
// pool admission, socket tuning, original-destination lookup, relay
// selection, handshake frame construction, and the (blocking) relay dial
// that stands in for the source's async connect + connect-complete
// handler (spec §4.2).
func (a *Acceptor) handleAccept(raw net.Conn) {
	if !a.pool.tryAcquire() {
		log.Printf("[acceptor] pool exhausted, dropping connection from %s", raw.RemoteAddr())
		raw.Close()
		return
	}

	// release is called exactly once per accepted connection: either on
	// one of the early-return paths below, or — once a Connection is
	// constructed — via Connection.cleanup's sync.Once.
	release := a.pool.release

	client, ok := raw.(*net.TCPConn)
	if !ok {
		raw.Close()
		release()
		return
	}

	if err := configureSocket(client); err != nil {
		log.Printf("[acceptor] client setsockopt: %v", err)
	}

	host, port, err := originalDestination(client)
	if err != nil {
		log.Printf("[acceptor] original destination lookup failed: %v", err)
		client.Close()
		release()
		return
	}

	idx, err := pickRelay(len(a.relays))
	if err != nil {
		log.Printf("[acceptor] relay selection failed: %v", err)
		client.Close()
		release()
		return
	}
	relay := a.relays[idx]

	frame, stream, err := buildFrame(host, port, relay)
	if err != nil {
		log.Printf("[acceptor] build handshake frame: %v", err)
		client.Close()
		release()
		return
	}

	dialer := net.Dialer{
		Timeout:   a.timeout,
		KeepAlive: 30 * time.Second,
		Control:   setSocketOptions,
	}
	relayConn, err := dialer.Dial(relay.Addr.Network(), relay.Addr.String())
	if err != nil {
		log.Printf("[conn] connect to relay failed: %v", err)
		client.Close()
		release()
		return
	}
	if relayTCP, ok := relayConn.(*net.TCPConn); ok {
		if err := configureSocket(relayTCP); err != nil {
			log.Printf("[acceptor] relay setsockopt: %v", err)
		}
	}

	conn := &Connection{
		client:  client,
		relay:   relayConn,
		cipher:  stream,
		frame:   frame,
		phase:   int32(phaseDialing),
		timeout: a.timeout,
		release: release,
	}
	conn.run()
}
