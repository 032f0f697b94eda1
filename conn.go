package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// bufferCapacity is the fixed per-direction buffer size (spec §3: tx_buf /
// rx_buf, capacity 8192). Unlike the source, which tracks tx_off/tx_len by
// hand across possibly-resumed non-blocking writes, the forwarding pump
// below relies on net.Conn.Write's io.Writer contract (it either writes
// every byte or returns an error) to do that bookkeeping internally; the
// buffer still bounds how much of one direction's stream can be in flight
// at once, which is the property spec §5 actually cares about.
const bufferCapacity = 8192

type phase int32

const (
	phaseDialing phase = iota
	phaseHandshaking
	phaseEstablished
	phaseTerminated
)

// Connection owns one accepted client socket and its paired relay socket
// for the lifetime of one forwarded stream (spec §3 "Connection object").
type Connection struct {
	client net.Conn
	relay  net.Conn
	cipher *Stream
	frame  []byte
	phase  int32 // atomic, holds a phase value

	timeout time.Duration

	releaseOnce sync.Once
	release     func()
}

// run drives a Connection from Dialing through Established to Terminated.
// The relay dial itself already happened by the time run is called
// (net.Dialer.Dial blocks until connect succeeds or fails, which folds
// spec §4.2's "connect completion handler" into the acceptor's dial call —
// see acceptor.go).
func (c *Connection) run() {
	defer c.cleanup()

	atomic.StoreInt32(&c.phase, int32(phaseHandshaking))
	if err := c.writeHandshake(); err != nil {
		log.Printf("[conn] handshake write failed: %v", err)
		return
	}

	atomic.StoreInt32(&c.phase, int32(phaseEstablished))
	c.forward()
}

// writeHandshake sends the pre-built 512-byte opening frame. net.Conn.Write
// on a stream socket already loops internally until every byte is written
// or an error occurs, which is exactly the resumable behavior spec §4.4 and
// §9 require of the handshake write path (the open question about the
// source's possibly non-resumable handshake does not arise here).
func (c *Connection) writeHandshake() error {
	c.relay.SetWriteDeadline(time.Now().Add(c.timeout))
	defer c.relay.SetWriteDeadline(time.Time{})

	n, err := c.relay.Write(c.frame)
	if err != nil {
		return fmt.Errorf("write %d/%d bytes: %w", n, len(c.frame), err)
	}
	if n != len(c.frame) {
		return fmt.Errorf("short handshake write: %d/%d bytes", n, len(c.frame))
	}
	return nil
}

// forward runs the Established phase: two independent half-duplex pumps
// (spec §4.6), torn down together the moment either one ends (spec §4.6
// "Termination... both directions are torn down together").
func (c *Connection) forward() {
	var stopOnce sync.Once
	stop := func() {
		stopOnce.Do(func() {
			c.client.Close()
			c.relay.Close()
		})
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		err := c.pump(c.client, c.relay, c.cipher.Encrypt)
		logPumpResult("outbound", err)
		stop()
	}()

	go func() {
		defer wg.Done()
		err := c.pump(c.relay, c.client, c.cipher.Decrypt)
		logPumpResult("inbound", err)
		stop()
	}()

	wg.Wait()
}

// pump implements one direction's feed/drain cycle (spec §4.6): read up to
// bufferCapacity bytes, cipher-transform exactly those bytes, then write
// them to the peer before reading again. Because dst.Write blocks until
// the whole chunk is delivered (or errors), the pump is never reading more
// than bufferCapacity bytes ahead of what has been fully handed to the
// peer socket — the same bound spec §3 enforces explicitly via tx_len/rx_len.
func (c *Connection) pump(src, dst net.Conn, transform func([]byte)) error {
	buf := make([]byte, bufferCapacity)
	for {
		src.SetReadDeadline(time.Now().Add(c.timeout))
		n, err := src.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			transform(chunk)

			dst.SetWriteDeadline(time.Now().Add(c.timeout))
			if _, werr := dst.Write(chunk); werr != nil {
				return fmt.Errorf("write: %w", werr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
	}
}

func logPumpResult(direction string, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, syscall.ECONNRESET) {
		log.Printf("[conn] %s: peer reset", direction)
		return
	}
	log.Printf("[conn] %s: %v", direction, err)
}

// cleanup disarms nothing explicitly (there are no reactor intents to
// disarm in the goroutine model) but closes both sockets and releases the
// pool slot exactly once, satisfying spec §4.7's idempotency and §8's P6
// ("after cleanup, neither socket number is ever passed to a subsequent
// syscall by this connection's handlers") — once closed, any goroutine
// still touching client/relay observes an error and returns.
func (c *Connection) cleanup() {
	c.client.Close()
	c.relay.Close()
	atomic.StoreInt32(&c.phase, int32(phaseTerminated))
	c.releaseOnce.Do(c.release)
}
