//go:build linux

package main

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureSocket applies the same tuning as setSocketOptions to an already
// established *net.TCPConn (the accepted client socket, or the dialed relay
// socket) via its SyscallConn. Errors here are logged and otherwise ignored
// by the caller (spec §4.1: "errors from setsockopt are non-fatal").
func configureSocket(conn *net.TCPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sysErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		sysErr = applyTCPTuning(int(fd))
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return sysErr
}

// setSocketOptions configures TCP performance options on the raw socket fd.
// Called via net.Dialer.Control before connect(2) on the relay dial.
func setSocketOptions(network, address string, c syscall.RawConn) error {
	var sysErr error
	err := c.Control(func(fd uintptr) {
		sysErr = applyTCPTuning(int(fd))
	})
	if err != nil {
		return err
	}
	return sysErr
}

// applyTCPTuning enables keepalive and disables Nagle on fd. Per spec §3,
// both the client and relay sockets carry the same tuning and the 10s
// send/receive timeout (applied separately, via net.Conn.SetDeadline —
// see conn.go — rather than SO_RCVTIMEO/SO_SNDTIMEO, matching how the
// teacher repo itself enforces its handshake deadline).
func applyTCPTuning(fd int) error {
	// Allow address reuse for rapid restart
	if e := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); e != nil {
		return e
	}

	// Disable Nagle's algorithm for lower latency
	if e := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); e != nil {
		return e
	}

	// Enable TCP keepalive
	if e := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); e != nil {
		return e
	}

	// Keepalive idle time: 30 seconds
	if e := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, 30); e != nil {
		return e
	}

	// Keepalive interval: 10 seconds
	if e := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, 10); e != nil {
		return e
	}

	// Keepalive probes: 3
	if e := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPCNT, 3); e != nil {
		return e
	}

	return nil
}
