//go:build !linux

package main

import (
	"fmt"
	"net"
)

// originalDestination is unsupported off Linux: SO_ORIGINAL_DST is a
// netfilter/Linux-specific socket option (spec §6, "transparent-redirect
// interface" is explicitly an OS facility this core only consumes).
func originalDestination(conn *net.TCPConn) (host, port string, err error) {
	return "", "", fmt.Errorf("original destination lookup is only supported on linux")
}
