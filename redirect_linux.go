//go:build linux

package main

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"unsafe"

	"golang.org/x/sys/unix"
)

// IP6T_SO_ORIGINAL_DST is not exported by golang.org/x/sys/unix; its value
// (80) is fixed by the netfilter ip6tables ABI.
const ip6tSoOriginalDst = 80

// originalDestination retrieves the pre-redirect destination address of an
// accepted, redirected connection via the netfilter SO_ORIGINAL_DST socket
// option, trying the IPv6 variant first and falling back to IPv4 (spec
// §4.1). host is rendered as a plain numeric address string (no brackets);
// port as a decimal string.
func originalDestination(conn *net.TCPConn) (host, port string, err error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return "", "", fmt.Errorf("original destination: %w", err)
	}

	var ip net.IP
	var p uint16
	var opErr error

	ctrlErr := raw.Control(func(fd uintptr) {
		if ip6, port6, e := getOriginalDstIPv6(int(fd)); e == nil {
			ip, p = ip6, port6
			return
		}
		if ip4, port4, e := getOriginalDstIPv4(int(fd)); e == nil {
			ip, p = ip4, port4
			return
		} else {
			opErr = e
		}
	})
	if ctrlErr != nil {
		return "", "", fmt.Errorf("original destination: %w", ctrlErr)
	}
	if ip == nil {
		if opErr == nil {
			opErr = fmt.Errorf("no original destination available")
		}
		return "", "", fmt.Errorf("original destination: %w", opErr)
	}

	return ip.String(), strconv.Itoa(int(p)), nil
}

// getOriginalDstIPv4 reads a sockaddr_in via SO_ORIGINAL_DST at IPPROTO_IP.
func getOriginalDstIPv4(fd int) (net.IP, uint16, error) {
	var buf [16]byte
	size := uint32(len(buf))
	if err := getsockopt(fd, unix.IPPROTO_IP, unix.SO_ORIGINAL_DST, unsafe.Pointer(&buf[0]), &size); err != nil {
		return nil, 0, err
	}
	return parseSockaddrIn(buf[:size])
}

// getOriginalDstIPv6 reads a sockaddr_in6 via SO_ORIGINAL_DST at IPPROTO_IPV6.
func getOriginalDstIPv6(fd int) (net.IP, uint16, error) {
	var buf [28]byte
	size := uint32(len(buf))
	if err := getsockopt(fd, unix.IPPROTO_IPV6, ip6tSoOriginalDst, unsafe.Pointer(&buf[0]), &size); err != nil {
		return nil, 0, err
	}
	return parseSockaddrIn6(buf[:size])
}

// parseSockaddrIn parses the [family(2)][port(2, BE)][addr(4)][...] layout
// of a struct sockaddr_in. Pulled out as a pure function so it is testable
// without a live socket.
func parseSockaddrIn(buf []byte) (net.IP, uint16, error) {
	if len(buf) < 8 {
		return nil, 0, fmt.Errorf("sockaddr_in: short read (%d bytes)", len(buf))
	}
	family := binary.LittleEndian.Uint16(buf[0:2])
	if family != unix.AF_INET {
		return nil, 0, fmt.Errorf("sockaddr_in: unexpected family %d", family)
	}
	port := binary.BigEndian.Uint16(buf[2:4])
	ip := net.IPv4(buf[4], buf[5], buf[6], buf[7])
	return ip, port, nil
}

// parseSockaddrIn6 parses [family(2)][port(2, BE)][flowinfo(4)][addr(16)][scope(4)].
func parseSockaddrIn6(buf []byte) (net.IP, uint16, error) {
	if len(buf) < 24 {
		return nil, 0, fmt.Errorf("sockaddr_in6: short read (%d bytes)", len(buf))
	}
	family := binary.LittleEndian.Uint16(buf[0:2])
	if family != unix.AF_INET6 {
		return nil, 0, fmt.Errorf("sockaddr_in6: unexpected family %d", family)
	}
	port := binary.BigEndian.Uint16(buf[2:4])
	ip := make(net.IP, 16)
	copy(ip, buf[8:24])
	return ip, port, nil
}

// getsockopt performs a raw getsockopt(2) into an arbitrary buffer; the
// typed helpers in golang.org/x/sys/unix only cover fixed-size structs, so
// SO_ORIGINAL_DST (a kernel-specific sockaddr payload) goes through the raw
// syscall directly, same shape as any other Control-based sockopt call in
// this package.
func getsockopt(fd, level, name int, ptr unsafe.Pointer, size *uint32) error {
	_, _, errno := unix.Syscall6(
		unix.SYS_GETSOCKOPT,
		uintptr(fd),
		uintptr(level),
		uintptr(name),
		uintptr(ptr),
		uintptr(unsafe.Pointer(size)),
		0,
	)
	if errno != 0 {
		return errno
	}
	return nil
}
