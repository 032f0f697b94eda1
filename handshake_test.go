package main

import (
	"bytes"
	"encoding/binary"
	"strconv"
	"strings"
	"testing"
)

// P4 / S1: the opening frame is exactly 512 bytes, and decrypting its
// first 276 bytes with the key derived from its last 236 bytes recovers
// the magic value and the host/port fields.
func TestBuildFrameLayout(t *testing.T) {
	relay := &Relay{Key: []byte("secret")}

	frame, _, err := buildFrame("1.2.3.4", "80", relay)
	if err != nil {
		t.Fatalf("buildFrame: %v", err)
	}
	if len(frame) != frameSize {
		t.Fatalf("frame size = %d, want %d", len(frame), frameSize)
	}

	nonce := append([]byte{}, frame[nonceOff:nonceOff+nonceLen]...)
	sched := deriveKeySchedule(nonce, relay.Key)
	recv, err := newStream(sched)
	if err != nil {
		t.Fatalf("newStream: %v", err)
	}

	plain := append([]byte{}, frame[:plaintextLen]...)
	recv.Decrypt(plain)

	gotMagic := binary.BigEndian.Uint32(plain[magicOff : magicOff+magicLen])
	if gotMagic != magic {
		t.Fatalf("magic = %#x, want %#x", gotMagic, magic)
	}

	host := nulTerminated(plain[hostOff : hostOff+hostLen])
	if host != "1.2.3.4" {
		t.Fatalf("host = %q, want %q", host, "1.2.3.4")
	}

	port := nulTerminated(plain[portOff : portOff+portLen])
	if port != "80" {
		t.Fatalf("port = %q, want %q", port, "80")
	}
}

// R2: for any HOST <= 256 bytes and PORT <= 14 decimal digits, the fields
// round-trip through encryption intact.
func TestBuildFrameRoundTripVariousLengths(t *testing.T) {
	relay := &Relay{Key: []byte("another-key")}

	cases := []struct {
		host string
		port string
	}{
		{"a", "1"},
		{"example.com", "443"},
		{strings.Repeat("h", 256), "65535"},
		{"::1", strconv.Itoa(1 << 14)},
		{strings.Repeat("x", hostLen-1), strings.Repeat("9", portLen-1)},
	}

	for _, tc := range cases {
		frame, _, err := buildFrame(tc.host, tc.port, relay)
		if err != nil {
			t.Fatalf("buildFrame(%q, %q): %v", tc.host, tc.port, err)
		}

		nonce := append([]byte{}, frame[nonceOff:nonceOff+nonceLen]...)
		sched := deriveKeySchedule(nonce, relay.Key)
		recv, err := newStream(sched)
		if err != nil {
			t.Fatalf("newStream: %v", err)
		}
		plain := append([]byte{}, frame[:plaintextLen]...)
		recv.Decrypt(plain)

		if got := nulTerminated(plain[hostOff : hostOff+hostLen]); got != tc.host {
			t.Errorf("host round trip: got %q want %q", got, tc.host)
		}
		if got := nulTerminated(plain[portOff : portOff+portLen]); got != tc.port {
			t.Errorf("port round trip: got %q want %q", got, tc.port)
		}
	}
}

func TestBuildFrameRejectsOversizedFields(t *testing.T) {
	relay := &Relay{Key: []byte("k")}

	if _, _, err := buildFrame(strings.Repeat("h", hostLen), "80", relay); err == nil {
		t.Fatalf("expected error for oversized host")
	}
	if _, _, err := buildFrame("host", strings.Repeat("9", portLen), relay); err == nil {
		t.Fatalf("expected error for oversized port")
	}
}

func TestBuildFrameNoncesAreNotReused(t *testing.T) {
	relay := &Relay{Key: []byte("k")}

	frame1, _, err := buildFrame("host", "80", relay)
	if err != nil {
		t.Fatalf("buildFrame: %v", err)
	}
	frame2, _, err := buildFrame("host", "80", relay)
	if err != nil {
		t.Fatalf("buildFrame: %v", err)
	}

	n1 := frame1[nonceOff : nonceOff+nonceLen]
	n2 := frame2[nonceOff : nonceOff+nonceLen]
	if bytes.Equal(n1, n2) {
		t.Fatalf("two handshake frames produced identical nonces")
	}
}

func nulTerminated(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		return string(field[:i])
	}
	return string(field)
}
