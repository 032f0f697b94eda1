package main

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// Opening frame layout (spec §4.3): a fixed 512-byte record.
const (
	frameSize = 512
	magic     = uint32(0x526F6E61) // "Rona"

	magicOff = 0
	magicLen = 4

	hostOff = magicOff + magicLen // 4
	hostLen = 257

	portOff = hostOff + hostLen // 261
	portLen = 15

	nonceOff = portOff + portLen // 276
	nonceLen = 236

	// plaintextLen is the number of leading bytes (MAGIC||HOST||PORT)
	// that are cipher-transformed before transmission; the nonce itself
	// travels as plaintext so the peer can derive the same key.
	plaintextLen = nonceOff // 276
)

func init() {
	if nonceOff+nonceLen != frameSize {
		panic("handshake: frame layout does not sum to 512 bytes")
	}
}

// buildFrame constructs the encrypted opening frame for one connection and
// the Stream that will carry both the frame's plaintext prefix and all
// subsequent traffic on this connection.
func buildFrame(host, port string, relay *Relay) ([]byte, *Stream, error) {
	if len(host) > hostLen-1 {
		return nil, nil, fmt.Errorf("handshake: host %q exceeds %d bytes", host, hostLen-1)
	}
	if len(port) > portLen-1 {
		return nil, nil, fmt.Errorf("handshake: port %q exceeds %d bytes", port, portLen-1)
	}

	frame := make([]byte, frameSize)
	binary.BigEndian.PutUint32(frame[magicOff:magicOff+magicLen], magic)
	copy(frame[hostOff:hostOff+hostLen], host)
	copy(frame[portOff:portOff+portLen], port)

	nonce := frame[nonceOff : nonceOff+nonceLen]
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("handshake: read nonce: %w", err)
	}

	sched := deriveKeySchedule(nonce, relay.Key)
	stream, err := newStream(sched)
	if err != nil {
		return nil, nil, fmt.Errorf("handshake: init cipher: %w", err)
	}

	stream.Encrypt(frame[:plaintextLen])

	return frame, stream, nil
}
