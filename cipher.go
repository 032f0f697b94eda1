package main

import (
	"crypto/md5"
	"crypto/rc4"
	"sync"
)

// deriveKeySchedule computes the 64-byte cipher seed from the handshake
// nonce and the relay's shared key, per spec §4.3:
//
//	k[0..16]  = MD5(nonce || relayKey)
//	k[16..32] = MD5(k[0..16])
//	k[32..48] = MD5(k[0..32])
//	k[48..64] = MD5(k[0..48])
func deriveKeySchedule(nonce, relayKey []byte) [64]byte {
	var sched [64]byte

	seed := make([]byte, 0, len(nonce)+len(relayKey))
	seed = append(seed, nonce...)
	seed = append(seed, relayKey...)

	h := md5.Sum(seed)
	copy(sched[0:16], h[:])

	h = md5.Sum(sched[0:16])
	copy(sched[16:32], h[:])

	h = md5.Sum(sched[0:32])
	copy(sched[32:48], h[:])

	h = md5.Sum(sched[0:48])
	copy(sched[48:64], h[:])

	return sched
}

// Stream is the single shared keystream state for one connection. Spec
// §4.5 and §9 require a single stream consumed by interleaved encrypt of
// outbound bytes and decrypt of inbound bytes; encrypt and decrypt are the
// same XOR transform, named only for the direction of the caller. Because
// the forwarding pumps for the two directions run on separate goroutines
// (see conn.go), access to the underlying cipher is serialized by mu.
type Stream struct {
	mu     sync.Mutex
	cipher *rc4.Cipher
}

// newStream initializes a Stream from a 64-byte key schedule.
func newStream(key [64]byte) (*Stream, error) {
	c, err := rc4.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return &Stream{cipher: c}, nil
}

// Encrypt XORs buf in place against the next len(buf) keystream bytes,
// advancing the shared stream position by len(buf).
func (s *Stream) Encrypt(buf []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cipher.XORKeyStream(buf, buf)
}

// Decrypt is the same transform as Encrypt; kept as a distinct method so
// call sites read as direction-aware even though the underlying operation
// is identical (spec §4.5).
func (s *Stream) Decrypt(buf []byte) {
	s.Encrypt(buf)
}
