package session

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Handshake is the readiness token the dialing receiver writes before the
// acceptor frames anything.
var Handshake = []byte("ACK")

var ErrHandshakeMismatch = errors.New("session: handshake mismatch")

func WriteHandshake(w io.Writer) error {
	_, err := w.Write(Handshake)
	return err
}

// ReadHandshake reads exactly len(Handshake) bytes and checks them.
func ReadHandshake(r io.Reader) error {
	got := make([]byte, len(Handshake))
	if _, err := io.ReadFull(r, got); err != nil {
		return fmt.Errorf("session: read handshake: %w", err)
	}
	if !bytes.Equal(got, Handshake) {
		return fmt.Errorf("%w: got=%q", ErrHandshakeMismatch, got)
	}
	return nil
}
