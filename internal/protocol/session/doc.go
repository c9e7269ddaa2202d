// Package session owns connection setup for one transfer session.
//
// Ownership boundary:
// - acceptor side: listen, gate on the "ACK" handshake, frame files out
// - dialer side: connect with backoff, send the handshake, pump and parse
// - nothing here decodes frames; that lives in frame and transfer
package session
