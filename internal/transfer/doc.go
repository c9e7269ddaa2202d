// Package transfer owns file transfer semantics on top of the frame codec.
//
// Ownership boundary:
// - Table and every Descriptor belong to the goroutine running Receiver
// - Stash orders indefinite-file chunks; bytes written are never revised
// - Sender serializes frames from any number of goroutines onto one writer
package transfer
