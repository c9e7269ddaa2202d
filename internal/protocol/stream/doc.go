// Package stream bridges raw socket deliveries into frame-aligned buffers.
//
// Ownership boundary:
// - Pump is the only code that reads the connection
// - Accumulator is owned by exactly one parsing goroutine
// - bytes leave the accumulator only through Consume
package stream
