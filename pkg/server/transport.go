package server

import "context"

// Transport is the duplex channel collaborator, reduced to what the
// render actor needs: deliver one encoded frame, and tear down. Framing,
// reconnection, and backpressure belong to the implementation. The
// actor guarantees it never calls Send twice for the same committed
// render.
type Transport interface {
	// Send delivers one encoded frame to the client.
	Send(ctx context.Context, data []byte) error

	// Close tears the channel down. Safe to call more than once.
	Close() error
}
