package server

import "time"

// SessionConfig holds configuration for individual sessions.
type SessionConfig struct {
	// ReadTimeout is the maximum time to wait for a message from the
	// client. Default: 60 seconds.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending a message.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// IdleTimeout is the time after which an inactive session is
	// closed. Default: 5 minutes.
	IdleTimeout time.Duration

	// HandshakeTimeout is the maximum time for the initial handshake.
	// Default: 10 seconds.
	HandshakeTimeout time.Duration

	// ResumeWindow is how long a disconnected session's snapshot stays
	// resumable. Default: 2 minutes.
	ResumeWindow time.Duration

	// MaxMessageSize is the maximum size of an incoming WebSocket
	// message. Default: 64KB.
	MaxMessageSize int64

	// MaxEventQueue is the size of the event channel buffer.
	// Default: 256.
	MaxEventQueue int

	// MaxSessions caps concurrent sessions; 0 means unlimited.
	MaxSessions int
}

// DefaultSessionConfig returns a SessionConfig with sensible defaults.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		IdleTimeout:      5 * time.Minute,
		HandshakeTimeout: 10 * time.Second,
		ResumeWindow:     2 * time.Minute,
		MaxMessageSize:   64 * 1024,
		MaxEventQueue:    256,
	}
}
