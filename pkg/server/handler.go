package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/treeline-dev/treeline/pkg/protocol"
)

// Handler upgrades HTTP requests to the websocket protocol and runs
// the handshake and read loop for each connection. The first frame on
// a fresh connection must be a handshake; everything after flows
// through the session's actor.
type Handler struct {
	manager  *Manager
	config   *SessionConfig
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a websocket handler backed by the given manager.
func NewHandler(manager *Manager, opts ...HandlerOption) *Handler {
	h := &Handler{
		manager: manager,
		config:  manager.config,
		logger:  manager.logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithCheckOrigin sets the origin check for the websocket upgrade.
func WithCheckOrigin(fn func(*http.Request) bool) HandlerOption {
	return func(h *Handler) {
		h.upgrader.CheckOrigin = fn
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	transport := newWSTransport(conn, h.config.WriteTimeout)
	sess, err := h.handshake(r, conn, transport)
	if err != nil {
		h.logger.Warn("handshake failed", "error", err, "remote", r.RemoteAddr)
		transport.Close()
		return
	}

	h.readLoop(conn, transport, sess)
	sess.Close()
}

// handshake runs the opening exchange: the client announces its
// protocol version and, when resuming, the session id it last held.
// Resume falls back to a fresh session when the snapshot is gone.
func (h *Handler) handshake(r *http.Request, conn *websocket.Conn, transport *wsTransport) (*Session, error) {
	conn.SetReadLimit(h.config.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(h.config.HandshakeTimeout))

	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	frame, err := protocol.DecodeFrame(data)
	if err != nil {
		return nil, err
	}
	if frame.Type != protocol.FrameHandshake {
		h.reply(transport, protocol.HandshakeInvalidFormat, "")
		return nil, protocol.ErrInvalidFrameType
	}
	hs, err := protocol.DecodeHandshake(frame.Payload)
	if err != nil {
		h.reply(transport, protocol.HandshakeInvalidFormat, "")
		return nil, err
	}
	if hs.Version != protocol.Version {
		h.reply(transport, protocol.HandshakeVersionMismatch, "")
		return nil, protocol.ErrInvalidFrameType
	}

	var sess *Session
	if hs.SessionID != "" {
		sess, err = h.manager.Resume(r.Context(), hs.SessionID, transport)
		if err == ErrUnknownSession {
			sess, err = h.manager.Create(transport)
		}
	} else {
		sess, err = h.manager.Create(transport)
	}
	if err != nil {
		if err == ErrTooManySessions {
			h.reply(transport, protocol.HandshakeServerBusy, "")
		} else {
			h.reply(transport, protocol.HandshakeSessionUnknown, "")
		}
		return nil, err
	}

	if err := h.reply(transport, protocol.HandshakeOK, sess.ID); err != nil {
		sess.Close()
		return nil, err
	}
	return sess, nil
}

func (h *Handler) reply(transport *wsTransport, status protocol.HandshakeStatus, sessionID string) error {
	payload := protocol.EncodeHandshakeReply(&protocol.HandshakeReply{
		Status:    status,
		SessionID: sessionID,
	})
	frame := protocol.NewFrame(protocol.FrameHandshake, payload)
	return transport.Send(context.Background(), frame.Encode())
}

// readLoop pumps client frames into the session until the connection
// drops, the client asks to close, or the session shuts down.
func (h *Handler) readLoop(conn *websocket.Conn, transport *wsTransport, sess *Session) {
	for {
		conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				sess.Logger().Debug("read failed", "error", err)
			}
			return
		}
		select {
		case <-sess.Done():
			return
		default:
		}

		frame, err := protocol.DecodeFrame(data)
		if err != nil {
			sess.Logger().Warn("malformed frame", "error", err)
			sess.sendError(protocol.ErrInvalidFrame, "malformed frame", false)
			continue
		}
		if done := h.handleFrame(transport, sess, frame); done {
			return
		}
	}
}

func (h *Handler) handleFrame(transport *wsTransport, sess *Session, frame *protocol.Frame) bool {
	switch frame.Type {
	case protocol.FrameEvent:
		ev, err := protocol.DecodeEvent(frame.Payload)
		if err != nil {
			sess.Logger().Warn("malformed event", "error", err)
			sess.sendError(protocol.ErrInvalidEvent, "malformed event", false)
			return false
		}
		if err := sess.QueueEvent(ev); err != nil {
			if err == ErrQueueFull {
				sess.sendError(protocol.ErrRateLimited, "event queue full", false)
				return false
			}
			return true
		}

	case protocol.FrameAck:
		ack, err := protocol.DecodeAck(frame.Payload)
		if err != nil {
			sess.Logger().Warn("malformed ack", "error", err)
			return false
		}
		sess.Ack(ack.Seq)
		sess.UpdateLastActive()

	case protocol.FrameControl:
		return h.handleControl(transport, sess, frame.Payload)

	default:
		sess.sendError(protocol.ErrInvalidFrame, "unexpected frame type", false)
	}
	return false
}

func (h *Handler) handleControl(transport *wsTransport, sess *Session, payload []byte) bool {
	ct, msg, err := protocol.DecodeControl(payload)
	if err != nil {
		sess.Logger().Warn("malformed control message", "error", err)
		return false
	}
	switch ct {
	case protocol.ControlPing:
		sess.UpdateLastActive()
		ping := msg.(*protocol.PingPong)
		pong := protocol.NewFrame(protocol.FrameControl,
			protocol.EncodeControl(protocol.ControlPong, &protocol.PingPong{Timestamp: ping.Timestamp}))
		if err := transport.Send(context.Background(), pong.Encode()); err != nil {
			return true
		}

	case protocol.ControlResync:
		sess.UpdateLastActive()
		sess.RequestResync()

	case protocol.ControlClose:
		return true
	}
	return false
}
