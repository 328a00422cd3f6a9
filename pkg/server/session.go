package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/treeline-dev/treeline/pkg/diff"
	"github.com/treeline-dev/treeline/pkg/protocol"
	"github.com/treeline-dev/treeline/pkg/rendered"
	"github.com/treeline-dev/treeline/pkg/session"
)

// Session errors.
var (
	ErrSessionClosed = errors.New("server: session closed")
	ErrQueueFull     = errors.New("server: event queue full")
)

// Session is the per-connection render actor. It exclusively owns the
// diff engine (and its component registry), the committed tree, and the
// bindings; a single goroutine consumes triggers from its queues, so
// renders for one connection never interleave and every diff is
// computed against the true last-committed baseline.
type Session struct {
	// Identity
	ID        string
	CreatedAt time.Time

	transport Transport
	app       *App

	// Actor-owned state. Touched only from run.
	bindings  any
	engine    *diff.Engine
	committed *rendered.Rendered

	// Sequencing
	sendSeq atomic.Uint64 // Last diff sequence sent
	recvSeq atomic.Uint64 // Last event sequence received
	ackSeq  atomic.Uint64 // Last sequence acknowledged by client

	// Queues
	events   chan *protocol.Event
	dispatch chan func()
	resyncCh chan struct{}
	done     chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once

	lastActive atomic.Int64 // Unix nanos

	config  *SessionConfig
	logger  *slog.Logger
	metrics *Metrics
	tracer  *renderTracer

	store   session.SnapshotStore // Optional
	onClose func(*Session)
}

// generateSessionID generates a cryptographically random session id.
func generateSessionID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func newSession(id string, t Transport, app *App, cfg *SessionConfig, logger *slog.Logger, metrics *Metrics, store session.SnapshotStore, onClose func(*Session)) *Session {
	s := &Session{
		ID:        id,
		CreatedAt: time.Now(),
		transport: t,
		app:       app,
		engine:    diff.NewEngine(),
		events:    make(chan *protocol.Event, cfg.MaxEventQueue),
		dispatch:  make(chan func(), 16),
		resyncCh:  make(chan struct{}, 1),
		done:      make(chan struct{}),
		config:    cfg,
		logger:    logger.With("session", id),
		metrics:   metrics,
		tracer:    newRenderTracer(),
		store:     store,
		onClose:   onClose,
	}
	if app.NewBindings != nil {
		s.bindings = app.NewBindings()
	}
	s.lastActive.Store(time.Now().UnixNano())
	return s
}

// restore seeds the actor from a persisted snapshot so diffs continue
// against the committed baseline the client already holds.
func (s *Session) restore(snap *session.Snapshot) error {
	reg := diff.NewRegistry()
	if err := reg.Restore(snap.Components); err != nil {
		return err
	}
	s.engine = diff.NewEngineWithRegistry(reg)
	s.committed = snap.Root
	s.sendSeq.Store(snap.Seq)
	return nil
}

// Start launches the actor goroutine. The first action is the mount
// render (skipped when the session was restored from a snapshot).
func (s *Session) Start() {
	go s.run()
}

func (s *Session) run() {
	defer s.Close()
	ctx := context.Background()

	if s.committed == nil {
		if err := s.renderOnce(ctx); err != nil {
			s.logger.Error("mount render failed", "error", err)
			return
		}
	}

	for {
		select {
		case <-s.done:
			return
		case ev := <-s.events:
			if err := s.handleEvent(ctx, ev); err != nil {
				s.logger.Error("render failed", "error", err, "event", ev.Name)
				return
			}
		case fn := <-s.dispatch:
			fn()
			if err := s.renderOnce(ctx); err != nil {
				s.logger.Error("render failed", "error", err)
				return
			}
		case <-s.resyncCh:
			if err := s.resync(ctx); err != nil {
				s.logger.Error("resync failed", "error", err)
				return
			}
		}
	}
}

// handleEvent reduces one client event and re-renders. Handler errors
// and panics are non-fatal: the event is dropped, the baseline stands.
func (s *Session) handleEvent(ctx context.Context, ev *protocol.Event) error {
	s.recvSeq.Store(ev.Seq)
	s.UpdateLastActive()
	s.metrics.eventReceived()

	if s.app.OnEvent == nil {
		return nil
	}
	next, err := s.safeReduce(ctx, ev)
	if err != nil {
		s.logger.Warn("event handler failed", "event", ev.Name, "error", err)
		s.sendError(protocol.ErrInvalidEvent, err.Error(), false)
		return nil
	}
	s.bindings = next
	return s.renderOnce(ctx)
}

func (s *Session) safeReduce(ctx context.Context, ev *protocol.Event) (next any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("event handler panic", "event", ev.Name, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return s.app.OnEvent(ctx, s.bindings, ev)
}

// renderOnce runs one full cycle: compile, diff, encode, send, commit.
// The new tree becomes the baseline only after the diff (if any) has
// been handed to the transport; on any error the baseline is untouched
// and the caller tears the session down.
func (s *Session) renderOnce(ctx context.Context) error {
	ctx, span := s.tracer.start(ctx)
	defer span.End()
	start := time.Now()

	tree, err := s.app.Template(ctx, s.bindings)
	if err != nil {
		s.metrics.renderFailed()
		s.tracer.fail(span, err)
		s.sendError(protocol.ErrRenderFailed, "render failed", true)
		return fmt.Errorf("template: %w", err)
	}

	d, err := s.engine.Diff(s.committed, tree)
	if err != nil {
		s.metrics.renderFailed()
		s.tracer.fail(span, err)
		s.sendError(protocol.ErrInternal, "diff aborted", true)
		return fmt.Errorf("diff: %w", err)
	}

	if !d.Empty() {
		payload := protocol.EncodeDiff(d)
		ft := protocol.FrameDiff
		if d.Replace != nil {
			ft = protocol.FrameMount
		}
		seq := s.sendSeq.Add(1)
		frame := &protocol.Frame{
			Type:    ft,
			Flags:   protocol.FlagSequenced,
			Payload: protocol.EncodeSequenced(seq, payload),
		}
		if err := s.transport.Send(ctx, frame.Encode()); err != nil {
			s.metrics.renderFailed()
			s.tracer.fail(span, err)
			return fmt.Errorf("send: %w", err)
		}
		s.metrics.diffSent(len(payload), d.Replace != nil)
		s.tracer.annotate(span, seq, d, len(payload))
	}

	s.committed = tree
	s.metrics.renderDone(time.Since(start))
	s.saveSnapshot(ctx)
	return nil
}

// resync re-sends the complete committed state: the root tree plus the
// full tree of every live component, resetting the client's cache.
func (s *Session) resync(ctx context.Context) error {
	if s.committed == nil {
		return s.renderOnce(ctx)
	}
	d := &diff.Diff{Replace: s.committed}
	if snaps := s.engine.Registry().Snapshot(); len(snaps) > 0 {
		d.Components = make(map[int64]diff.ComponentChange, len(snaps))
		for _, c := range snaps {
			d.Components[c.ID] = diff.ComponentChange{Full: c.Tree}
		}
	}
	payload := protocol.EncodeDiff(d)
	seq := s.sendSeq.Add(1)
	frame := &protocol.Frame{
		Type:    protocol.FrameMount,
		Flags:   protocol.FlagSequenced | protocol.FlagResync,
		Payload: protocol.EncodeSequenced(seq, payload),
	}
	if err := s.transport.Send(ctx, frame.Encode()); err != nil {
		return fmt.Errorf("resync send: %w", err)
	}
	s.metrics.diffSent(len(payload), true)

	doneFrame := protocol.NewFrame(protocol.FrameControl, protocol.EncodeControl(protocol.ControlResyncDone, nil))
	return s.transport.Send(ctx, doneFrame.Encode())
}

// saveSnapshot persists the committed state, best effort: a failed save
// only costs the resume optimization, never the session.
func (s *Session) saveSnapshot(ctx context.Context) {
	if s.store == nil {
		return
	}
	snap := &session.Snapshot{
		SessionID:  s.ID,
		Seq:        s.sendSeq.Load(),
		Root:       s.committed,
		Components: s.engine.Registry().Snapshot(),
		SavedAt:    time.Now(),
	}
	if err := s.store.Save(ctx, snap, time.Now().Add(s.config.ResumeWindow)); err != nil {
		s.logger.Warn("snapshot save failed", "error", err)
	}
}

// sendError reports an error to the client. Fatal errors precede a
// close; non-fatal ones leave the session running.
func (s *Session) sendError(code protocol.ErrorCode, msg string, fatal bool) {
	payload := protocol.EncodeErrorMessage(&protocol.ErrorMessage{Code: code, Message: msg, Fatal: fatal})
	frame := protocol.NewFrame(protocol.FrameError, payload)
	if err := s.transport.Send(context.Background(), frame.Encode()); err != nil {
		s.logger.Debug("error frame send failed", "error", err)
	}
}

// QueueEvent enqueues a client event for the actor. Non-blocking: a
// full queue rejects the event so a storming client cannot wedge reads.
func (s *Session) QueueEvent(ev *protocol.Event) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	select {
	case s.events <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Dispatch runs fn on the actor goroutine and re-renders afterwards.
// This is how server-side state changes (timers, pubsub) reach the
// session without racing the event loop.
func (s *Session) Dispatch(fn func()) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	select {
	case s.dispatch <- fn:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// RequestResync schedules a full re-mount. Coalesced: one pending
// resync at a time.
func (s *Session) RequestResync() {
	select {
	case s.resyncCh <- struct{}{}:
	default:
	}
}

// Close shuts the session down: the actor stops, the transport closes,
// and any in-flight render is abandoned without committing.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
		if err := s.transport.Close(); err != nil {
			s.logger.Debug("transport close", "error", err)
		}
		s.metrics.sessionClosed()
		if s.onClose != nil {
			s.onClose(s)
		}
		s.logger.Info("session closed",
			"sent", s.sendSeq.Load(),
			"received", s.recvSeq.Load(),
			"acked", s.ackSeq.Load())
	})
}

// IsClosed reports whether the session has been closed.
func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// Done returns a channel closed when the session shuts down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Ack records the client's latest applied sequence.
func (s *Session) Ack(seq uint64) {
	s.ackSeq.Store(seq)
}

// UpdateLastActive marks the session as recently active.
func (s *Session) UpdateLastActive() {
	s.lastActive.Store(time.Now().UnixNano())
}

// LastActive returns the time of the last client activity.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// Logger returns the session's logger.
func (s *Session) Logger() *slog.Logger {
	return s.logger
}
