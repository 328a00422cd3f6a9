package server

import (
	"context"

	"github.com/treeline-dev/treeline/pkg/protocol"
	"github.com/treeline-dev/treeline/pkg/rendered"
)

// TemplateFunc is the template compiler collaborator: it renders the
// current bindings into a tree. It must be deterministic for identical
// bindings on the same structural branch, and it must not retain or
// mutate trees it has returned.
type TemplateFunc func(ctx context.Context, bindings any) (*rendered.Rendered, error)

// EventHandler reduces one client event into new bindings. Returning an
// error skips the render for this event and reports a non-fatal error
// to the client; the committed baseline is untouched.
type EventHandler func(ctx context.Context, bindings any, ev *protocol.Event) (any, error)

// App is what the server runs behind every connection: an initial
// bindings factory, the template, and the event reducer.
type App struct {
	// NewBindings produces the initial bindings for a fresh session.
	NewBindings func() any

	// Template renders bindings into a tree. Required.
	Template TemplateFunc

	// OnEvent reduces client events into new bindings. A nil handler
	// ignores all events.
	OnEvent EventHandler
}
