package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/treeline-dev/treeline/pkg/protocol"
	"github.com/treeline-dev/treeline/pkg/rendered"
	"github.com/treeline-dev/treeline/pkg/server"
)

// demoState is the per-connection state of the built-in demo app.
type demoState struct {
	Count int
	Items []string
}

// demoApp returns a small counter-and-list app. It exists so `treeline
// serve` runs something real end to end: leaf updates, comprehension
// rows, and a component with stable identity.
func demoApp() *server.App {
	return &server.App{
		NewBindings: func() any {
			return &demoState{Items: []string{"alpha", "beta"}}
		},
		Template: demoTemplate,
		OnEvent:  demoReduce,
	}
}

func demoTemplate(_ context.Context, bindings any) (*rendered.Rendered, error) {
	st := bindings.(*demoState)

	rows := make([][]rendered.Slot, len(st.Items))
	for i, item := range st.Items {
		rows[i] = []rendered.Slot{rendered.LeafSlot(item)}
	}

	footer := &rendered.Rendered{
		Statics:  []string{"<footer>", " items</footer>"},
		Dynamics: []rendered.Slot{rendered.LeafSlot(fmt.Sprintf("%d", len(st.Items)))},
	}

	return &rendered.Rendered{
		Statics: []string{
			"<main><h1>treeline demo</h1><p>count: ",
			`</p><button data-ev="increment">+1</button><ul>`,
			"</ul>",
			"</main>",
		},
		Dynamics: []rendered.Slot{
			rendered.LeafSlot(fmt.Sprintf("%d", st.Count)),
			rendered.ComprehensionSlot(&rendered.Comprehension{
				Statics: []string{"<li>", "</li>"},
				Rows:    rows,
			}),
			rendered.ComponentSlot("footer", footer),
		},
	}, nil
}

func demoReduce(_ context.Context, bindings any, ev *protocol.Event) (any, error) {
	st := bindings.(*demoState)
	switch ev.Name {
	case "increment":
		st.Count++
	case "add":
		item := strings.TrimSpace(ev.Value)
		if item == "" {
			return nil, fmt.Errorf("add: empty item")
		}
		st.Items = append(st.Items, item)
	case "remove":
		if len(st.Items) > 0 {
			st.Items = st.Items[:len(st.Items)-1]
		}
	case "reset":
		st.Count = 0
		st.Items = nil
	default:
		return nil, fmt.Errorf("unknown event %q", ev.Name)
	}
	return st, nil
}
