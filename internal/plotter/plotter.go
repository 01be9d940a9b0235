// Package plotter declares the PlotterHost capability (spec §5, §6): the
// windowing event loop the interpreter hands off to when a script opens a
// plot window. The real event loop is out of scope (spec §1); this package
// only fixes the ordering contract (interpreter always sends Quit before
// exiting; the host drains pending events before returning).
package plotter

// Event is one event exchanged between the interpreter's worker thread and
// the host's main-thread event loop.
type Event int

const (
	EventQuit Event = iota
)

// PlotterHost runs the platform event loop on the calling goroutine until a
// Quit event arrives on events, or Quit() is called directly.
type PlotterHost interface {
	Run(events <-chan Event) error
	Quit()
}

// Noop satisfies PlotterHost without opening any window; used when no
// plotting capability is configured.
type Noop struct{}

func (Noop) Run(events <-chan Event) error {
	for range events {
	}
	return nil
}

func (Noop) Quit() {}
