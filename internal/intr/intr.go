// Package intr implements the IntrCheck capability (spec §4.5, §5, §9):
// cooperative cancellation polled at statement boundaries and inside
// long-running builtins. Replacing a global signal handler with an
// injected capability keeps tests deterministic.
package intr

import (
	"os"
	"os/signal"
	"sync/atomic"

	"github.com/luckboy/unlab-gpu/internal/uerr"
)

// Checker is polled by the interpreter before each statement.
type Checker interface {
	// Check returns uerr.ErrIntr if an interrupt is pending, consuming the
	// pending flag.
	Check() error
}

// Empty never signals an interrupt; used by unit tests (spec §9).
type Empty struct{}

func (Empty) Check() error { return nil }

// CtrlC installs exactly one os/signal handler per process and exposes an
// atomically-set flag consumed by Check.
type CtrlC struct {
	flag int32
	ch   chan os.Signal
}

// NewCtrlC installs the signal handler. Call Stop to uninstall it.
func NewCtrlC() *CtrlC {
	c := &CtrlC{ch: make(chan os.Signal, 1)}
	signal.Notify(c.ch, os.Interrupt)
	go func() {
		for range c.ch {
			atomic.StoreInt32(&c.flag, 1)
		}
	}()
	return c
}

func (c *CtrlC) Stop() { signal.Stop(c.ch); close(c.ch) }

// Check consumes the pending flag, raising uerr.ErrIntr if it was set.
func (c *CtrlC) Check() error {
	if atomic.SwapInt32(&c.flag, 0) != 0 {
		return uerr.ErrIntr
	}
	return nil
}

// Reset clears the pending flag between top-level REPL iterations (spec §5:
// "the main loop must ... reset the flag between top-level iterations in
// interactive mode").
func (c *CtrlC) Reset() { atomic.StoreInt32(&c.flag, 0) }
