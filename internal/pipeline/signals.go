// Package pipeline implements the three-stage capture pipeline: a Reader
// pulling raw bytes from the monitor device, a Framer cutting the byte
// stream into URB records and filtering them, and a Recorder decoding
// controller payloads into CSV rows. Stages run as goroutines coordinated
// by latching signals and swap-and-drain buffers.
package pipeline

import (
	"sync"
	"sync/atomic"
)

// Signal is a one-shot latching boolean observed across stages. Once set
// it is never cleared.
type Signal struct {
	flag atomic.Bool
}

// Set latches the signal.
func (s *Signal) Set() {
	s.flag.Store(true)
}

// IsSet reports whether the signal has latched.
func (s *Signal) IsSet() bool {
	return s.flag.Load()
}

// Signals carries the coordination latches shared by the three stages.
// EndCapture is set only by the Reader (deadline or source exhaustion),
// EndPacket only by the Framer (upstream done and byte buffer drained).
// Abort may be raised by any stage; the first error wins and every stage
// exits at its next loop head.
type Signals struct {
	EndCapture Signal
	EndPacket  Signal

	abort Signal
	mu    sync.Mutex
	err   error
}

// Abort latches the abort signal, keeping the first error raised.
func (s *Signals) Abort(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.abort.Set()
}

// Aborted reports whether any stage has aborted.
func (s *Signals) Aborted() bool {
	return s.abort.IsSet()
}

// Err returns the first error passed to Abort, or nil.
func (s *Signals) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
