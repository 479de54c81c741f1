package pipeline

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/byohano/gccrec/internal/constants"
	"github.com/byohano/gccrec/internal/interfaces"
)

// Reader pulls raw bytes from the capture source into the shared byte
// buffer and owns the wall-clock capture deadline. It never inspects,
// drops, or reorders bytes, and never retries a failed read.
type Reader struct {
	Source   interfaces.Source
	Out      *ByteBuffer
	Duration time.Duration
	Signals  *Signals
	Log      interfaces.Logger
	Observer interfaces.Observer
}

// Run executes the stage until the deadline elapses, the source is
// exhausted, or an abort is observed. EndCapture is latched when the
// deadline elapses or the source is exhausted, so the downstream drain
// protocol terminates; a failed open, a failed read or an abort exits
// without latching it.
func (r *Reader) Run() {
	src, err := r.Source.Open()
	if err != nil {
		r.Log.Errorf("cannot open capture source: %v", err)
		r.Signals.Abort(fmt.Errorf("open capture source: %w", err))
		return
	}
	defer src.Close()

	start := time.Now()
	block := make([]byte, constants.ReadBlockSize)
	r.Log.Infof("read start")
	for {
		if r.Signals.Aborted() {
			r.Log.Infof("abort read")
			return
		}
		if r.Signals.EndCapture.IsSet() {
			r.Log.Infof("capture ended, stop reading")
			break
		}

		n, err := src.Read(block)
		if n > 0 {
			r.Out.Append(block[:n])
			if r.Observer != nil {
				r.Observer.ObserveRead(n)
			}
		}
		if errors.Is(err, io.EOF) {
			r.Log.Infof("source exhausted, stop capture")
			r.Signals.EndCapture.Set()
			break
		}
		if err != nil {
			r.Log.Errorf("read failed: %v", err)
			r.Signals.Abort(fmt.Errorf("read capture source: %w", err))
			return
		}

		if time.Since(start) > r.Duration {
			r.Log.Infof("duration exceeded, stop capture")
			r.Signals.EndCapture.Set()
		}
	}
	r.Log.Infof("read end")
}
