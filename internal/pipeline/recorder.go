package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/byohano/gccrec/internal/constants"
	"github.com/byohano/gccrec/internal/gamecube"
	"github.com/byohano/gccrec/internal/interfaces"
)

// FileSink opens the output CSV file, truncating any previous capture.
type FileSink struct {
	Path string
}

// Open implements interfaces.Sink.
func (s FileSink) Open() (io.WriteCloser, error) {
	return os.Create(s.Path)
}

// WriterSink adapts a plain writer as an output sink; Close is a no-op.
// Used by tests and embedders that manage the stream themselves.
type WriterSink struct {
	W io.Writer
}

// Open implements interfaces.Sink.
func (s WriterSink) Open() (io.WriteCloser, error) {
	return nopCloser{s.W}, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// Recorder drains the frame queue, decodes the configured player port
// from each controller payload, and writes one CSV row per frame. Row
// timestamps are relative to the first accepted frame, rounded to the
// stream's microsecond resolution.
type Recorder struct {
	In       *FrameQueue
	Port     int
	Sink     interfaces.Sink
	Signals  *Signals
	Log      interfaces.Logger
	Observer interfaces.Observer
}

// Run executes the stage until the queue is drained after EndPacket, or an
// abort is observed. The sink is opened once on entry and closed on exit;
// after an abort the output must be considered truncated.
func (r *Recorder) Run() {
	out, err := r.Sink.Open()
	if err != nil {
		r.Log.Errorf("cannot open output: %v", err)
		r.Signals.Abort(fmt.Errorf("open output: %w", err))
		return
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	defer w.Flush()

	if _, err := w.WriteString(gamecube.Header + "\n"); err != nil {
		r.Signals.Abort(fmt.Errorf("write output header: %w", err))
		return
	}

	var epoch float64
	haveEpoch := false
	r.Log.Infof("recording inputs from port %d", r.Port)
	for {
		if r.Signals.Aborted() {
			r.Log.Infof("abort record")
			return
		}

		// Observe the signal before taking, so frames queued just before
		// EndPacket was latched are never left behind.
		ended := r.Signals.EndPacket.IsSet()
		items := r.In.Take()
		if len(items) == 0 {
			if ended {
				r.Log.Infof("no more data, stop record")
				break
			}
			time.Sleep(constants.PollInterval)
			continue
		}

		for _, frame := range items {
			if !haveEpoch {
				haveEpoch = true
				epoch = frame.Timestamp
			}
			rel := gamecube.Round6(frame.Timestamp - epoch)

			state, err := gamecube.DecodePort(frame.Payload, r.Port)
			if err != nil {
				r.Log.Errorf("cannot decode frame: %v", err)
				r.Signals.Abort(fmt.Errorf("decode frame at %f: %w", rel, err))
				return
			}
			if !state.Connected {
				r.Log.Warnf("player %d isn't connected, empty data will be written", r.Port)
			}
			if r.Observer != nil {
				r.Observer.ObserveRow(state.Connected)
			}

			if _, err := w.WriteString(state.Row(rel) + "\n"); err != nil {
				r.Log.Errorf("write failed: %v", err)
				r.Signals.Abort(fmt.Errorf("write output row: %w", err))
				return
			}
		}
	}

	if err := w.Flush(); err != nil {
		r.Signals.Abort(fmt.Errorf("flush output: %w", err))
	}
}
