// Package gccrec captures GameCube controller adapter traffic from the
// Linux usbmon binary interface and records per-frame controller inputs
// as CSV rows.
package gccrec

import (
	"errors"
	"sync"
	"time"

	"github.com/byohano/gccrec/internal/gamecube"
	"github.com/byohano/gccrec/internal/interfaces"
	"github.com/byohano/gccrec/internal/logging"
	"github.com/byohano/gccrec/internal/pipeline"
	"github.com/byohano/gccrec/internal/usbmon"
)

// Interfaces accepted by Options. Any value with the right method set
// satisfies them; the named types live in an internal package.
type (
	// Source yields the raw capture byte stream.
	Source = interfaces.Source
	// Sink receives the header row and the data rows.
	Sink = interfaces.Sink
	// Logger receives stage logging.
	Logger = interfaces.Logger
	// Observer receives per-operation statistics.
	Observer = interfaces.Observer
)

// Params contains the validated parameters of one capture run. The value
// is immutable for the lifetime of the pipeline.
type Params struct {
	// BusNumber is the kernel bus the adapter is attached to; it selects
	// the /dev/usbmon<bus> source and is the stream alignment sentinel.
	BusNumber int

	// DeviceNumber is the kernel device number of the adapter on the bus.
	DeviceNumber int

	// PlayerPort is the 1-based controller socket to record.
	PlayerPort int

	// OutputPath is the CSV file to write. Ignored when Options.Sink is
	// set.
	OutputPath string

	// Duration bounds the capture, both wall-clock on the reader and
	// packet-time on the framer.
	Duration time.Duration
}

// Validate checks the parameter ranges the pipeline relies on.
func (p Params) Validate() error {
	if p.BusNumber < 1 {
		return NewError("VALIDATE", ErrCodeInvalidParameters, "bus number must be positive")
	}
	if p.DeviceNumber < 1 {
		return NewError("VALIDATE", ErrCodeInvalidParameters, "device number must be positive")
	}
	if p.PlayerPort < 1 || p.PlayerPort > gamecube.PortCount {
		return NewError("VALIDATE", ErrCodeInvalidParameters, "player port must be between 1 and 4")
	}
	if p.Duration <= 0 {
		return NewError("VALIDATE", ErrCodeInvalidParameters, "duration must be positive")
	}
	return nil
}

// Options carries optional collaborators for a capture run. The zero
// value selects the usbmon device source, a file sink at
// Params.OutputPath, and the default logger.
type Options struct {
	Logger   Logger
	Observer Observer

	// Source overrides the usbmon character device, e.g. for replaying a
	// recorded stream in tests.
	Source Source

	// Sink overrides the output file.
	Sink Sink
}

// Run executes one capture to completion: it starts the three pipeline
// stages as goroutines, joins them, and reports the outcome. A nil error
// means the capture drained normally; otherwise the first abort error is
// returned and the output must be considered truncated.
func Run(params Params, opts *Options) error {
	if opts == nil {
		opts = &Options{}
	}
	if err := params.Validate(); err != nil {
		return err
	}

	log := opts.Logger
	if log == nil {
		log = logging.Default()
	}
	source := opts.Source
	if source == nil {
		source = usbmon.Device{Bus: params.BusNumber}
	}
	sink := opts.Sink
	if sink == nil {
		if params.OutputPath == "" {
			return NewError("VALIDATE", ErrCodeInvalidParameters, "output path must not be empty")
		}
		sink = pipeline.FileSink{Path: params.OutputPath}
	}

	signals := &pipeline.Signals{}
	stream := &pipeline.ByteBuffer{}
	frames := &pipeline.FrameQueue{}

	reader := &pipeline.Reader{
		Source:   source,
		Out:      stream,
		Duration: params.Duration,
		Signals:  signals,
		Log:      log,
		Observer: opts.Observer,
	}
	framer := &pipeline.Framer{
		In:       stream,
		Out:      frames,
		Bus:      params.BusNumber,
		Device:   params.DeviceNumber,
		Duration: params.Duration,
		Signals:  signals,
		Log:      log,
		Observer: opts.Observer,
	}
	recorder := &pipeline.Recorder{
		In:       frames,
		Port:     params.PlayerPort,
		Sink:     sink,
		Signals:  signals,
		Log:      log,
		Observer: opts.Observer,
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		reader.Run()
	}()
	go func() {
		defer wg.Done()
		framer.Run()
	}()
	go func() {
		defer wg.Done()
		recorder.Run()
	}()
	wg.Wait()

	if signals.Aborted() {
		return classifyAbort(signals.Err())
	}
	return nil
}

// classifyAbort turns the latched abort error into a structured one.
func classifyAbort(err error) error {
	switch {
	case err == nil:
		return NewError("CAPTURE", ErrCodeInternal, "capture aborted")
	case errors.Is(err, pipeline.ErrMisaligned):
		return &Error{Op: "CAPTURE", Stage: "framer", Code: ErrCodeMisalignment, Msg: err.Error(), Inner: err}
	case isGamecubeDecode(err):
		return &Error{Op: "CAPTURE", Stage: "recorder", Code: ErrCodeMalformedPayload, Msg: err.Error(), Inner: err}
	default:
		return WrapError("CAPTURE", err)
	}
}

func isGamecubeDecode(err error) bool {
	var de gamecube.DecodeError
	return errors.As(err, &de)
}
