package constants

import "time"

// Pipeline timing constants
//
// The stages are decoupled by shared buffers rather than channels: a
// consumer that finds its inbound buffer empty sleeps for PollInterval and
// retries, so termination signals are observed within one interval.
const (
	// PollInterval is how long a consumer stage sleeps when its inbound
	// buffer is empty and the upstream stage has not finished yet.
	PollInterval = 10 * time.Millisecond

	// ReadBlockSize is the number of bytes requested per read from the
	// usbmon character device. Matches the platform default I/O buffer
	// size; usbmon returns whatever whole records fit.
	ReadBlockSize = 8 * 1024
)

// Default capture configuration
const (
	// DefaultDuration is the capture length used when none is configured.
	DefaultDuration = 10 * time.Second

	// DefaultPlayerPort is the adapter socket recorded by default.
	DefaultPlayerPort = 1
)
