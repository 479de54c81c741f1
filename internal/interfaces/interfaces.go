// Package interfaces provides internal interface definitions for gccrec.
// These are separate from the public surface to avoid circular imports
// between the main package and internal packages.
package interfaces

import "io"

// Source yields the raw capture byte stream. Open may fail with a
// permission error when the process cannot read the monitor device.
type Source interface {
	Open() (io.ReadCloser, error)
}

// Sink opens the stream that receives the header row and the data rows.
type Sink interface {
	Open() (io.WriteCloser, error)
}

// Logger interface for injected stage logging.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Observer interface for metrics collection.
// Implementations must be thread-safe as methods are called from the
// stage loops.
type Observer interface {
	ObserveRead(bytes int)
	ObservePacket(accepted bool)
	ObserveRow(connected bool)
}
