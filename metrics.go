package gccrec

import (
	"sync/atomic"
	"time"
)

// Metrics tracks operational statistics for a capture run. All counters
// are atomic; a single Metrics value may be shared by the three stages.
type Metrics struct {
	// Reader statistics
	BytesRead  atomic.Uint64 // Total bytes pulled from the source
	ReadChunks atomic.Uint64 // Number of source reads that returned data

	// Framer statistics
	PacketsAccepted atomic.Uint64 // URBs that passed the filters
	PacketsFiltered atomic.Uint64 // URBs dropped (wrong device or post-deadline)

	// Recorder statistics
	RowsWritten      atomic.Uint64 // Data rows written to the sink
	DisconnectedRows atomic.Uint64 // Rows written while the port read as disconnected

	// Run lifecycle
	StartTime atomic.Int64 // Capture start (UnixNano)
	StopTime  atomic.Int64 // Capture stop (UnixNano), 0 while running
}

// NewMetrics creates a new metrics instance stamped with the start time
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// ObserveRead implements Observer
func (m *Metrics) ObserveRead(bytes int) {
	m.ReadChunks.Add(1)
	m.BytesRead.Add(uint64(bytes))
}

// ObservePacket implements Observer
func (m *Metrics) ObservePacket(accepted bool) {
	if accepted {
		m.PacketsAccepted.Add(1)
	} else {
		m.PacketsFiltered.Add(1)
	}
}

// ObserveRow implements Observer
func (m *Metrics) ObserveRow(connected bool) {
	m.RowsWritten.Add(1)
	if !connected {
		m.DisconnectedRows.Add(1)
	}
}

// Stop stamps the end of the run
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// Snapshot is a point-in-time copy of the counters
type Snapshot struct {
	BytesRead        uint64
	ReadChunks       uint64
	PacketsAccepted  uint64
	PacketsFiltered  uint64
	RowsWritten      uint64
	DisconnectedRows uint64
	Elapsed          time.Duration
}

// Snapshot returns a consistent-enough view of the counters for reporting
func (m *Metrics) Snapshot() Snapshot {
	stop := m.StopTime.Load()
	if stop == 0 {
		stop = time.Now().UnixNano()
	}
	return Snapshot{
		BytesRead:        m.BytesRead.Load(),
		ReadChunks:       m.ReadChunks.Load(),
		PacketsAccepted:  m.PacketsAccepted.Load(),
		PacketsFiltered:  m.PacketsFiltered.Load(),
		RowsWritten:      m.RowsWritten.Load(),
		DisconnectedRows: m.DisconnectedRows.Load(),
		Elapsed:          time.Duration(stop - m.StartTime.Load()),
	}
}

// Metrics satisfies the Observer interface
var _ Observer = (*Metrics)(nil)
