package pipeline_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byohano/gccrec"
	"github.com/byohano/gccrec/internal/gamecube"
	"github.com/byohano/gccrec/internal/pipeline"
)

// nopLogger keeps stage logging quiet in tests.
type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

func portSlice(status byte) [gamecube.PortSliceSize]byte {
	return [gamecube.PortSliceSize]byte{status, 0, 0, 0x80, 0x80, 0x80, 0x80, 0, 0}
}

func packet(bus, device int, sec int64, usec int32) gccrec.TestPacket {
	return gccrec.TestPacket{
		Bus:          bus,
		Device:       device,
		TransferType: 1,
		TsSec:        sec,
		TsUsec:       usec,
		Payload:      gccrec.ControllerPayload(1, portSlice(0x14)),
	}
}

func newFramer(in *pipeline.ByteBuffer, out *pipeline.FrameQueue, sig *pipeline.Signals) *pipeline.Framer {
	return &pipeline.Framer{
		In:       in,
		Out:      out,
		Bus:      3,
		Device:   7,
		Duration: 10 * time.Second,
		Signals:  sig,
		Log:      nopLogger{},
	}
}

// runFramer feeds the whole stream as one chunk and drains the pipeline.
func runFramer(t *testing.T, f *pipeline.Framer, in *pipeline.ByteBuffer, stream []byte) {
	t.Helper()
	in.Append(stream)
	f.Signals.EndCapture.Set()
	f.Run()
}

func TestFramerEmitsInOrder(t *testing.T) {
	in := &pipeline.ByteBuffer{}
	out := &pipeline.FrameQueue{}
	sig := &pipeline.Signals{}

	stream := gccrec.BuildStream(
		packet(3, 7, 100, 0),
		packet(3, 7, 100, 250000),
		packet(3, 7, 100, 500000),
	)
	f := newFramer(in, out, sig)
	runFramer(t, f, in, stream)

	require.False(t, sig.Aborted())
	assert.True(t, sig.EndPacket.IsSet())

	frames := out.Take()
	require.Len(t, frames, 3)
	assert.Equal(t, 100.0, frames[0].Timestamp)
	assert.Equal(t, 100.25, frames[1].Timestamp)
	assert.Equal(t, 100.5, frames[2].Timestamp)
	for _, frame := range frames {
		assert.Len(t, frame.Payload, gamecube.FrameSize)
	}
}

func TestFramerDropsReportByte(t *testing.T) {
	in := &pipeline.ByteBuffer{}
	out := &pipeline.FrameQueue{}
	sig := &pipeline.Signals{}

	f := newFramer(in, out, sig)
	runFramer(t, f, in, gccrec.BuildStream(packet(3, 7, 100, 0)))

	frames := out.Take()
	require.Len(t, frames, 1)
	// payload starts at the port 1 status byte, not the report byte
	assert.Equal(t, byte(0x14), frames[0].Payload[0])
}

func TestFramerFiltersWrongDevice(t *testing.T) {
	in := &pipeline.ByteBuffer{}
	out := &pipeline.FrameQueue{}
	sig := &pipeline.Signals{}

	stream := gccrec.BuildStream(
		packet(3, 8, 100, 0),
		packet(3, 7, 101, 0),
		packet(3, 9, 102, 0),
	)
	f := newFramer(in, out, sig)
	runFramer(t, f, in, stream)

	require.False(t, sig.Aborted())
	frames := out.Take()
	require.Len(t, frames, 1)
	assert.Equal(t, 101.0, frames[0].Timestamp)
}

func TestFramerSkipsEmptyData(t *testing.T) {
	in := &pipeline.ByteBuffer{}
	out := &pipeline.FrameQueue{}
	sig := &pipeline.Signals{}

	empty := gccrec.TestPacket{Bus: 3, Device: 7, TransferType: 1, TsSec: 99}
	stream := gccrec.BuildStream(empty, packet(3, 7, 100, 0))
	f := newFramer(in, out, sig)
	runFramer(t, f, in, stream)

	require.False(t, sig.Aborted())
	frames := out.Take()
	require.Len(t, frames, 1)
	assert.Equal(t, 100.0, frames[0].Timestamp)
}

func TestFramerIsochronousDescriptor(t *testing.T) {
	in := &pipeline.ByteBuffer{}
	out := &pipeline.FrameQueue{}
	sig := &pipeline.Signals{}

	iso := packet(3, 7, 100, 0)
	iso.TransferType = 0
	f := newFramer(in, out, sig)
	runFramer(t, f, in, gccrec.BuildStream(iso))

	require.False(t, sig.Aborted())
	frames := out.Take()
	require.Len(t, frames, 1)
	assert.Equal(t, byte(0x14), frames[0].Payload[0])
}

func TestFramerAbortsOnBusMismatch(t *testing.T) {
	in := &pipeline.ByteBuffer{}
	out := &pipeline.FrameQueue{}
	sig := &pipeline.Signals{}

	stream := gccrec.BuildStream(
		packet(3, 7, 100, 0),
		packet(9, 7, 101, 0),
		packet(3, 7, 102, 0),
	)
	f := newFramer(in, out, sig)
	in.Append(stream)
	sig.EndCapture.Set()
	f.Run()

	assert.True(t, sig.Aborted())
	assert.ErrorIs(t, sig.Err(), pipeline.ErrMisaligned)
	assert.False(t, sig.EndPacket.IsSet())

	// the framer returns before publishing the iteration's batch, so
	// nothing reaches the recorder once sync is lost
	assert.Empty(t, out.Take())
}

func TestFramerDeadlineDiscardsLateRecords(t *testing.T) {
	in := &pipeline.ByteBuffer{}
	out := &pipeline.FrameQueue{}
	sig := &pipeline.Signals{}

	stream := gccrec.BuildStream(
		packet(3, 7, 100, 0),
		packet(3, 7, 101, 500001),
	)
	f := newFramer(in, out, sig)
	f.Duration = time.Second
	runFramer(t, f, in, stream)

	require.False(t, sig.Aborted())
	frames := out.Take()
	require.Len(t, frames, 1)
	assert.Equal(t, 100.0, frames[0].Timestamp)
}

// A record split across iterations must be held in the workspace until the
// rest arrives, and the emitted payloads must not depend on chunking.
func TestFramerRecordSpansChunks(t *testing.T) {
	whole := gccrec.BuildStream(packet(3, 7, 100, 500000))

	for _, cut := range []int{1, 10, 47, 48, 60, len(whole) - 1} {
		in := &pipeline.ByteBuffer{}
		out := &pipeline.FrameQueue{}
		sig := &pipeline.Signals{}
		f := newFramer(in, out, sig)

		done := make(chan struct{})
		go func() {
			f.Run()
			close(done)
		}()

		in.Append(whole[:cut])
		time.Sleep(50 * time.Millisecond)
		in.Append(whole[cut:])
		time.Sleep(50 * time.Millisecond)
		sig.EndCapture.Set()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("framer did not drain for cut %d", cut)
		}

		require.False(t, sig.Aborted(), "cut %d", cut)
		frames := out.Take()
		require.Len(t, frames, 1, "cut %d", cut)
		assert.Equal(t, 100.5, frames[0].Timestamp, "cut %d", cut)
	}
}
