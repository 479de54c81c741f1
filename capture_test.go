package gccrec

import (
	"bytes"
	"os"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byohano/gccrec/internal/gamecube"
	"github.com/byohano/gccrec/internal/pipeline"
)

// slice of a connected port 1 pressing A and R with centered sticks and a
// fully pulled right trigger
var pressedSlice = [gamecube.PortSliceSize]byte{0x14, 0x01, 0x04, 0x80, 0x80, 0x80, 0x80, 0x00, 0xFF}

const pressedRow = "0.0,1,0,0,0,0,0,1,255,0,0,128,128,128,128,0,0,0,0"

func captureParams() Params {
	return Params{
		BusNumber:    3,
		DeviceNumber: 7,
		PlayerPort:   1,
		Duration:     10 * time.Second,
	}
}

func runCapture(t *testing.T, source Source) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	err := Run(captureParams(), &Options{
		Source: source,
		Sink:   pipeline.WriterSink{W: &buf},
	})
	return buf.String(), err
}

func dataRows(output string) []string {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	return lines[1:]
}

func TestCaptureSingleURB(t *testing.T) {
	stream := BuildStream(TestPacket{
		Bus: 3, Device: 7, TransferType: 1,
		TsSec: 100, TsUsec: 500000,
		Payload: ControllerPayload(1, pressedSlice),
	})

	output, err := runCapture(t, NewMockSource(stream))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, gamecube.Header, lines[0])
	assert.Equal(t, pressedRow, lines[1])
}

func TestCaptureWrongDeviceDiscarded(t *testing.T) {
	stream := BuildStream(TestPacket{
		Bus: 3, Device: 8, TransferType: 1,
		TsSec: 100, TsUsec: 500000,
		Payload: ControllerPayload(1, pressedSlice),
	})

	output, err := runCapture(t, NewMockSource(stream))
	require.NoError(t, err)
	assert.Equal(t, gamecube.Header+"\n", output)
}

func TestCaptureSplitDelivery(t *testing.T) {
	stream := BuildStream(TestPacket{
		Bus: 3, Device: 7, TransferType: 1,
		TsSec: 100, TsUsec: 500000,
		Payload: ControllerPayload(1, pressedSlice),
	})

	output, err := runCapture(t, NewMockSource(stream, 10, 30))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, pressedRow, lines[1])
}

func TestCaptureIsochronousTransfer(t *testing.T) {
	stream := BuildStream(TestPacket{
		Bus: 3, Device: 7, TransferType: 0,
		TsSec: 100, TsUsec: 500000,
		Payload: ControllerPayload(1, pressedSlice),
	})

	output, err := runCapture(t, NewMockSource(stream))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, pressedRow, lines[1])
}

func TestCaptureDeadlineCut(t *testing.T) {
	stream := BuildStream(
		TestPacket{
			Bus: 3, Device: 7, TransferType: 1,
			TsSec:   100,
			Payload: ControllerPayload(1, pressedSlice),
		},
		TestPacket{
			Bus: 3, Device: 7, TransferType: 1,
			TsSec: 101, TsUsec: 500001,
			Payload: ControllerPayload(1, pressedSlice),
		},
	)

	var buf bytes.Buffer
	params := captureParams()
	params.Duration = time.Second
	err := Run(params, &Options{
		Source: NewMockSource(stream),
		Sink:   pipeline.WriterSink{W: &buf},
	})
	require.NoError(t, err)

	rows := dataRows(buf.String())
	require.Len(t, rows, 1)
	assert.True(t, strings.HasPrefix(rows[0], "0.0,"))
}

func TestCaptureBusMismatchFails(t *testing.T) {
	stream := BuildStream(TestPacket{
		Bus: 9, Device: 7, TransferType: 1,
		TsSec: 100, TsUsec: 500000,
		Payload: ControllerPayload(1, pressedSlice),
	})

	output, err := runCapture(t, NewMockSource(stream))
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeMisalignment), "got %v", err)
	assert.Empty(t, dataRows(output), "no data row may be written")
}

func TestCapturePermissionDenied(t *testing.T) {
	openErr := &os.PathError{Op: "open", Path: "/dev/usbmon3", Err: syscall.EACCES}
	_, err := runCapture(t, NewFailingSource(openErr))
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodePermissionDenied), "got %v", err)
	assert.True(t, IsErrno(err, syscall.EACCES))
}

func TestCaptureTimestampsMonotonic(t *testing.T) {
	packets := make([]TestPacket, 8)
	for i := range packets {
		packets[i] = TestPacket{
			Bus: 3, Device: 7, TransferType: 1,
			TsSec: int64(100 + i), TsUsec: int32(i * 125000),
			Payload: ControllerPayload(1, pressedSlice),
		}
	}

	output, err := runCapture(t, NewMockSource(BuildStream(packets...), 7, 13, 31, 64))
	require.NoError(t, err)

	rows := dataRows(output)
	require.Len(t, rows, len(packets))
	prev := -1.0
	for i, row := range rows {
		ts, err := strconv.ParseFloat(row[:strings.IndexByte(row, ',')], 64)
		require.NoError(t, err, "row %d", i)
		assert.GreaterOrEqual(t, ts, prev, "row %d", i)
		prev = ts
	}
	assert.True(t, strings.HasPrefix(rows[0], "0.0,"))
}

func TestCaptureOtherPorts(t *testing.T) {
	stream := BuildStream(TestPacket{
		Bus: 3, Device: 7, TransferType: 1,
		TsSec:   100,
		Payload: ControllerPayload(3, pressedSlice),
	})

	var buf bytes.Buffer
	params := captureParams()
	params.PlayerPort = 3
	err := Run(params, &Options{
		Source: NewMockSource(stream),
		Sink:   pipeline.WriterSink{W: &buf},
	})
	require.NoError(t, err)

	rows := dataRows(buf.String())
	require.Len(t, rows, 1)
	assert.Equal(t, pressedRow, rows[0])
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
		ok     bool
	}{
		{"valid", func(p *Params) {}, true},
		{"zero bus", func(p *Params) { p.BusNumber = 0 }, false},
		{"zero device", func(p *Params) { p.DeviceNumber = 0 }, false},
		{"port too low", func(p *Params) { p.PlayerPort = 0 }, false},
		{"port too high", func(p *Params) { p.PlayerPort = 5 }, false},
		{"zero duration", func(p *Params) { p.Duration = 0 }, false},
		{"negative duration", func(p *Params) { p.Duration = -time.Second }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := captureParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, IsCode(err, ErrCodeInvalidParameters))
			}
		})
	}
}

func TestRunRejectsMissingOutput(t *testing.T) {
	err := Run(captureParams(), nil)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeInvalidParameters))
}
