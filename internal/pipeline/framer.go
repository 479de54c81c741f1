package pipeline

import (
	"errors"
	"time"

	"github.com/byohano/gccrec/internal/constants"
	"github.com/byohano/gccrec/internal/interfaces"
	"github.com/byohano/gccrec/internal/usbmon"
)

// ErrMisaligned is raised when a record boundary does not carry the
// configured bus id. The stream has no framing marker, so the bus field is
// the only alignment sentinel; once it is wrong there is no way back to a
// record boundary.
var ErrMisaligned = errors.New("wrong bus id at expected location, data stream is incomplete/misaligned")

// Framer cuts the raw byte stream into URB records using the length
// fields inside each header, filters them by bus and device, and emits
// timestamped controller payloads in stream order. Records may span chunk
// boundaries, so the unparsed suffix persists in a workspace across
// iterations.
type Framer struct {
	In       *ByteBuffer
	Out      *FrameQueue
	Bus      int
	Device   int
	Duration time.Duration
	Signals  *Signals
	Log      interfaces.Logger
	Observer interfaces.Observer
}

// Run executes the stage until the capture ends or an abort is observed.
// Once the packet-time budget is exhausted no further records are framed,
// but the stage keeps draining the byte buffer until the capture ends.
// EndPacket is latched once the Reader has stopped and the byte buffer is
// drained.
func (f *Framer) Run() {
	var workspace []byte
	var truck []Frame
	var timeStart float64
	haveStart := false
	expired := false

	for {
		if f.Signals.Aborted() {
			f.Log.Infof("abort framing")
			return
		}

		// Observe the signal before taking, so bytes appended just before
		// EndCapture was latched are never left behind.
		ended := f.Signals.EndCapture.IsSet()
		chunk := f.In.Take()
		if len(chunk) == 0 {
			if ended {
				f.Log.Infof("capture ended, stop framing")
				f.Signals.EndPacket.Set()
				return
			}
			time.Sleep(constants.PollInterval)
			continue
		}

		if expired {
			// Past the packet-time budget everything left is discarded;
			// only the drain protocol keeps running.
			workspace = nil
			continue
		}

		workspace = append(workspace, chunk...)
		i := 0
		for i < len(workspace) {
			if len(workspace)-i < usbmon.HeaderSize {
				f.Log.Debugf("partial header, %d bytes held", len(workspace)-i)
				break
			}
			hdr, err := usbmon.DecodeHeader(workspace[i:])
			if err != nil {
				f.Signals.Abort(err)
				return
			}
			if int(hdr.BusID) != f.Bus {
				f.Log.Errorf("wrong bus id %d at record start, aborting", hdr.BusID)
				f.Signals.Abort(ErrMisaligned)
				return
			}

			packetLength := hdr.PacketLength()
			if hdr.DataLength == 0 {
				f.Log.Debugf("empty data packet, skipping")
				i += packetLength
				continue
			}
			if len(workspace)-i < packetLength {
				f.Log.Debugf("incomplete record, %d of %d bytes held", len(workspace)-i, packetLength)
				break
			}
			if int(hdr.DeviceNumber) != f.Device {
				f.Log.Debugf("wrong device %d, discarding", hdr.DeviceNumber)
				if f.Observer != nil {
					f.Observer.ObservePacket(false)
				}
				i += packetLength
				continue
			}

			ts := hdr.Timestamp()
			if !haveStart {
				haveStart = true
				timeStart = ts
			}
			if ts-timeStart > f.Duration.Seconds() {
				f.Log.Infof("packet time budget exceeded, discarding remaining records")
				if f.Observer != nil {
					f.Observer.ObservePacket(false)
				}
				expired = true
				break
			}

			payload := workspace[i+packetLength-int(hdr.DataLength)+1 : i+packetLength]
			truck = append(truck, Frame{
				Timestamp: ts,
				Payload:   append([]byte(nil), payload...),
			})
			if f.Observer != nil {
				f.Observer.ObservePacket(true)
			}
			i += packetLength
		}

		if expired {
			workspace = nil
		} else {
			workspace = append([]byte(nil), workspace[i:]...)
		}
		if len(truck) > 0 {
			f.Out.Extend(truck)
			f.Log.Debugf("%d frames queued", len(truck))
			truck = truck[:0]
		}
	}
}
