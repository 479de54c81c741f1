package gccrec

import (
	"io"
	"sync"

	"github.com/byohano/gccrec/internal/gamecube"
	"github.com/byohano/gccrec/internal/usbmon"
)

// MockSource replays a byte stream as a capture source, delivering it in
// scripted chunk sizes so tests can exercise records that span read
// boundaries. Reads return io.EOF once the stream is exhausted.
type MockSource struct {
	chunks  [][]byte
	openErr error
}

// NewMockSource builds a source over stream. With no chunk sizes the
// stream arrives in a single read; otherwise each size carves the next
// chunk and any remainder forms a final chunk.
func NewMockSource(stream []byte, chunkSizes ...int) *MockSource {
	var chunks [][]byte
	if len(chunkSizes) == 0 {
		if len(stream) > 0 {
			chunks = [][]byte{stream}
		}
	} else {
		rest := stream
		for _, n := range chunkSizes {
			if n > len(rest) {
				n = len(rest)
			}
			chunks = append(chunks, rest[:n])
			rest = rest[n:]
		}
		if len(rest) > 0 {
			chunks = append(chunks, rest)
		}
	}
	return &MockSource{chunks: chunks}
}

// NewFailingSource returns a source whose Open fails with err.
func NewFailingSource(err error) *MockSource {
	return &MockSource{openErr: err}
}

// Open implements the Source interface
func (s *MockSource) Open() (io.ReadCloser, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return &mockStream{chunks: s.chunks}, nil
}

type mockStream struct {
	mu     sync.Mutex
	chunks [][]byte
}

func (r *mockStream) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for len(r.chunks) > 0 && len(r.chunks[0]) == 0 {
		r.chunks = r.chunks[1:]
	}
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}

	n := copy(p, r.chunks[0])
	if n == len(r.chunks[0]) {
		r.chunks = r.chunks[1:]
	} else {
		r.chunks[0] = r.chunks[0][n:]
	}
	return n, nil
}

func (r *mockStream) Close() error { return nil }

// TestPacket describes one synthetic URB record for building streams.
type TestPacket struct {
	Bus          int
	Device       int
	TransferType uint8
	TsSec        int64
	TsUsec       int32
	Payload      []byte // report byte plus controller frame; may be empty
}

// Marshal renders the record: header, ISO descriptor block when
// isochronous, then the payload.
func (p TestPacket) Marshal() []byte {
	hdr := usbmon.PacketHeader{
		TransferType: p.TransferType,
		DeviceNumber: uint8(p.Device),
		BusID:        uint16(p.Bus),
		TsSec:        p.TsSec,
		TsUsec:       p.TsUsec,
		URBLength:    uint32(len(p.Payload)),
		DataLength:   uint32(len(p.Payload)),
	}
	out := usbmon.EncodeHeader(&hdr)
	if p.TransferType == usbmon.TransferIsochronous {
		out = append(out, make([]byte, usbmon.IsoDescriptorSize)...)
	}
	return append(out, p.Payload...)
}

// BuildStream concatenates records into one capture stream.
func BuildStream(packets ...TestPacket) []byte {
	var out []byte
	for _, p := range packets {
		out = append(out, p.Marshal()...)
	}
	return out
}

// ControllerPayload builds a full adapter payload (report byte plus four
// port slices) with the given nine-byte slice installed for one port and
// zeroes elsewhere.
func ControllerPayload(port int, slice [gamecube.PortSliceSize]byte) []byte {
	out := make([]byte, 1+gamecube.FrameSize)
	out[0] = 0x21 // report byte, dropped by the framer
	copy(out[1+(port-1)*gamecube.PortSliceSize:], slice[:])
	return out
}
