// Package usbmon implements the binary layout of the Linux usbmon
// ("mon_bin") capture stream and a Source backed by its character device.
package usbmon

import "unsafe"

// PacketHeader must match the kernel record prefix exactly (48 bytes),
// laid out in host byte order (little-endian on the target platform):
//
//	struct usbmon_packet {
//	  u64 id;              // URB id
//	  unsigned char type;  // event type: 'S'ubmit, 'C'allback, 'E'rror
//	  unsigned char xfer_type; // ISO(0), Intr(1), Control(2), Bulk(3)
//	  unsigned char epnum; // endpoint, direction in high bit
//	  unsigned char devnum;
//	  u16 busnum;
//	  char flag_setup;
//	  char flag_data;
//	  s64 ts_sec;
//	  s32 ts_usec;
//	  int status;
//	  unsigned int length;  // URB length, not necessarily captured
//	  unsigned int len_cap; // captured payload octets after the header
//	  u64 setup;            // setup packet, valid for control transfers
//	};
type PacketHeader struct {
	ID           uint64 // URB id
	Type         uint8  // event type
	TransferType uint8  // ISO adds a descriptor block after the header
	Endpoint     uint8  // endpoint number and direction
	DeviceNumber uint8  // kernel device number on the bus
	BusID        uint16 // kernel bus number
	SetupFlag    uint8
	DataFlag     uint8
	TsSec        int64 // seconds since epoch
	TsUsec       int32 // microsecond part
	Status       int32
	URBLength    uint32 // requested URB length
	DataLength   uint32 // captured payload octets following the header
	Setup        uint64 // setup packet bytes
}

// Compile-time size check - must be exactly 48 bytes to walk the stream
var _ [HeaderSize]byte = [unsafe.Sizeof(PacketHeader{})]byte{}

// PacketLength returns the total record size on the stream: the header,
// the ISO descriptor block when present, and the captured payload.
func (h *PacketHeader) PacketLength() int {
	n := HeaderSize
	if h.TransferType == TransferIsochronous {
		n += IsoDescriptorSize
	}
	return n + int(h.DataLength)
}

// Timestamp combines the second and microsecond fields into one value.
func (h *PacketHeader) Timestamp() float64 {
	return float64(h.TsSec) + float64(h.TsUsec)*1e-6
}
