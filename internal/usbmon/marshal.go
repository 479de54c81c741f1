package usbmon

import "encoding/binary"

// DecodeError reports a malformed or truncated record prefix.
type DecodeError string

func (e DecodeError) Error() string {
	return string(e)
}

const (
	// ErrShortHeader means fewer than HeaderSize bytes were available.
	ErrShortHeader DecodeError = "insufficient data for record header"
)

// DecodeHeader reads the fixed 48-byte record prefix at the start of data.
func DecodeHeader(data []byte) (PacketHeader, error) {
	var h PacketHeader
	if len(data) < HeaderSize {
		return h, ErrShortHeader
	}

	h.ID = binary.LittleEndian.Uint64(data[0:8])
	h.Type = data[8]
	h.TransferType = data[9]
	h.Endpoint = data[10]
	h.DeviceNumber = data[11]
	h.BusID = binary.LittleEndian.Uint16(data[12:14])
	h.SetupFlag = data[14]
	h.DataFlag = data[15]
	h.TsSec = int64(binary.LittleEndian.Uint64(data[16:24]))
	h.TsUsec = int32(binary.LittleEndian.Uint32(data[24:28]))
	h.Status = int32(binary.LittleEndian.Uint32(data[28:32]))
	h.URBLength = binary.LittleEndian.Uint32(data[32:36])
	h.DataLength = binary.LittleEndian.Uint32(data[36:40])
	h.Setup = binary.LittleEndian.Uint64(data[40:48])

	return h, nil
}

// EncodeHeader writes the fixed 48-byte record prefix. The inverse of
// DecodeHeader; used to synthesize streams in tests and tooling.
func EncodeHeader(h *PacketHeader) []byte {
	buf := make([]byte, HeaderSize)

	binary.LittleEndian.PutUint64(buf[0:8], h.ID)
	buf[8] = h.Type
	buf[9] = h.TransferType
	buf[10] = h.Endpoint
	buf[11] = h.DeviceNumber
	binary.LittleEndian.PutUint16(buf[12:14], h.BusID)
	buf[14] = h.SetupFlag
	buf[15] = h.DataFlag
	binary.LittleEndian.PutUint64(buf[16:24], uint64(h.TsSec))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(h.TsUsec))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(h.Status))
	binary.LittleEndian.PutUint32(buf[32:36], h.URBLength)
	binary.LittleEndian.PutUint32(buf[36:40], h.DataLength)
	binary.LittleEndian.PutUint64(buf[40:48], h.Setup)

	return buf
}
