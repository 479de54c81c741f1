// Package gamecube decodes the four-port controller payload reported by
// the standard GameCube controller adapter and formats it as CSV records.
package gamecube

import (
	"math"
	"strconv"
	"strings"
)

// Adapter payload geometry. Each accepted URB carries one snapshot of all
// four ports: a report byte (dropped upstream) followed by nine bytes per
// port.
const (
	PortCount     = 4
	PortSliceSize = 9
	FrameSize     = PortCount * PortSliceSize
)

// A port reads as connected when its status byte is above this value.
const connectedThreshold = 16

// Header is the literal column list written as the first output row.
const Header = "TIMESTAMP,A,B,X,Y,Z,START,R,R_PRESSURE,L,L_PRESSURE,LEFT_STICK_X,LEFT_STICK_Y,C_STICK_X,C_STICK_Y,DPAD_LEFT,DPAD_RIGHT,DPAD_UP,DPAD_DOWN"

// DecodeError reports a payload that cannot be decoded for a port.
type DecodeError string

func (e DecodeError) Error() string {
	return string(e)
}

const (
	// ErrBadPort means the port is outside 1..PortCount.
	ErrBadPort DecodeError = "player port out of range"

	// ErrShortFrame means the payload does not cover the requested port.
	ErrShortFrame DecodeError = "controller frame too short"
)

// PortState holds the decoded inputs of one controller port for one frame.
// Digital buttons and D-pad directions are 0 or 1; sticks and trigger
// pressures are raw 0..255 (sticks: 0 left/down, 128 center, 255 right/up).
type PortState struct {
	Port      int
	Connected bool

	A, B, X, Y     byte
	Start, Z, R, L byte

	DpadLeft, DpadRight, DpadUp, DpadDown byte

	LeftStickX, LeftStickY byte
	CStickX, CStickY       byte
	LPressure, RPressure   byte
}

// DecodePort extracts and decodes the nine-byte slice for the given
// 1-based port from a frame of FrameSize payload bytes.
//
// Slice layout: byte 0 connection status; byte 1 face buttons in the low
// nibble (A=1, B=2, X=4, Y=8) and D-pad in the high nibble (left=1,
// right=2, down=4, up=8); byte 2 low nibble Start=1, Z=2, R=4, L=8;
// bytes 3-6 left stick X/Y and C-stick X/Y; bytes 7-8 trigger pressures.
func DecodePort(frame []byte, port int) (PortState, error) {
	if port < 1 || port > PortCount {
		return PortState{}, ErrBadPort
	}
	end := port * PortSliceSize
	if len(frame) < end {
		return PortState{}, ErrShortFrame
	}
	s := frame[end-PortSliceSize : end]

	st := PortState{
		Port:      port,
		Connected: s[0] > connectedThreshold,
	}

	face := s[1] & 0x0f
	st.A = face & 1
	st.B = face >> 1 & 1
	st.X = face >> 2 & 1
	st.Y = face >> 3 & 1

	dpad := s[1] >> 4
	st.DpadLeft = dpad & 1
	st.DpadRight = dpad >> 1 & 1
	st.DpadDown = dpad >> 2 & 1
	st.DpadUp = dpad >> 3 & 1

	other := s[2] & 0x0f
	st.Start = other & 1
	st.Z = other >> 1 & 1
	st.R = other >> 2 & 1
	st.L = other >> 3 & 1

	st.LeftStickX = s[3]
	st.LeftStickY = s[4]
	st.CStickX = s[5]
	st.CStickY = s[6]
	st.LPressure = s[7]
	st.RPressure = s[8]

	return st, nil
}

// Round6 rounds a relative timestamp to six fractional digits, the
// resolution of the capture stream's microsecond clock.
func Round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// FormatTimestamp renders a relative timestamp with minimal digits while
// keeping at least one fractional digit, so whole seconds print as "1.0"
// and the first record of a capture as "0.0".
func FormatTimestamp(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// Row renders the CSV record for this state at the given relative
// timestamp, in Header's column order. No terminator is appended.
func (p *PortState) Row(timestamp float64) string {
	fields := [...]byte{
		p.A, p.B, p.X, p.Y, p.Z,
		p.Start,
		p.R, p.RPressure, p.L, p.LPressure,
		p.LeftStickX, p.LeftStickY, p.CStickX, p.CStickY,
		p.DpadLeft, p.DpadRight, p.DpadUp, p.DpadDown,
	}

	buf := make([]byte, 0, 2*len(Header))
	buf = append(buf, FormatTimestamp(timestamp)...)
	for _, f := range fields {
		buf = append(buf, ',')
		buf = strconv.AppendUint(buf, uint64(f), 10)
	}
	return string(buf)
}
