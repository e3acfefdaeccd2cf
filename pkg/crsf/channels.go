package crsf

// RC channel layout: 16 channels of 11 bits, packed little-endian.
const (
	NumChannels           = 16
	ChannelBits           = 11
	RCChannelsPayloadSize = NumChannels * ChannelBits / 8

	TickMax      = 1<<ChannelBits - 1
	TickCenter   = 992
	MicrosCenter = 1500
)

// Channels holds channel values in microseconds, indexed from 0
// (channel 1 is Channels[0]).
type Channels [NumChannels]int

// Ticks holds raw 11-bit channel values.
type Ticks [NumChannels]uint16

// TicksToMicros converts a raw channel value to microseconds using
// (ticks - 992) * 5 / 8 + 1500. The division truncates toward zero, so
// ticks 985..999 all map to 1500.
func TicksToMicros(ticks int) int {
	return (ticks-TickCenter)*5/8 + MicrosCenter
}

// MicrosToTicks converts microseconds to a raw channel value, clamped
// to 0..TickMax. For values inside the range TicksToMicros maps the
// result back to us.
func MicrosToTicks(us int) int {
	d := (us - MicrosCenter) * 8
	if d >= 0 {
		d = (d + 4) / 5
	} else {
		d = (d - 4) / 5
	}
	t := d + TickCenter
	if t < 0 {
		return 0
	}
	if t > TickMax {
		return TickMax
	}
	return t
}

// UnpackTicks extracts raw channel values from a packed RC channels payload.
// The payload must be exactly RCChannelsPayloadSize bytes.
func UnpackTicks(payload []byte) (ticks Ticks, ok bool) {
	if len(payload) != RCChannelsPayloadSize {
		return ticks, false
	}
	for ch := range ticks {
		bit := ch * ChannelBits
		pos, shift := bit>>3, uint(bit&7)
		w := uint32(payload[pos])
		if pos+1 < len(payload) {
			w |= uint32(payload[pos+1]) << 8
		}
		if pos+2 < len(payload) {
			w |= uint32(payload[pos+2]) << 16
		}
		ticks[ch] = uint16(w>>shift) & TickMax
	}
	return ticks, true
}

// UnpackChannels extracts channel values in microseconds. No clamping is
// applied here.
func UnpackChannels(payload []byte) (chs Channels, ok bool) {
	ticks, ok := UnpackTicks(payload)
	if !ok {
		return chs, false
	}
	for n, t := range ticks {
		chs[n] = TicksToMicros(int(t))
	}
	return chs, true
}

// PackTicks encodes raw channel values into a packed RC channels payload.
func PackTicks(ticks Ticks) []byte {
	payload := make([]byte, RCChannelsPayloadSize)
	for ch, t := range ticks {
		bit := ch * ChannelBits
		pos := bit >> 3
		v := (uint32(t) & TickMax) << uint(bit&7)
		for ; v != 0 && pos < len(payload); pos++ {
			payload[pos] |= byte(v)
			v >>= 8
		}
	}
	return payload
}

// NewRCChannelsFrame builds a packed RC channels frame.
func NewRCChannelsFrame(address byte, ticks Ticks) *Frame {
	return &Frame{Address: address, Type: TypeRCChannelsPacked, Payload: PackTicks(ticks)}
}
