package crsf

import (
	"fmt"
	"io"
)

// Well-known addresses and frame types.
const (
	AddressBroadcast        byte = 0x00
	AddressFlightController byte = 0xC8
	AddressRadioTransmitter byte = 0xEA
	AddressReceiver         byte = 0xEC
	AddressTransmitter      byte = 0xEE

	TypeRCChannelsPacked byte = 0x16
)

// Frame length limits. The length field counts type, payload and crc.
const (
	MinFrameLength = 2
	MaxFrameLength = 62
	// MaxFrameSize is the largest frame on the wire, including address and length.
	MaxFrameSize = MaxFrameLength + 2
	// MaxPayloadSize is the largest payload a frame can carry.
	MaxPayloadSize = MaxFrameLength - 2
)

// Frame is a CRC-validated frame.
type Frame struct {
	Address byte
	Type    byte
	Payload []byte
}

// Size returns the encoded size of the frame.
func (f *Frame) Size() int {
	return len(f.Payload) + 4
}

// Channels unpacks RC channel values from a packed RC channels frame.
// It returns false for any other frame type or payload size.
func (f *Frame) Channels() (Channels, bool) {
	if f.Type != TypeRCChannelsPacked {
		return Channels{}, false
	}
	return UnpackChannels(f.Payload)
}

// Bytes returns the encoded frame including its CRC.
func (f *Frame) Bytes() ([]byte, error) {
	if len(f.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("crsf: payload too large: %d bytes", len(f.Payload))
	}
	b := make([]byte, f.Size())
	b[0], b[1], b[2] = f.Address, byte(len(f.Payload)+2), f.Type
	copy(b[3:], f.Payload)
	b[len(b)-1] = Checksum(b[2 : len(b)-1])
	return b, nil
}

// WriteTo writes the encoded frame.
func (f *Frame) WriteTo(w io.Writer) (int64, error) {
	b, err := f.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}
