package crsf

import (
	"fmt"
	"strings"
)

// minScanSize is the smallest candidate: address, length, type, crc.
const minScanSize = 4

// AddressPolicy decides which frame addresses the Decoder accepts.
type AddressPolicy int

const (
	// AddressStrict accepts only frames sent to Decoder.Address. Frames
	// with another address are counted as rejected and skipped whole
	// once their CRC validates; they are not treated as corruption.
	AddressStrict AddressPolicy = iota
	// AddressAny accepts every frame whose length and CRC validate.
	AddressAny
)

// String implements fmt.Stringer.
func (p AddressPolicy) String() string {
	switch p {
	case AddressStrict:
		return "strict"
	case AddressAny:
		return "any"
	}
	return fmt.Sprintf("AddressPolicy(%d)", int(p))
}

// MarshalText implements encoding.TextMarshaler.
func (p AddressPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *AddressPolicy) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "strict":
		*p = AddressStrict
	case "any":
		*p = AddressAny
	default:
		return fmt.Errorf("unknown address policy %q (expect strict or any)", string(text))
	}
	return nil
}

// Stats counts decoder decisions.
type Stats struct {
	// Candidates is the number of positions examined.
	Candidates int
	// Valid is the number of frames passing length and CRC checks.
	Valid int
	// BadLength counts positions whose length field is out of range.
	BadLength int
	// BadCRC counts candidates failing the CRC check.
	BadCRC int
	// BadAddress counts valid frames rejected by AddressStrict.
	BadAddress int
}

// Add accumulates o.
func (s *Stats) Add(o Stats) {
	s.Candidates += o.Candidates
	s.Valid += o.Valid
	s.BadLength += o.BadLength
	s.BadCRC += o.BadCRC
	s.BadAddress += o.BadAddress
}

// Sub returns the difference s - o.
func (s Stats) Sub(o Stats) Stats {
	return Stats{
		Candidates: s.Candidates - o.Candidates,
		Valid:      s.Valid - o.Valid,
		BadLength:  s.BadLength - o.BadLength,
		BadCRC:     s.BadCRC - o.BadCRC,
		BadAddress: s.BadAddress - o.BadAddress,
	}
}

// Decoder finds CRC-valid frames in buffered stream bytes.
type Decoder struct {
	Policy  AddressPolicy
	Address byte
	// Stats accumulates over all scans.
	Stats Stats
}

// NewDecoder creates a Decoder.
func NewDecoder(policy AddressPolicy, address byte) *Decoder {
	return &Decoder{Policy: policy, Address: address}
}

// Scan examines buf and returns the frames found and the number of
// leading bytes consumed. A candidate that fails validation consumes
// exactly one byte, as its length field cannot be trusted. A candidate
// not yet fully buffered stops the scan without being consumed.
// Returned payloads do not alias buf.
func (d *Decoder) Scan(buf []byte) (frames []Frame, consumed int) {
	i := 0
	for len(buf)-i >= minScanSize {
		length := int(buf[i+1])
		if length < MinFrameLength || length > MaxFrameLength {
			d.Stats.Candidates++
			d.Stats.BadLength++
			i++
			continue
		}
		size := length + 2
		if len(buf)-i < size {
			break
		}
		d.Stats.Candidates++
		f := buf[i : i+size]
		if Checksum(f[2:size-1]) != f[size-1] {
			d.Stats.BadCRC++
			i++
			continue
		}
		d.Stats.Valid++
		i += size
		if d.Policy == AddressStrict && f[0] != d.Address {
			d.Stats.BadAddress++
			continue
		}
		frames = append(frames, Frame{
			Address: f[0],
			Type:    f[2],
			Payload: append([]byte(nil), f[3:size-1]...),
		})
	}
	return frames, i
}

// Decode scans b, drops the consumed bytes and returns the frames found.
func (d *Decoder) Decode(b *Buffer) []Frame {
	frames, n := d.Scan(b.Bytes())
	b.Consume(n)
	return frames
}
