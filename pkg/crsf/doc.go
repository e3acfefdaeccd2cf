// Package crsf decodes the CRSF control-link protocol.
package crsf

// A CRSF frame on the wire is laid out as
//
//   address(1) length(1) type(1) payload(length-2) crc(1)
//
// where length counts type, payload and crc. The crc is CRC-8/DVB-S2
// (polynomial 0xD5) over type and payload.
//
// Frames arrive as an unframed byte stream (e.g. UDP datagrams carrying
// partial or multiple frames), so decoding is split in two: Buffer
// accumulates bytes, Decoder scans the buffer for complete frames and
// resynchronizes one byte at a time when a candidate fails validation.
//
// Producer: RC transmitter / radio link
// Consumer: output bridge
