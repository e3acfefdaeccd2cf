package crsf

import "github.com/sigurn/crc8"

var crcTable = crc8.MakeTable(crc8.CRC8_DVB_S2)

// Checksum computes CRC-8/DVB-S2 of data: polynomial 0xD5, MSB-first,
// initial value 0, no final XOR.
func Checksum(data []byte) byte {
	return crc8.Checksum(data, crcTable)
}
