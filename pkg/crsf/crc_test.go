package crsf

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func bitwiseCRC(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0xD5
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func TestChecksum(t *testing.T) {
	testCases := []struct {
		name   string
		data   []byte
		expect byte
	}{
		{"empty", nil, 0},
		{"check string", []byte("123456789"), 0xBC},
		{"rc channels type only", []byte{TypeRCChannelsPacked}, 0xD3},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, Checksum(tc.data))
		})
	}
}

func TestChecksumMatchesBitwise(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for n := 0; n < 200; n++ {
		data := make([]byte, rnd.Intn(MaxFrameLength))
		rnd.Read(data)
		require.Equal(t, bitwiseCRC(data), Checksum(data), "data %x", data)
	}
}
