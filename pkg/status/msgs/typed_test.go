package msgs

import (
	"testing"

	"github.com/golang/protobuf/proto"
	"github.com/stretchr/testify/require"
)

func TestTypedEnvelope(t *testing.T) {
	testCases := []struct {
		name string
		msg  Message
	}{
		{"link", &LinkStatus{State: "CENTERED", Reason: "timeout", AgeMs: 512, TimestampMs: 1700000000000}},
		{"stats", &FrameStats{Datagrams: 10, Bytes: 260, Valid: 9, BadCrc: 1, RcFrames: 9}},
		{"output", &OutputStatus{Index: 1, Micros: 1000, Requested: 900}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			typed, err := TypedFrom(tc.msg)
			require.NoError(t, err)
			require.True(t, typed.IsEvent())
			data, err := typed.Encode()
			require.NoError(t, err)

			decoded, err := DecodeTyped(data)
			require.NoError(t, err)
			require.Equal(t, tc.msg.TypeID(), decoded.TypeId)
			msg, err := decoded.Decode()
			require.NoError(t, err)
			require.True(t, proto.Equal(tc.msg, msg), "%v != %v", tc.msg, msg)
		})
	}
}

func TestTypedUnknownType(t *testing.T) {
	_, err := (&Typed{TypeId: 0x1234}).Decode()
	require.IsType(t, &ErrUnknownType{}, err)
	require.Equal(t, "unknown type: 1234", err.Error())

	_, err = TypedFrom(&Typed{})
	require.Equal(t, ErrNotSerializable, err)
}
