package msgs

import (
	"github.com/golang/protobuf/proto"
)

// GroupBridge is the message group of the bridge.
const GroupBridge uint32 = 0x00100000

// TypeIDs
const (
	LinkStatusTypeID   uint32 = GroupBridge | TypeIDKindEvent | 0x0001
	FrameStatsTypeID   uint32 = GroupBridge | TypeIDKindEvent | 0x0002
	OutputStatusTypeID uint32 = GroupBridge | TypeIDKindEvent | 0x0003
)

// LinkStatus reports a link state change.
type LinkStatus struct {
	State       string `protobuf:"bytes,1,opt,name=state,proto3" json:"state,omitempty"`
	Reason      string `protobuf:"bytes,2,opt,name=reason,proto3" json:"reason,omitempty"`
	AgeMs       int64  `protobuf:"varint,3,opt,name=age_ms,json=ageMs,proto3" json:"age_ms,omitempty"`
	TimestampMs int64  `protobuf:"varint,4,opt,name=timestamp_ms,json=timestampMs,proto3" json:"timestamp_ms,omitempty"`
}

// NewMessage implements Message.
func (m *LinkStatus) NewMessage() Message { return &LinkStatus{} }

// TypeID implements Message.
func (m *LinkStatus) TypeID() uint32 { return LinkStatusTypeID }

// ProtoMessage implements proto.Message.
func (m *LinkStatus) ProtoMessage() {}

// Reset implements proto.Message.
func (m *LinkStatus) Reset() { *m = LinkStatus{} }

// String implements proto.Message.
func (m *LinkStatus) String() string { return proto.CompactTextString(m) }

// FrameStats carries cumulative stream statistics.
type FrameStats struct {
	Datagrams   uint64 `protobuf:"varint,1,opt,name=datagrams,proto3" json:"datagrams,omitempty"`
	Bytes       uint64 `protobuf:"varint,2,opt,name=bytes,proto3" json:"bytes,omitempty"`
	Dropped     uint64 `protobuf:"varint,3,opt,name=dropped,proto3" json:"dropped,omitempty"`
	Candidates  uint64 `protobuf:"varint,4,opt,name=candidates,proto3" json:"candidates,omitempty"`
	Valid       uint64 `protobuf:"varint,5,opt,name=valid,proto3" json:"valid,omitempty"`
	BadLength   uint64 `protobuf:"varint,6,opt,name=bad_length,json=badLength,proto3" json:"bad_length,omitempty"`
	BadCrc      uint64 `protobuf:"varint,7,opt,name=bad_crc,json=badCrc,proto3" json:"bad_crc,omitempty"`
	BadAddress  uint64 `protobuf:"varint,8,opt,name=bad_address,json=badAddress,proto3" json:"bad_address,omitempty"`
	RcFrames    uint64 `protobuf:"varint,9,opt,name=rc_frames,json=rcFrames,proto3" json:"rc_frames,omitempty"`
	Ignored     uint64 `protobuf:"varint,10,opt,name=ignored,proto3" json:"ignored,omitempty"`
	TimestampMs int64  `protobuf:"varint,11,opt,name=timestamp_ms,json=timestampMs,proto3" json:"timestamp_ms,omitempty"`
}

// NewMessage implements Message.
func (m *FrameStats) NewMessage() Message { return &FrameStats{} }

// TypeID implements Message.
func (m *FrameStats) TypeID() uint32 { return FrameStatsTypeID }

// ProtoMessage implements proto.Message.
func (m *FrameStats) ProtoMessage() {}

// Reset implements proto.Message.
func (m *FrameStats) Reset() { *m = FrameStats{} }

// String implements proto.Message.
func (m *FrameStats) String() string { return proto.CompactTextString(m) }

// OutputStatus reports a value written to an output.
type OutputStatus struct {
	Index       uint32 `protobuf:"varint,1,opt,name=index,proto3" json:"index,omitempty"`
	Micros      int32  `protobuf:"varint,2,opt,name=micros,proto3" json:"micros,omitempty"`
	Requested   int32  `protobuf:"varint,3,opt,name=requested,proto3" json:"requested,omitempty"`
	TimestampMs int64  `protobuf:"varint,4,opt,name=timestamp_ms,json=timestampMs,proto3" json:"timestamp_ms,omitempty"`
}

// NewMessage implements Message.
func (m *OutputStatus) NewMessage() Message { return &OutputStatus{} }

// TypeID implements Message.
func (m *OutputStatus) TypeID() uint32 { return OutputStatusTypeID }

// ProtoMessage implements proto.Message.
func (m *OutputStatus) ProtoMessage() {}

// Reset implements proto.Message.
func (m *OutputStatus) Reset() { *m = OutputStatus{} }

// String implements proto.Message.
func (m *OutputStatus) String() string { return proto.CompactTextString(m) }

// OutputMeta describes one output in BridgeMeta.
type OutputMeta struct {
	Index   int  `json:"index"`
	Channel int  `json:"channel"`
	Enabled bool `json:"enabled"`
}

// BridgeMeta is published retained as JSON on the meta topic.
type BridgeMeta struct {
	Description   string            `json:"description,omitempty"`
	Labels        map[string]string `json:"labels,omitempty"`
	Port          int               `json:"port"`
	AddressPolicy string            `json:"address_policy"`
	Outputs       []OutputMeta      `json:"outputs,omitempty"`
}
