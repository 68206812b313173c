// Package wire implements the VTX packet codec: the 16-byte fixed header,
// its CRC-16-CCITT checksum, and the frame/data type identifiers carried on
// the wire. Grounded on the teacher's BitStream read/write helpers
// (source/protocol/raknet.go) and on the wire layout in
// original_source/include/vtx_types.h.
package wire

import (
	"encoding/binary"

	"vtxgo/pkg/vtxerr"
)

// FrameType identifies the payload carried by a packet: either a media
// variant (I/P/SPS/PPS/A) or a control variant (CONNECT..STOP).
type FrameType uint8

const (
	FrameI   FrameType = 1
	FrameP   FrameType = 2
	FrameSPS FrameType = 3
	FramePPS FrameType = 4
	FrameA   FrameType = 5

	FrameConnect   FrameType = 0x10
	FrameConnected FrameType = 0x11
	FrameDisconnect FrameType = 0x12
	FrameACK       FrameType = 0x13
	FrameHeartbeat FrameType = 0x14
	FrameUser      FrameType = 0x15
	FrameStart     FrameType = 0x16
	FrameStop      FrameType = 0x17
)

// IsMedia reports whether t is a media frame type (I/P/SPS/PPS/A).
func (t FrameType) IsMedia() bool {
	return t >= FrameI && t <= FrameA
}

// IsKeyFrame reports whether t is a fragment-ARQ-protected media type.
func (t FrameType) IsKeyFrame() bool {
	return t == FrameI || t == FrameSPS || t == FramePPS
}

// IsControl reports whether t is one of the reserved control types.
func (t FrameType) IsControl() bool {
	switch t {
	case FrameConnect, FrameConnected, FrameDisconnect, FrameACK,
		FrameHeartbeat, FrameUser, FrameStart, FrameStop:
		return true
	default:
		return false
	}
}

func (t FrameType) valid() bool {
	return t.IsMedia() || t.IsControl()
}

func (t FrameType) String() string {
	switch t {
	case FrameI:
		return "I"
	case FrameP:
		return "P"
	case FrameSPS:
		return "SPS"
	case FramePPS:
		return "PPS"
	case FrameA:
		return "A"
	case FrameConnect:
		return "CONNECT"
	case FrameConnected:
		return "CONNECTED"
	case FrameDisconnect:
		return "DISCONNECT"
	case FrameACK:
		return "ACK"
	case FrameHeartbeat:
		return "HEARTBEAT"
	case FrameUser:
		return "USER"
	case FrameStart:
		return "START"
	case FrameStop:
		return "STOP"
	default:
		return "UNKNOWN"
	}
}

// Flag bits for Header.Flags.
const (
	FlagLastFrag uint8 = 1 << 0
	FlagRetrans  uint8 = 1 << 1
)

// HeaderSize is the fixed wire size of a VTX packet header in bytes.
const HeaderSize = 16

// DebugHeader, when true, appends an 8-byte send-time-ms field after the
// checksum, mirroring original_source's VTX_DEBUG build (24-byte header).
// It is a package-level switch rather than a build tag so tests can flip it
// without a second build of the module.
var DebugHeader = false

// HeaderSizeActive returns the wire header size for the current DebugHeader
// setting.
func HeaderSizeActive() int {
	if DebugHeader {
		return HeaderSize + 8
	}
	return HeaderSize
}

// Header is the fixed packet header described in spec.md §3.
type Header struct {
	SeqNum        uint32
	FrameID       uint16
	FrameType     FrameType
	Flags         uint8
	FragIndex     uint16
	TotalFrags    uint16
	PayloadSize   uint16
	Checksum      uint16
	DebugSendTimeMS uint64 // only populated/serialized when DebugHeader is set
}

// Emit serializes the header followed by payload into dst, computing and
// writing the CRC-16-CCITT checksum over header(checksum zeroed)+payload.
// dst is reused when it has capacity for HeaderSizeActive()+len(payload);
// otherwise (including nil) a new buffer is allocated.
func Emit(h Header, payload []byte, dst []byte) []byte {
	size := HeaderSizeActive()
	if cap(dst) < size+len(payload) {
		dst = make([]byte, size+len(payload))
	}
	dst = dst[:size+len(payload)]

	binary.BigEndian.PutUint32(dst[0:4], h.SeqNum)
	binary.BigEndian.PutUint16(dst[4:6], h.FrameID)
	dst[6] = byte(h.FrameType)
	dst[7] = h.Flags
	binary.BigEndian.PutUint16(dst[8:10], h.FragIndex)
	binary.BigEndian.PutUint16(dst[10:12], h.TotalFrags)
	binary.BigEndian.PutUint16(dst[12:14], uint16(len(payload)))
	dst[14] = 0
	dst[15] = 0
	if DebugHeader {
		binary.BigEndian.PutUint64(dst[16:24], h.DebugSendTimeMS)
	}
	copy(dst[size:], payload)

	crc := ChecksumCCITT(dst[:size]) // checksum field is still zero here
	crc = updateCCITT(crc, payload)
	binary.BigEndian.PutUint16(dst[14:16], crc)

	return dst
}

// Parse validates and decodes a received datagram into a Header and the
// payload slice (which aliases data — callers that retain it past the
// receive call must copy it). mtu is the configured MTU used to bound
// payload_size; pass 0 to skip that bound.
func Parse(data []byte, mtu int) (Header, []byte, error) {
	size := HeaderSizeActive()
	if len(data) < size {
		return Header{}, nil, vtxerr.New(vtxerr.PacketInvalid, "wire.Parse")
	}

	var h Header
	h.SeqNum = binary.BigEndian.Uint32(data[0:4])
	h.FrameID = binary.BigEndian.Uint16(data[4:6])
	h.FrameType = FrameType(data[6])
	h.Flags = data[7]
	h.FragIndex = binary.BigEndian.Uint16(data[8:10])
	h.TotalFrags = binary.BigEndian.Uint16(data[10:12])
	h.PayloadSize = binary.BigEndian.Uint16(data[12:14])
	h.Checksum = binary.BigEndian.Uint16(data[14:16])
	if DebugHeader {
		h.DebugSendTimeMS = binary.BigEndian.Uint64(data[16:24])
	}

	if len(data) != size+int(h.PayloadSize) {
		return Header{}, nil, vtxerr.New(vtxerr.PacketInvalid, "wire.Parse")
	}
	if !h.FrameType.valid() {
		return Header{}, nil, vtxerr.New(vtxerr.PacketInvalid, "wire.Parse")
	}
	if h.TotalFrags == 0 || h.FragIndex >= h.TotalFrags {
		return Header{}, nil, vtxerr.New(vtxerr.PacketInvalid, "wire.Parse")
	}
	if mtu > 0 && int(h.PayloadSize) > mtu-HeaderSize {
		return Header{}, nil, vtxerr.New(vtxerr.PacketTooLarge, "wire.Parse")
	}

	payload := data[size:]

	check := make([]byte, size)
	copy(check, data[:size])
	check[14] = 0
	check[15] = 0
	crc := ChecksumCCITT(check)
	crc = updateCCITT(crc, payload)
	if crc != h.Checksum {
		return Header{}, nil, vtxerr.New(vtxerr.Checksum, "wire.Parse")
	}

	return h, payload, nil
}
