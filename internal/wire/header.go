// Package wire implements the little-endian packet header codec shared by
// every packet kind crossing the datacenter network between servers.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/bohrm1/agora/internal/agoraerr"
)

// Kind identifies the payload carried after a Header.
type Kind uint8

const (
	KindTimeIQ Kind = iota
	KindFreqIQ
	KindZF
	KindDemod
)

func (k Kind) String() string {
	switch k {
	case KindTimeIQ:
		return "time-iq"
	case KindFreqIQ:
		return "freq-iq"
	case KindZF:
		return "zf"
	case KindDemod:
		return "demod"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// HeaderLen is the fixed, wire-exact size of Header in bytes.
const HeaderLen = 1 + 4 + 2 + 2 + 2 + 2 + 2

// Header is the fixed-size prefix of every packet. Field order and widths
// match the wire format exactly: kind:u8, frame:u32, symbol:u16,
// antenna_or_ue:u16, subcarrier_start:u16, subcarrier_len:u16,
// source_server:u16, all little-endian.
type Header struct {
	Kind            Kind
	Frame           uint32
	Symbol          uint16
	AntennaOrUE     uint16
	SubcarrierStart uint16
	SubcarrierLen   uint16
	SourceServer    uint16
}

// Marshal encodes h into the first HeaderLen bytes of dst, which must be at
// least that long.
func (h Header) Marshal(dst []byte) {
	dst[0] = byte(h.Kind)
	binary.LittleEndian.PutUint32(dst[1:5], h.Frame)
	binary.LittleEndian.PutUint16(dst[5:7], h.Symbol)
	binary.LittleEndian.PutUint16(dst[7:9], h.AntennaOrUE)
	binary.LittleEndian.PutUint16(dst[9:11], h.SubcarrierStart)
	binary.LittleEndian.PutUint16(dst[11:13], h.SubcarrierLen)
	binary.LittleEndian.PutUint16(dst[13:15], h.SourceServer)
}

// Unmarshal decodes a Header from the first HeaderLen bytes of src.
// ErrMalformedPacket is returned if src is too short.
func Unmarshal(src []byte) (Header, error) {
	if len(src) < HeaderLen {
		return Header{}, fmt.Errorf("%w: header needs %d bytes, got %d", agoraerr.ErrMalformedPacket, HeaderLen, len(src))
	}
	h := Header{
		Kind:            Kind(src[0]),
		Frame:           binary.LittleEndian.Uint32(src[1:5]),
		Symbol:          binary.LittleEndian.Uint16(src[5:7]),
		AntennaOrUE:     binary.LittleEndian.Uint16(src[7:9]),
		SubcarrierStart: binary.LittleEndian.Uint16(src[9:11]),
		SubcarrierLen:   binary.LittleEndian.Uint16(src[11:13]),
		SourceServer:    binary.LittleEndian.Uint16(src[13:15]),
	}
	if h.Kind > KindDemod {
		return Header{}, fmt.Errorf("%w: unknown kind %d", agoraerr.ErrMalformedPacket, h.Kind)
	}
	return h, nil
}

// PayloadLen returns the expected payload length in bytes for a packet
// with this header, given the per-subcarrier/antenna complex sample width
// in bytes (4 for complex int16, 8 for complex float32).
func PayloadLen(k Kind, sampleWidth int, fullAntennaCount int, ueCount int, subcarrierLen int) int {
	switch k {
	case KindTimeIQ:
		return fullAntennaCount * sampleWidth
	case KindFreqIQ:
		return subcarrierLen * sampleWidth
	case KindZF:
		return fullAntennaCount * ueCount * sampleWidth
	case KindDemod:
		return subcarrierLen * sampleWidth
	default:
		return 0
	}
}

// OutboundPacket is the small, fixed-size descriptor handed from a
// producing worker to the TX goroutine over the lock-free MPSC hand-off;
// it carries only the header and the destination server id, not the
// payload, which already lives in the to-send mirror arena.
type OutboundPacket struct {
	Header Header
	Dest   uint16 // destination server id
}
