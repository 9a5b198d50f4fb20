package captureproto

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// V3 command ids, carried in the binary header ahead of the MessagePack
// body.
const (
	CmdProbeReq     uint16 = 1
	CmdProbeReport  uint16 = 2
	CmdListReq      uint16 = 3
	CmdListReport   uint16 = 4
	CmdOpenReq      uint16 = 5
	CmdOpenReport   uint16 = 6
	CmdConfigReq    uint16 = 7
	CmdConfigReport uint16 = 8
	CmdPacket       uint16 = 9
)

// Header is the 4-byte binary v3 frame header: a command id followed by a
// field whose meaning (seqno, or a success/failure code) is defined by the
// command.
type Header struct {
	CommandID       uint16
	SeqnoOrCode     uint16
}

const headerLen = 4

// EncodeV3 serializes a complete v3 frame body: the binary header
// immediately followed by the MessagePack-encoded body map.
func EncodeV3(h Header, body map[int]any) ([]byte, error) {
	packed, err := msgpack.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("captureproto: marshaling v3 body: %w", err)
	}
	out := make([]byte, headerLen+len(packed))
	out[0] = byte(h.CommandID >> 8)
	out[1] = byte(h.CommandID)
	out[2] = byte(h.SeqnoOrCode >> 8)
	out[3] = byte(h.SeqnoOrCode)
	copy(out[headerLen:], packed)
	return out, nil
}

// DecodeV3 splits a v3 frame body into its header and MessagePack map.
func DecodeV3(frame []byte) (Header, map[int]any, error) {
	if len(frame) < headerLen {
		return Header{}, nil, fmt.Errorf("captureproto: v3 frame too short: %d bytes", len(frame))
	}
	h := Header{
		CommandID:   uint16(frame[0])<<8 | uint16(frame[1]),
		SeqnoOrCode: uint16(frame[2])<<8 | uint16(frame[3]),
	}
	raw := map[any]any{}
	if err := msgpack.Unmarshal(frame[headerLen:], &raw); err != nil {
		return h, nil, fmt.Errorf("captureproto: unmarshaling v3 body: %w", err)
	}
	body := make(map[int]any, len(raw))
	for k, v := range raw {
		ik, err := toIntKey(k)
		if err != nil {
			return h, nil, fmt.Errorf("captureproto: v3 body key %v: %w", k, err)
		}
		body[ik] = v
	}
	return h, body, nil
}

func toIntKey(k any) (int, error) {
	switch v := k.(type) {
	case int8:
		return int(v), nil
	case int16:
		return int(v), nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case int:
		return v, nil
	case uint8:
		return int(v), nil
	case uint16:
		return int(v), nil
	case uint32:
		return int(v), nil
	case uint64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("non-integer map key of type %T", k)
	}
}
