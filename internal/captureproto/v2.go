package captureproto

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Legacy v2 command names, carried as the Command envelope's command
// field. The server and capture helper agree on these strings rather than
// a numeric enum, for backward compatibility with older helpers.
const (
	V2OpenSource       = "KDSOPENSOURCE"
	V2Configure        = "KDSCONFIGURE"
	V2ProbeSource      = "KDSPROBESOURCE"
	V2ListInterfaces   = "KDSLISTINTERFACES"
	V2DataReport       = "KDSDATAREPORT"
	V2ConfigureReport  = "KDSCONFIGUREREPORT"
	V2OpenSourceReport = "KDSOPENSOURCEREPORT"
	V2InterfacesReport = "KDSINTERFACESREPORT"
	V2ProbeSourceReport = "KDSPROBESOURCEREPORT"
	V2ErrorReport      = "KDSERRORREPORT"
	V2WarningReport    = "KDSWARNINGREPORT"
)

// Field numbers of the hand-rolled Command envelope. There is no .proto
// source to generate from (the server never invokes protoc), so the wire
// layout is produced and consumed directly with protowire primitives;
// the numbering below is internal to this package and only needs to be
// stable between EncodeCommandV2 and DecodeCommandV2.
const (
	fieldCommand = protowire.Number(1)
	fieldSeqno   = protowire.Number(2)
	fieldSuccess = protowire.Number(3)
	fieldMessage = protowire.Number(4)

	successFieldSeqno   = protowire.Number(1)
	successFieldSuccess = protowire.Number(2)

	messageFieldText = protowire.Number(1)
	messageFieldType = protowire.Number(2)
)

// SuccessStanza is the `success{seqno, success}` reply every v2 report
// carries, naming which request it answers and whether it succeeded.
type SuccessStanza struct {
	Seqno   uint32
	Success bool
}

// MessageStanza is the optional textual `message{text, type}` stanza
// attached to a v2 report.
type MessageStanza struct {
	Text string
	Type uint32
}

// CommandV2 is the legacy protobuf-framed command envelope.
type CommandV2 struct {
	Command string
	Seqno   uint32
	Success *SuccessStanza
	Message *MessageStanza
}

// EncodeCommandV2 serializes c as the body of a v2 frame.
func EncodeCommandV2(c CommandV2) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldCommand, protowire.BytesType)
	b = protowire.AppendString(b, c.Command)
	b = protowire.AppendTag(b, fieldSeqno, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.Seqno))

	if c.Success != nil {
		var sb []byte
		sb = protowire.AppendTag(sb, successFieldSeqno, protowire.VarintType)
		sb = protowire.AppendVarint(sb, uint64(c.Success.Seqno))
		sb = protowire.AppendTag(sb, successFieldSuccess, protowire.VarintType)
		sb = protowire.AppendVarint(sb, boolVarint(c.Success.Success))
		b = protowire.AppendTag(b, fieldSuccess, protowire.BytesType)
		b = protowire.AppendBytes(b, sb)
	}

	if c.Message != nil {
		var mb []byte
		mb = protowire.AppendTag(mb, messageFieldText, protowire.BytesType)
		mb = protowire.AppendString(mb, c.Message.Text)
		mb = protowire.AppendTag(mb, messageFieldType, protowire.VarintType)
		mb = protowire.AppendVarint(mb, uint64(c.Message.Type))
		b = protowire.AppendTag(b, fieldMessage, protowire.BytesType)
		b = protowire.AppendBytes(b, mb)
	}

	return b
}

func boolVarint(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

// DecodeCommandV2 parses a v2 frame body produced by EncodeCommandV2 (or
// an equivalent encoder speaking the same envelope).
func DecodeCommandV2(b []byte) (CommandV2, error) {
	var c CommandV2
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return c, fmt.Errorf("captureproto: malformed v2 tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldCommand:
			s, m := protowire.ConsumeString(b)
			if m < 0 {
				return c, fmt.Errorf("captureproto: malformed v2 command field: %w", protowire.ParseError(m))
			}
			c.Command = s
			b = b[m:]

		case fieldSeqno:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return c, fmt.Errorf("captureproto: malformed v2 seqno field: %w", protowire.ParseError(m))
			}
			c.Seqno = uint32(v)
			b = b[m:]

		case fieldSuccess:
			sub, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return c, fmt.Errorf("captureproto: malformed v2 success field: %w", protowire.ParseError(m))
			}
			s, err := decodeSuccessStanza(sub)
			if err != nil {
				return c, err
			}
			c.Success = &s
			b = b[m:]

		case fieldMessage:
			sub, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return c, fmt.Errorf("captureproto: malformed v2 message field: %w", protowire.ParseError(m))
			}
			msg, err := decodeMessageStanza(sub)
			if err != nil {
				return c, err
			}
			c.Message = &msg
			b = b[m:]

		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return c, fmt.Errorf("captureproto: malformed v2 unknown field %d: %w", num, protowire.ParseError(m))
			}
			b = b[m:]
		}
	}
	return c, nil
}

func decodeSuccessStanza(b []byte) (SuccessStanza, error) {
	var s SuccessStanza
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return s, fmt.Errorf("captureproto: malformed success stanza tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case successFieldSeqno:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return s, fmt.Errorf("captureproto: malformed success stanza seqno: %w", protowire.ParseError(m))
			}
			s.Seqno = uint32(v)
			b = b[m:]
		case successFieldSuccess:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return s, fmt.Errorf("captureproto: malformed success stanza flag: %w", protowire.ParseError(m))
			}
			s.Success = v != 0
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return s, fmt.Errorf("captureproto: malformed success stanza field %d: %w", num, protowire.ParseError(m))
			}
			b = b[m:]
		}
	}
	return s, nil
}

func decodeMessageStanza(b []byte) (MessageStanza, error) {
	var m MessageStanza
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return m, fmt.Errorf("captureproto: malformed message stanza tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case messageFieldText:
			s, k := protowire.ConsumeString(b)
			if k < 0 {
				return m, fmt.Errorf("captureproto: malformed message stanza text: %w", protowire.ParseError(k))
			}
			m.Text = s
			b = b[k:]
		case messageFieldType:
			v, k := protowire.ConsumeVarint(b)
			if k < 0 {
				return m, fmt.Errorf("captureproto: malformed message stanza type: %w", protowire.ParseError(k))
			}
			m.Type = uint32(v)
			b = b[k:]
		default:
			k := protowire.ConsumeFieldValue(num, typ, b)
			if k < 0 {
				return m, fmt.Errorf("captureproto: malformed message stanza field %d: %w", num, protowire.ParseError(k))
			}
			b = b[k:]
		}
	}
	return m, nil
}
