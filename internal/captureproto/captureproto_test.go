package captureproto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	body := []byte("hello capture helper")
	require.NoError(t, WriteFrame(&buf, body))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, body, got)
}

func TestFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x7F, 0xFF, 0xFF, 0xFF}) // huge declared length, no body
	_, err := ReadFrame(&buf)
	require.Error(t, err)
}

func TestCommandV2RoundTrip(t *testing.T) {
	c := CommandV2{
		Command: V2OpenSourceReport,
		Seqno:   42,
		Success: &SuccessStanza{Seqno: 42, Success: true},
		Message: &MessageStanza{Text: "opened", Type: 1},
	}
	encoded := EncodeCommandV2(c)
	decoded, err := DecodeCommandV2(encoded)
	require.NoError(t, err)
	require.Equal(t, c.Command, decoded.Command)
	require.Equal(t, c.Seqno, decoded.Seqno)
	require.NotNil(t, decoded.Success)
	require.Equal(t, *c.Success, *decoded.Success)
	require.NotNil(t, decoded.Message)
	require.Equal(t, *c.Message, *decoded.Message)
}

func TestCommandV2WithoutOptionalStanzas(t *testing.T) {
	c := CommandV2{Command: V2ProbeSource, Seqno: 7}
	decoded, err := DecodeCommandV2(EncodeCommandV2(c))
	require.NoError(t, err)
	require.Equal(t, c, decoded)
}

func TestV3HeaderAndBodyRoundTrip(t *testing.T) {
	req := OpenReq{Seqno: 5, Definition: "wlan0:type=linuxwifi"}
	frame, err := EncodeV3(Header{CommandID: CmdOpenReq, SeqnoOrCode: 5}, req.ToBody())
	require.NoError(t, err)

	h, body, err := DecodeV3(frame)
	require.NoError(t, err)
	require.Equal(t, CmdOpenReq, h.CommandID)
	require.Equal(t, uint16(5), h.SeqnoOrCode)

	decoded := OpenReqFromBody(body)
	require.Equal(t, req, decoded)
}

func TestOpenReportWithChanHopRoundTrip(t *testing.T) {
	report := OpenReport{
		Seqno: 9, Success: true, Message: "ok", UUID: "11111111-2222-3333-4444-555555555555",
		DLT: 127, Capif: "wlan0mon", HW: "ath9k", Channel: "6",
		ChanHop: &ChanHop{Rate: 1.0, Shuffle: true, Skip: 0, Offset: 0, ChanList: []string{"1", "6", "11"}},
	}
	frame, err := EncodeV3(Header{CommandID: CmdOpenReport, SeqnoOrCode: 9}, report.ToBody())
	require.NoError(t, err)

	_, body, err := DecodeV3(frame)
	require.NoError(t, err)
	decoded := OpenReportFromBody(body)
	require.Equal(t, report.UUID, decoded.UUID)
	require.Equal(t, report.DLT, decoded.DLT)
	require.NotNil(t, decoded.ChanHop)
	require.Equal(t, report.ChanHop.ChanList, decoded.ChanHop.ChanList)
	require.True(t, decoded.ChanHop.Shuffle)
}

func TestPacketMsgWithSubBlocksRoundTrip(t *testing.T) {
	msg := PacketMsg{
		Packet: Packet{TsS: 1000, TsUs: 500, DLT: 127, Length: 4, Content: []byte{1, 2, 3, 4}},
		GPS:    &GPS{Lat: 45.5, Lon: -122.6, Fix: 3},
		Signal: &Signal{SignalDBM: -40, NoiseDBM: -95, FreqKhz: 2437000},
	}
	frame, err := EncodeV3(Header{CommandID: CmdPacket}, msg.ToBody())
	require.NoError(t, err)

	_, body, err := DecodeV3(frame)
	require.NoError(t, err)
	decoded := PacketMsgFromBody(body)

	require.Equal(t, msg.Packet.Content, decoded.Packet.Content)
	require.Equal(t, msg.Packet.DLT, decoded.Packet.DLT)
	require.NotNil(t, decoded.GPS)
	require.Equal(t, msg.GPS.Lat, decoded.GPS.Lat)
	require.NotNil(t, decoded.Signal)
	require.Equal(t, msg.Signal.SignalDBM, decoded.Signal.SignalDBM)
	require.Nil(t, decoded.JSON)
}

func TestCorrelatorResolvesBySeqno(t *testing.T) {
	c := NewCorrelator()
	var gotBody map[int]any
	c.Track(3, func(h Header, body map[int]any) { gotBody = body })

	require.Equal(t, 1, c.Pending())
	c.Resolve(Header{SeqnoOrCode: 3}, map[int]any{keySeqno: uint64(3)})
	require.Equal(t, 0, c.Pending())
	require.NotNil(t, gotBody)
}

func TestCorrelatorIgnoresUnknownSeqno(t *testing.T) {
	c := NewCorrelator()
	fired := false
	c.Track(1, func(h Header, body map[int]any) { fired = true })
	c.Resolve(Header{SeqnoOrCode: 99}, nil)
	require.False(t, fired)
	require.Equal(t, 1, c.Pending())
}
