package datasource

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kismetcore/kismet/internal/captureproto"
)

func TestParseDefinitionSplitsInterfaceAndOpts(t *testing.T) {
	d, err := ParseDefinition("wlan0:type=linuxwifi,channel=6")
	require.NoError(t, err)
	require.Equal(t, "wlan0", d.Interface)
	v, ok := d.Opt("type")
	require.True(t, ok)
	require.Equal(t, "linuxwifi", v)
}

func TestParseDefinitionRejectsEmptyInterface(t *testing.T) {
	_, err := ParseDefinition(":opt=val")
	require.Error(t, err)
}

func TestParseDefinitionWithoutOpts(t *testing.T) {
	d, err := ParseDefinition("wlan0")
	require.NoError(t, err)
	require.Equal(t, "wlan0", d.Interface)
	require.Empty(t, d.Opts)
}

func TestMergeChannelsAddsAndBlocks(t *testing.T) {
	def, _ := ParseDefinition("wlan0:add_channels=36,block_channels=6")
	got := MergeChannels([]string{"1", "6", "11"}, def)
	require.Equal(t, []string{"1", "11", "36"}, got)
}

func TestMergeChannelsReplacesWhenChannelsSet(t *testing.T) {
	def, _ := ParseDefinition("wlan0:channels=1,2,3")
	got := MergeChannels([]string{"1", "6", "11"}, def)
	require.Equal(t, []string{"1", "2", "3"}, got)
}

// pipeTransport adapts a net.Conn (from net.Pipe) to the Transport
// interface for in-process handshake tests.
type pipeTransport struct{ net.Conn }

func TestOpenPassiveSourceGetsRunningStateAndUUID(t *testing.T) {
	s := New(Config{
		Definition: mustParse(t, "remotefeed:uuid=none"),
		Passive:    true,
	})
	require.NoError(t, s.Open())
	require.Equal(t, StateRunning, s.State())
	require.NotEmpty(t, s.UUID())
}

func TestOpenHandshakeSucceedsOnOpenReport(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()

	go serveFakeHelper(t, serverConn)

	s := New(Config{
		Definition: mustParse(t, "wlan0:type=linuxwifi"),
		Launch: func(def Definition) (Transport, error) {
			return pipeTransport{clientConn}, nil
		},
	})

	err := s.Open()
	require.NoError(t, err)
	require.Equal(t, StateRunning, s.State())
	require.NotEmpty(t, s.UUID())
	s.Close()
}

func TestOpenHandshakeFailureEntersErroring(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()

	go func() {
		body, err := captureproto.ReadFrame(serverConn)
		if err != nil {
			return
		}
		h, _, _ := captureproto.DecodeV3(body)
		report := captureproto.OpenReport{Seqno: 0, Success: false, Message: "no such device"}
		frame, _ := captureproto.EncodeV3(captureproto.Header{CommandID: captureproto.CmdOpenReport, SeqnoOrCode: h.SeqnoOrCode}, report.ToBody())
		_ = captureproto.WriteFrame(serverConn, frame)
	}()

	s := New(Config{
		Definition: mustParse(t, "wlan0"),
		Launch: func(def Definition) (Transport, error) {
			return pipeTransport{clientConn}, nil
		},
	})

	err := s.Open()
	require.Error(t, err)
	require.Equal(t, StateErroring, s.State())
}

func TestPauseSuppressesPacketDelivery(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()

	delivered := make(chan struct{}, 1)
	s := New(Config{
		Definition: mustParse(t, "wlan0"),
		Launch: func(def Definition) (Transport, error) {
			return pipeTransport{clientConn}, nil
		},
		OnPacket: func(h captureproto.Header, body map[int]any) {
			delivered <- struct{}{}
		},
	})

	go serveFakeHelper(t, serverConn)
	require.NoError(t, s.Open())
	s.Pause()

	pkt := captureproto.PacketMsg{Packet: captureproto.Packet{TsS: 1, Content: []byte{1}}}
	frame, _ := captureproto.EncodeV3(captureproto.Header{CommandID: captureproto.CmdPacket}, pkt.ToBody())
	require.NoError(t, captureproto.WriteFrame(serverConn, frame))

	select {
	case <-delivered:
		t.Fatal("packet delivered while paused")
	case <-time.After(100 * time.Millisecond):
	}
	s.Close()
}

func mustParse(t *testing.T, raw string) Definition {
	t.Helper()
	d, err := ParseDefinition(raw)
	require.NoError(t, err)
	return d
}

// serveFakeHelper answers exactly one OPENREQ with a successful
// OPENREPORT, then blocks responding to pings until the connection
// closes.
func serveFakeHelper(t *testing.T, conn net.Conn) {
	t.Helper()
	for {
		body, err := captureproto.ReadFrame(conn)
		if err != nil {
			return
		}
		h, _, err := captureproto.DecodeV3(body)
		if err != nil {
			return
		}
		switch h.CommandID {
		case captureproto.CmdOpenReq:
			report := captureproto.OpenReport{
				Seqno: uint32(h.SeqnoOrCode), Success: true, Message: "ok",
				UUID: "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee", DLT: 127,
			}
			frame, _ := captureproto.EncodeV3(captureproto.Header{CommandID: captureproto.CmdOpenReport, SeqnoOrCode: h.SeqnoOrCode}, report.ToBody())
			if err := captureproto.WriteFrame(conn, frame); err != nil {
				return
			}
		case captureproto.CmdPing:
			frame, _ := captureproto.EncodePing(captureproto.CmdPong, h.SeqnoOrCode)
			if err := captureproto.WriteFrame(conn, frame); err != nil {
				return
			}
		}
	}
}
