package datasource

import (
	"time"

	"github.com/kismetcore/kismet/internal/captureproto"
	"github.com/kismetcore/kismet/internal/packetchain"
)

// BestEffortLocation supplies a fallback GPS fix when a packet carries
// none and no-GPS suppression is not configured.
type BestEffortLocation interface {
	BestEffortGPS() (packetchain.GPSInfo, bool)
}

// BuildPacket turns a decoded v3 KDS_PACKET body into an ingest-ready
// packet per the datasource "incoming packet construction" rule: the raw
// frame is attached with its DLT (the source's override wins over the
// frame's own field), the timestamp is taken from ts_s/ts_us unless
// clobberTimestamp is set on a remote source (then local wall clock is
// used), GPS is attached if present, else a no-gps marker if suppressed,
// else loc's best-effort fix; signal and JSON sidecar are attached when
// present.
func (s *Source) BuildPacket(msg captureproto.PacketMsg, clobberTimestamp bool, suppressNoGPS bool, loc BestEffortLocation) *packetchain.Packet {
	pkt := packetchain.New()

	dlt := msg.Packet.DLT
	s.mu.Lock()
	if s.dlt != 0 {
		dlt = s.dlt
	}
	uuidStr := s.uuidStr
	s.mu.Unlock()

	pkt.SetComponent(packetchain.ComponentLinkFrame, packetchain.LinkFrame{
		DLT:  dlt,
		Data: msg.Packet.Content,
	})
	pkt.OriginalLen = msg.Packet.Length

	if clobberTimestamp && s.remote {
		pkt.Timestamp = time.Now()
	} else {
		pkt.Timestamp = time.Unix(msg.Packet.TsS, msg.Packet.TsUs*1000)
	}

	switch {
	case msg.GPS != nil:
		pkt.SetComponent(packetchain.ComponentGPS, packetchain.GPSInfo{
			Lat: msg.GPS.Lat, Lon: msg.GPS.Lon, Alt: msg.GPS.Alt,
			Fix: msg.GPS.Fix, Speed: msg.GPS.Speed, Heading: msg.GPS.Heading,
			Time: pkt.Timestamp,
		})
	case suppressNoGPS:
		pkt.SetComponent(packetchain.ComponentNoGPS, true)
	case loc != nil:
		if fix, ok := loc.BestEffortGPS(); ok {
			pkt.SetComponent(packetchain.ComponentGPS, fix)
		}
	}

	if msg.Signal != nil {
		pkt.SetComponent(packetchain.ComponentSignal, packetchain.SignalInfo{
			SignalDBM: msg.Signal.SignalDBM, NoiseDBM: msg.Signal.NoiseDBM,
			SignalRSSI: msg.Signal.SignalRSSI, NoiseRSSI: msg.Signal.NoiseRSSI,
			FreqKhz: msg.Signal.FreqKhz, Datarate: msg.Signal.Datarate,
			Channel: msg.Signal.Channel,
		})
	}

	if msg.JSON != nil {
		pkt.SetComponent(packetchain.ComponentJSON, *msg.JSON)
	}

	if uuidStr != "" {
		pkt.SetTag("datasource_uuid", uuidStr)
	}

	return pkt
}
