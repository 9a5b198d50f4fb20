package captureproto

// Small-integer MessagePack keys for the three reused sub-block
// structures, plus the report/request bodies that embed them. Keys are
// package-internal: no wire compatibility is promised with any other
// implementation of this protocol, only self-consistency between
// Encode*/Decode* pairs here.
const (
	keyIface     = 0
	keyFlags     = 1
	keyCapiface  = 2
	keyHW        = 3
	keyChanList  = 4
	keyChannel   = 5

	keyRate    = 0
	keyShuffle = 1
	keySkip    = 2
	keyOffset  = 3

	keyLat       = 0
	keyLon       = 1
	keyAlt       = 2
	keyFix       = 3
	keySpeed     = 4
	keyHeading   = 5
	keyPrecision = 6
	keyTsS       = 7
	keyTsUs      = 8
	keyName      = 9
	keyType      = 10
	keyUUID      = 11

	keySignalDBM = 0
	keyNoiseDBM  = 1
	keySignalRSSI = 2
	keyNoiseRSSI  = 3
	keyFreqKhz    = 4
	keyDatarate   = 5

	keyDLT     = 12
	keyLength  = 13
	keyContent = 14

	keyJSON = 15

	keySeqno   = 100
	keyMsg     = 101
	keySuccess = 102
)

// Interface is the reused "interface" sub-block: a capture interface's
// identity plus its supported channels.
type Interface struct {
	Iface    string
	Flags    string
	Capiface string
	HW       string
	ChanList []string
	Channel  string
}

func (i Interface) toMap() map[int]any {
	return map[int]any{
		keyIface:    i.Iface,
		keyFlags:    i.Flags,
		keyCapiface: i.Capiface,
		keyHW:       i.HW,
		keyChanList: i.ChanList,
		keyChannel:  i.Channel,
	}
}

func interfaceFromMap(m map[int]any) Interface {
	return Interface{
		Iface:    stringField(m, keyIface),
		Flags:    stringField(m, keyFlags),
		Capiface: stringField(m, keyCapiface),
		HW:       stringField(m, keyHW),
		ChanList: stringSliceField(m, keyChanList),
		Channel:  stringField(m, keyChannel),
	}
}

// ChanHop is the reused "chanhop" sub-block: channel-hopping parameters.
type ChanHop struct {
	Rate     float32
	Shuffle  bool
	Skip     uint16
	Offset   uint16
	ChanList []string
}

func (c ChanHop) toMap() map[int]any {
	return map[int]any{
		keyRate:     c.Rate,
		keyShuffle:  c.Shuffle,
		keySkip:     c.Skip,
		keyOffset:   c.Offset,
		keyChanList: c.ChanList,
	}
}

func chanHopFromMap(m map[int]any) ChanHop {
	return ChanHop{
		Rate:     float32Field(m, keyRate),
		Shuffle:  boolField(m, keyShuffle),
		Skip:     uint16Field(m, keySkip),
		Offset:   uint16Field(m, keyOffset),
		ChanList: stringSliceField(m, keyChanList),
	}
}

// GPS is the reused "GPS" sub-block.
type GPS struct {
	Lat       float64
	Lon       float64
	Alt       float64
	Fix       int
	Speed     float64
	Heading   float64
	Precision float64
	TsS       int64
	TsUs      int64
	Name      string
	Type      string
	UUID      string
}

func (g GPS) toMap() map[int]any {
	return map[int]any{
		keyLat: g.Lat, keyLon: g.Lon, keyAlt: g.Alt, keyFix: g.Fix,
		keySpeed: g.Speed, keyHeading: g.Heading, keyPrecision: g.Precision,
		keyTsS: g.TsS, keyTsUs: g.TsUs, keyName: g.Name, keyType: g.Type,
		keyUUID: g.UUID,
	}
}

func gpsFromMap(m map[int]any) GPS {
	return GPS{
		Lat: float64Field(m, keyLat), Lon: float64Field(m, keyLon),
		Alt: float64Field(m, keyAlt), Fix: intField(m, keyFix),
		Speed: float64Field(m, keySpeed), Heading: float64Field(m, keyHeading),
		Precision: float64Field(m, keyPrecision), TsS: int64Field(m, keyTsS),
		TsUs: int64Field(m, keyTsUs), Name: stringField(m, keyName),
		Type: stringField(m, keyType), UUID: stringField(m, keyUUID),
	}
}

// Signal is the reused "signal" sub-block.
type Signal struct {
	SignalDBM  int
	NoiseDBM   int
	SignalRSSI int
	NoiseRSSI  int
	FreqKhz    uint64
	Datarate   float64
	Channel    string
}

func (s Signal) toMap() map[int]any {
	return map[int]any{
		keySignalDBM: s.SignalDBM, keyNoiseDBM: s.NoiseDBM,
		keySignalRSSI: s.SignalRSSI, keyNoiseRSSI: s.NoiseRSSI,
		keyFreqKhz: s.FreqKhz, keyDatarate: s.Datarate, keyChannel: s.Channel,
	}
}

func signalFromMap(m map[int]any) Signal {
	return Signal{
		SignalDBM: intField(m, keySignalDBM), NoiseDBM: intField(m, keyNoiseDBM),
		SignalRSSI: intField(m, keySignalRSSI), NoiseRSSI: intField(m, keyNoiseRSSI),
		FreqKhz: uint64Field(m, keyFreqKhz), Datarate: float64Field(m, keyDatarate),
		Channel: stringField(m, keyChannel),
	}
}

// Packet is the reused "packet" sub-block carrying a raw captured frame.
type Packet struct {
	TsS     int64
	TsUs    int64
	DLT     int
	Length  int
	Content []byte
}

func (p Packet) toMap() map[int]any {
	return map[int]any{
		keyTsS: p.TsS, keyTsUs: p.TsUs, keyDLT: p.DLT,
		keyLength: p.Length, keyContent: p.Content,
	}
}

func packetFromMap(m map[int]any) Packet {
	return Packet{
		TsS: int64Field(m, keyTsS), TsUs: int64Field(m, keyTsUs),
		DLT: intField(m, keyDLT), Length: intField(m, keyLength),
		Content: bytesField(m, keyContent),
	}
}

// JSONSidecar is the reused "json sidecar" sub-block.
type JSONSidecar struct {
	TsS  int64
	TsUs int64
	Type string
	JSON string
}

func (j JSONSidecar) toMap() map[int]any {
	return map[int]any{
		keyTsS: j.TsS, keyTsUs: j.TsUs, keyType: j.Type, keyJSON: j.JSON,
	}
}

func jsonSidecarFromMap(m map[int]any) JSONSidecar {
	return JSONSidecar{
		TsS: int64Field(m, keyTsS), TsUs: int64Field(m, keyTsUs),
		Type: stringField(m, keyType), JSON: stringField(m, keyJSON),
	}
}
