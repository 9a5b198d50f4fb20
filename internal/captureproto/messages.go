package captureproto

// Extra keys used only at the top level of request/report bodies (not
// inside a reused sub-block).
const (
	keyDefinition = 50
	keyInterfaces = 51
	keyChanHop    = 52
	keyUUIDTop    = 53
	keyRetry      = 54
	keyGPSBlock   = 55
	keySignalBlock = 56
	keyJSONBlock  = 57
)

// ProbeReq asks a capture helper whether it can open a given source
// definition without actually opening it.
type ProbeReq struct {
	Seqno      uint32
	Definition string
}

func (r ProbeReq) ToBody() map[int]any {
	return map[int]any{keySeqno: r.Seqno, keyDefinition: r.Definition}
}

func ProbeReqFromBody(m map[int]any) ProbeReq {
	return ProbeReq{Seqno: uint32(uint64Field(m, keySeqno)), Definition: stringField(m, keyDefinition)}
}

// ProbeReport answers a ProbeReq: whether the source can be opened, and
// (on success) the channel set it supports.
type ProbeReport struct {
	Seqno      uint32
	Success    bool
	Message    string
	Interface  *Interface
	ChanHop    *ChanHop
}

func (r ProbeReport) ToBody() map[int]any {
	m := map[int]any{keySeqno: r.Seqno, keySuccess: r.Success, keyMsg: r.Message}
	if r.Interface != nil {
		m[keyIface] = r.Interface.toMap()
	}
	if r.ChanHop != nil {
		m[keyChanHop] = r.ChanHop.toMap()
	}
	return m
}

func ProbeReportFromBody(m map[int]any) ProbeReport {
	r := ProbeReport{
		Seqno:   uint32(uint64Field(m, keySeqno)),
		Success: boolField(m, keySuccess),
		Message: stringField(m, keyMsg),
	}
	if sub, ok := subMap(m, keyIface); ok {
		iface := interfaceFromMap(sub)
		r.Interface = &iface
	}
	if sub, ok := subMap(m, keyChanHop); ok {
		ch := chanHopFromMap(sub)
		r.ChanHop = &ch
	}
	return r
}

// ListReq asks a capture helper to enumerate interfaces it can capture
// from.
type ListReq struct {
	Seqno uint32
}

func (r ListReq) ToBody() map[int]any { return map[int]any{keySeqno: r.Seqno} }

func ListReqFromBody(m map[int]any) ListReq {
	return ListReq{Seqno: uint32(uint64Field(m, keySeqno))}
}

// ListReport answers a ListReq with the interfaces the helper found.
type ListReport struct {
	Seqno      uint32
	Message    string
	Interfaces []Interface
}

func (r ListReport) ToBody() map[int]any {
	ifaces := make([]any, len(r.Interfaces))
	for i, iface := range r.Interfaces {
		ifaces[i] = iface.toMap()
	}
	return map[int]any{keySeqno: r.Seqno, keyMsg: r.Message, keyInterfaces: ifaces}
}

func ListReportFromBody(m map[int]any) ListReport {
	r := ListReport{Seqno: uint32(uint64Field(m, keySeqno)), Message: stringField(m, keyMsg)}
	if raw, ok := m[keyInterfaces]; ok {
		if list, ok := raw.([]any); ok {
			for _, item := range list {
				if sub, ok := toIntKeyedMap(item); ok {
					r.Interfaces = append(r.Interfaces, interfaceFromMap(sub))
				}
			}
		}
	}
	return r
}

// OpenReq asks a capture helper to open a source definition for capture.
type OpenReq struct {
	Seqno      uint32
	Definition string
}

func (r OpenReq) ToBody() map[int]any {
	return map[int]any{keySeqno: r.Seqno, keyDefinition: r.Definition}
}

func OpenReqFromBody(m map[int]any) OpenReq {
	return OpenReq{Seqno: uint32(uint64Field(m, keySeqno)), Definition: stringField(m, keyDefinition)}
}

// OpenReport answers an OpenReq with the opened source's identity and
// capture parameters.
type OpenReport struct {
	Seqno   uint32
	Success bool
	Message string
	UUID    string
	DLT     int
	Capif   string
	HW      string
	Channel string
	ChanHop *ChanHop
}

func (r OpenReport) ToBody() map[int]any {
	m := map[int]any{
		keySeqno: r.Seqno, keySuccess: r.Success, keyMsg: r.Message,
		keyUUIDTop: r.UUID, keyDLT: r.DLT, keyCapiface: r.Capif,
		keyHW: r.HW, keyChannel: r.Channel,
	}
	if r.ChanHop != nil {
		m[keyChanHop] = r.ChanHop.toMap()
	}
	return m
}

func OpenReportFromBody(m map[int]any) OpenReport {
	r := OpenReport{
		Seqno: uint32(uint64Field(m, keySeqno)), Success: boolField(m, keySuccess),
		Message: stringField(m, keyMsg), UUID: stringField(m, keyUUIDTop),
		DLT: intField(m, keyDLT), Capif: stringField(m, keyCapiface),
		HW: stringField(m, keyHW), Channel: stringField(m, keyChannel),
	}
	if sub, ok := subMap(m, keyChanHop); ok {
		ch := chanHopFromMap(sub)
		r.ChanHop = &ch
	}
	return r
}

// ConfigReq reconfigures a running source: channel, channel-hop
// parameters, or both.
type ConfigReq struct {
	Seqno   uint32
	Channel string
	ChanHop *ChanHop
}

func (r ConfigReq) ToBody() map[int]any {
	m := map[int]any{keySeqno: r.Seqno, keyChannel: r.Channel}
	if r.ChanHop != nil {
		m[keyChanHop] = r.ChanHop.toMap()
	}
	return m
}

func ConfigReqFromBody(m map[int]any) ConfigReq {
	r := ConfigReq{Seqno: uint32(uint64Field(m, keySeqno)), Channel: stringField(m, keyChannel)}
	if sub, ok := subMap(m, keyChanHop); ok {
		ch := chanHopFromMap(sub)
		r.ChanHop = &ch
	}
	return r
}

// ConfigReport answers a ConfigReq.
type ConfigReport struct {
	Seqno   uint32
	Success bool
	Message string
	Channel string
	ChanHop *ChanHop
}

func (r ConfigReport) ToBody() map[int]any {
	m := map[int]any{
		keySeqno: r.Seqno, keySuccess: r.Success, keyMsg: r.Message,
		keyChannel: r.Channel,
	}
	if r.ChanHop != nil {
		m[keyChanHop] = r.ChanHop.toMap()
	}
	return m
}

func ConfigReportFromBody(m map[int]any) ConfigReport {
	r := ConfigReport{
		Seqno: uint32(uint64Field(m, keySeqno)), Success: boolField(m, keySuccess),
		Message: stringField(m, keyMsg), Channel: stringField(m, keyChannel),
	}
	if sub, ok := subMap(m, keyChanHop); ok {
		ch := chanHopFromMap(sub)
		r.ChanHop = &ch
	}
	return r
}

// PacketMsg is the KDS_PACKET datagram: a captured frame plus its
// attached GPS, signal, and JSON sub-blocks.
type PacketMsg struct {
	Packet Packet
	GPS    *GPS
	Signal *Signal
	JSON   *JSONSidecar
}

func (p PacketMsg) ToBody() map[int]any {
	m := p.Packet.toMap()
	if p.GPS != nil {
		m[keyGPSBlock] = p.GPS.toMap()
	}
	if p.Signal != nil {
		m[keySignalBlock] = p.Signal.toMap()
	}
	if p.JSON != nil {
		m[keyJSONBlock] = p.JSON.toMap()
	}
	return m
}

func PacketMsgFromBody(m map[int]any) PacketMsg {
	p := PacketMsg{Packet: packetFromMap(m)}
	if sub, ok := subMap(m, keyGPSBlock); ok {
		gps := gpsFromMap(sub)
		p.GPS = &gps
	}
	if sub, ok := subMap(m, keySignalBlock); ok {
		sig := signalFromMap(sub)
		p.Signal = &sig
	}
	if sub, ok := subMap(m, keyJSONBlock); ok {
		js := jsonSidecarFromMap(sub)
		p.JSON = &js
	}
	return p
}

func subMap(m map[int]any, key int) (map[int]any, bool) {
	v, ok := m[key]
	if !ok {
		return nil, false
	}
	return toIntKeyedMap(v)
}

func toIntKeyedMap(v any) (map[int]any, bool) {
	switch t := v.(type) {
	case map[int]any:
		return t, true
	case map[any]any:
		out := make(map[int]any, len(t))
		for k, val := range t {
			ik, err := toIntKey(k)
			if err != nil {
				return nil, false
			}
			out[ik] = val
		}
		return out, true
	}
	return nil, false
}
