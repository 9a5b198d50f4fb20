// Package alerttracker implements rate-limited alert registration and
// firing: an alert definition names a sustained-rate window and a finer
// burst window, and raising an alert beyond either window's budget is
// silently suppressed rather than queued.
package alerttracker

import (
	"fmt"
	"sync"
	"time"

	"github.com/kismetcore/kismet/internal/eventbus"
	"github.com/kismetcore/kismet/internal/packetchain"
)

// Severity levels, ordered least to most urgent.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// RefID identifies a registered alert definition.
type RefID int

// AlertChannel is the eventbus channel alerts are published on.
const AlertChannel = "ALERTRACKER_NEW_ALERT"

// definition is one registered alert's rate-limit state and identity.
type definition struct {
	ref      RefID
	header   string
	class    string
	severity Severity
	desc     string
	phyID    int

	limitUnit time.Duration
	limitRate int
	burstUnit time.Duration
	burstLimit int

	mu        sync.Mutex
	timeLast  time.Time
	burstSent int
	totalSent int
}

// Record is an immutable, already-raised alert.
type Record struct {
	Header                          string
	Class                           string
	Severity                        Severity
	PhyID                           int
	Time                            time.Time
	BSSID, Source, Dest, Other      string
	Channel                         string
	Text                            string
	GPS                             *packetchain.GPSInfo
}

// Tracker manages alert definitions and a bounded backlog of raised
// alerts.
type Tracker struct {
	mu       sync.Mutex
	byRef    map[RefID]*definition
	byHeader map[string]RefID
	nextRef  RefID

	backlog    []Record
	backlogCap int

	bus *eventbus.Bus
}

// New constructs a Tracker with the given backlog capacity (the
// "alertbacklog" config key; 50 matches the original's default).
func New(bus *eventbus.Bus, backlogCap int) *Tracker {
	if backlogCap <= 0 {
		backlogCap = 50
	}
	return &Tracker{
		byRef:      make(map[RefID]*definition),
		byHeader:   make(map[string]RefID),
		backlogCap: backlogCap,
		bus:        bus,
	}
}

// RegisterAlert assigns a dense ref id to a new alert definition, or
// returns the existing ref if header is already registered. burstUnit
// must not exceed limitUnit (the burst window must be finer than, or
// equal to, the sustained window).
func (t *Tracker) RegisterAlert(header, class string, severity Severity, desc string,
	limitUnit time.Duration, limitRate int, burstUnit time.Duration, burstLimit int, phyID int) (RefID, error) {

	if burstUnit > limitUnit {
		return 0, fmt.Errorf("alerttracker: burst_unit (%s) must not exceed limit_unit (%s) for alert %q", burstUnit, limitUnit, header)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if ref, ok := t.byHeader[header]; ok {
		return ref, nil
	}

	t.nextRef++
	ref := t.nextRef
	t.byRef[ref] = &definition{
		ref: ref, header: header, class: class, severity: severity, desc: desc, phyID: phyID,
		limitUnit: limitUnit, limitRate: limitRate, burstUnit: burstUnit, burstLimit: burstLimit,
	}
	t.byHeader[header] = ref
	return ref, nil
}

// FetchRef looks up a registered alert's ref by header name.
func (t *Tracker) FetchRef(header string) (RefID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ref, ok := t.byHeader[header]
	return ref, ok
}

func (t *Tracker) lookup(ref RefID) (*definition, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.byRef[ref]
	return d, ok
}

// checkTimes reports whether firing is currently permitted, and resets
// the definition's counters as a side effect exactly as the C++ original
// does: a full reset when outside the sustained window, a burst-only
// reset when outside the burst window but still inside the sustained one.
func checkTimes(d *definition, now time.Time) bool {
	if d.limitRate == 0 {
		return true
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timeLast.Before(now.Add(-d.limitUnit)) {
		d.totalSent = 0
		d.burstSent = 0
		return true
	}

	if d.timeLast.Before(now.Add(-d.burstUnit)) {
		d.burstSent = 0
	}

	return d.burstSent < d.burstLimit && d.totalSent < d.limitRate
}

// PotentialAlert reports whether raising ref right now would be allowed,
// without consuming any of its rate budget.
func (t *Tracker) PotentialAlert(ref RefID) bool {
	d, ok := t.lookup(ref)
	if !ok {
		return false
	}
	return checkTimes(d, time.Now())
}

// AlertByHeader satisfies packetchain.AlertRaiser: it lazily registers an
// ad-hoc alert under header on first use, with a conservative default rate
// limit (1/sec sustained, 1/sec burst), then raises it. Callers that need
// a tuned rate limit should RegisterAlert header themselves beforehand.
func (t *Tracker) AlertByHeader(header, text string) {
	ref, ok := t.FetchRef(header)
	if !ok {
		var err error
		ref, err = t.RegisterAlert(header, "packetchain", SeverityMedium, text, time.Second, 1, time.Second, 1, -1)
		if err != nil {
			return
		}
	}
	_, _ = t.RaiseAlert(ref, nil, "", "", "", "", "", text)
}

// RaiseAlert fires ref if its rate limit allows, appending to the bounded
// backlog and publishing to the alert event channel. It returns false
// (without error) if the alert was suppressed by its rate limit.
func (t *Tracker) RaiseAlert(ref RefID, pkt *packetchain.Packet, bssid, source, dest, other, channel, text string) (bool, error) {
	d, ok := t.lookup(ref)
	if !ok {
		return false, fmt.Errorf("alerttracker: unknown alert ref %d", ref)
	}

	now := time.Now()
	if !checkTimes(d, now) {
		return false, nil
	}

	d.mu.Lock()
	d.burstSent++
	d.totalSent++
	d.timeLast = now
	d.mu.Unlock()

	rec := Record{
		Header: d.header, Class: d.class, Severity: d.severity, PhyID: d.phyID,
		Time: now, BSSID: bssid, Source: source, Dest: dest, Other: other,
		Channel: channel, Text: text,
	}

	t.mu.Lock()
	t.backlog = append(t.backlog, rec)
	if len(t.backlog) > t.backlogCap {
		t.backlog = t.backlog[len(t.backlog)-t.backlogCap:]
	}
	t.mu.Unlock()

	if t.bus != nil {
		t.bus.Publish(eventbus.Event{Channel: AlertChannel, Fields: map[string]any{"alert": rec}})
	}

	if pkt != nil {
		pkt.SetComponent(packetchain.ComponentMetadata, rec)
	}

	return true, nil
}

// Backlog returns a snapshot of the most recently raised alerts, oldest
// first.
func (t *Tracker) Backlog() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, len(t.backlog))
	copy(out, t.backlog)
	return out
}
