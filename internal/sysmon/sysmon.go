// Package sysmon periodically samples host resource usage (RSS, battery,
// thermal sensors) into RRDs and publishes TIMESTAMP, BATTERY, and STATS
// events, the way kismet's system monitor thread does.
package sysmon

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kismetcore/kismet/internal/eventbus"
	"github.com/kismetcore/kismet/internal/monitoring"
	"github.com/kismetcore/kismet/internal/rrd"
)

const (
	TimestampChannel = "TIMESTAMP"
	BatteryChannel   = "BATTERY"
	StatsChannel     = "STATS"
)

const sampleInterval = time.Second

// BatteryReader reports battery state; implementations return ok=false
// when no battery is present.
type BatteryReader interface {
	ReadBattery() (percent int, charging bool, ok bool)
}

// SensorReader reports one lm-sensors-style chip reading.
type SensorReader interface {
	// ReadSensors returns a chip name -> value (temp in C, fan in RPM) map.
	ReadSensors() (map[string]float64, error)
}

// Monitor owns the RRDs fed by the periodic sample loop.
type Monitor struct {
	bus *eventbus.Bus

	battery BatteryReader
	sensors SensorReader

	mu          sync.Mutex
	rssRRD      *rrd.RRD
	thermalRRD  *rrd.RRD

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs a Monitor. battery and sensors may be nil when the host
// has neither; Monitor treats that as "feature absent", not an error.
func New(bus *eventbus.Bus, battery BatteryReader, sensors SensorReader) *Monitor {
	return &Monitor{
		bus:        bus,
		battery:    battery,
		sensors:    sensors,
		rssRRD:     rrd.New(rrd.DefaultAggregator{}),
		thermalRRD: rrd.New(rrd.DefaultAggregator{}),
		stopCh:     make(chan struct{}),
	}
}

// Start begins the once-per-second sample loop.
func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.loop()
}

// Stop halts the sample loop and waits for it to exit.
func (m *Monitor) Stop() {
	close(m.stopCh)
	m.wg.Wait()
}

func (m *Monitor) loop() {
	defer m.wg.Done()
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sample()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Monitor) sample() {
	now := time.Now()

	rss, err := readSelfRSS()
	if err != nil {
		monitoring.Logf("sysmon: read rss: %v", err)
	} else {
		m.mu.Lock()
		m.rssRRD.AddSample(float64(rss), now.Unix())
		m.mu.Unlock()
	}

	if m.bus != nil {
		m.bus.Publish(eventbus.Event{Channel: TimestampChannel, Fields: map[string]any{"time": now}})
	}

	if m.battery != nil {
		if percent, charging, ok := m.battery.ReadBattery(); ok && m.bus != nil {
			m.bus.Publish(eventbus.Event{Channel: BatteryChannel, Fields: map[string]any{
				"percent": percent, "charging": charging,
			}})
		}
	}

	var sensorReadings map[string]float64
	if m.sensors != nil {
		readings, err := m.sensors.ReadSensors()
		if err != nil {
			monitoring.Logf("sysmon: read sensors: %v", err)
		} else {
			sensorReadings = readings
		}
	}

	thermalC, thermalOK := readThermalZone0()
	if thermalOK {
		m.mu.Lock()
		m.thermalRRD.AddSample(thermalC, now.Unix())
		m.mu.Unlock()
	}

	if m.bus != nil {
		fields := map[string]any{"rss_bytes": rss}
		if sensorReadings != nil {
			fields["sensors"] = sensorReadings
		}
		if thermalOK {
			fields["thermal_zone0_c"] = thermalC
		}
		m.bus.Publish(eventbus.Event{Channel: StatsChannel, Fields: fields})
	}
}

// RSSRRD exposes the RSS-over-time RRD for snapshot serialization.
func (m *Monitor) RSSRRD() *rrd.RRD {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rssRRD
}

// ThermalRRD exposes the thermal-zone-0-over-time RRD for snapshot
// serialization.
func (m *Monitor) ThermalRRD() *rrd.RRD {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.thermalRRD
}

// Snapshot returns a serializable view of the monitor's current RRDs,
// for the one-shot SYSTEM snapshot written when a kismetdb log opens.
func (m *Monitor) Snapshot() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]any{
		"rss_bytes_last":     m.rssRRD.LastValue(),
		"thermal_zone0_last": m.thermalRRD.LastValue(),
	}
}

// readSelfRSS reads the resident set size, in bytes, from
// /proc/self/stat field 24 (rss, in pages).
func readSelfRSS() (int64, error) {
	f, err := os.Open("/proc/self/stat")
	if err != nil {
		return 0, fmt.Errorf("open /proc/self/stat: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	if !scanner.Scan() {
		return 0, fmt.Errorf("read /proc/self/stat: %w", scanner.Err())
	}

	// Field 2 (comm) may itself contain spaces inside parens; split after
	// the closing paren to keep the fixed-width fields after it aligned.
	line := scanner.Text()
	idx := strings.LastIndex(line, ")")
	if idx < 0 {
		return 0, fmt.Errorf("malformed /proc/self/stat")
	}
	fields := strings.Fields(line[idx+1:])
	const rssFieldAfterComm = 21 // field 24 overall, 0-indexed after comm's closing paren
	if len(fields) <= rssFieldAfterComm {
		return 0, fmt.Errorf("malformed /proc/self/stat: too few fields")
	}
	pages, err := strconv.ParseInt(fields[rssFieldAfterComm], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse rss field: %w", err)
	}
	return pages * int64(os.Getpagesize()), nil
}

// readThermalZone0 reads the primary thermal zone's temperature, in
// degrees Celsius. It returns ok=false rather than an error when the
// path doesn't exist, since many hosts simply lack the zone.
func readThermalZone0() (celsius float64, ok bool) {
	data, err := os.ReadFile("/sys/class/thermal/thermal_zone0/temp")
	if err != nil {
		return 0, false
	}
	milliC, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, false
	}
	return float64(milliC) / 1000, true
}
