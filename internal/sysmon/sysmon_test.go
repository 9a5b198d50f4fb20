package sysmon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kismetcore/kismet/internal/eventbus"
)

type fakeBattery struct{ percent int; charging bool }

func (f fakeBattery) ReadBattery() (int, bool, bool) { return f.percent, f.charging, true }

type fakeSensors struct{}

func (fakeSensors) ReadSensors() (map[string]float64, error) {
	return map[string]float64{"coretemp-isa-0000": 55.0}, nil
}

func TestMonitorPublishesBatteryWhenReaderPresent(t *testing.T) {
	bus := eventbus.New(8)
	defer bus.Close()

	got := make(chan eventbus.Event, 1)
	bus.RegisterListener([]string{BatteryChannel}, func(e eventbus.Event) { got <- e })

	m := New(bus, fakeBattery{percent: 80, charging: true}, nil)
	m.sample()

	select {
	case e := <-got:
		require.Equal(t, 80, e.Fields["percent"])
		require.Equal(t, true, e.Fields["charging"])
	case <-time.After(time.Second):
		t.Fatal("battery event never published")
	}
}

func TestMonitorSkipsBatteryWhenReaderAbsent(t *testing.T) {
	bus := eventbus.New(8)
	defer bus.Close()

	got := make(chan eventbus.Event, 1)
	bus.RegisterListener([]string{BatteryChannel}, func(e eventbus.Event) { got <- e })

	m := New(bus, nil, nil)
	m.sample()

	select {
	case <-got:
		t.Fatal("battery event published with no reader")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMonitorPublishesStatsWithSensorReadings(t *testing.T) {
	bus := eventbus.New(8)
	defer bus.Close()

	got := make(chan eventbus.Event, 1)
	bus.RegisterListener([]string{StatsChannel}, func(e eventbus.Event) { got <- e })

	m := New(bus, nil, fakeSensors{})
	m.sample()

	select {
	case e := <-got:
		sensors, ok := e.Fields["sensors"].(map[string]float64)
		require.True(t, ok)
		require.Equal(t, 55.0, sensors["coretemp-isa-0000"])
	case <-time.After(time.Second):
		t.Fatal("stats event never published")
	}
}

func TestMonitorStartStopDoesNotHang(t *testing.T) {
	m := New(nil, nil, nil)
	m.Start()
	m.Stop()
}

func TestSnapshotReflectsSampledRSS(t *testing.T) {
	m := New(nil, nil, nil)
	m.sample()
	snap := m.Snapshot()
	require.Contains(t, snap, "rss_bytes_last")
}
