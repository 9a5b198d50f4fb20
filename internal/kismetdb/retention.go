package kismetdb

import (
	"fmt"
	"time"

	"github.com/kismetcore/kismet/internal/monitoring"
)

// RetentionConfig holds the per-table retention windows as durations; a
// zero or negative value disables retention for that table.
type RetentionConfig struct {
	Packets   time.Duration
	Devices   time.Duration
	Data      time.Duration
	Alerts    time.Duration
	Messages  time.Duration
	Snapshots time.Duration
}

const (
	packetsRetentionTick = 15 * time.Second
	defaultRetentionTick = 60 * time.Second
)

// retentionTable names a table plus the timestamp column its retention
// DELETE filters on.
type retentionTable struct {
	name    string
	tsCol   string
	window  time.Duration
	tick    time.Duration
}

// RunRetention starts one goroutine per configured table, each issuing
// `DELETE FROM <table> WHERE <ts> < now - window` on its own ticker
// (packets every 15s, everything else every 60s, matching the original).
// It returns a stop function that halts every timer.
func (d *DB) RunRetention(cfg RetentionConfig) func() {
	tables := []retentionTable{
		{"packets", "ts_sec", cfg.Packets, packetsRetentionTick},
		{"devices", "last_time", cfg.Devices, defaultRetentionTick},
		{"data", "ts_sec", cfg.Data, defaultRetentionTick},
		{"alerts", "ts_sec", cfg.Alerts, defaultRetentionTick},
		{"messages", "ts_sec", cfg.Messages, defaultRetentionTick},
		{"snapshots", "ts_sec", cfg.Snapshots, defaultRetentionTick},
	}

	stopCh := make(chan struct{})
	for _, tbl := range tables {
		if tbl.window <= 0 {
			continue
		}
		go d.retentionLoop(tbl, stopCh)
	}
	return func() { close(stopCh) }
}

func (d *DB) retentionLoop(tbl retentionTable, stopCh <-chan struct{}) {
	ticker := time.NewTicker(tbl.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := d.purgeOlderThan(tbl); err != nil {
				monitoring.Logf("kismetdb: retention purge of %s failed: %v", tbl.name, err)
			}
		case <-stopCh:
			return
		}
	}
}

func (d *DB) purgeOlderThan(tbl retentionTable) error {
	cutoff := time.Now().Add(-tbl.window).Unix()
	query := fmt.Sprintf("DELETE FROM %s WHERE %s < ?", tbl.name, tbl.tsCol)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tx == nil {
		return fmt.Errorf("no open transaction")
	}
	_, err := d.tx.Exec(query, cutoff)
	return err
}
