// Package config loads the core's tunable knobs: alert rate limits,
// kismetdb logging options, packet chain sizing, and system-snapshot
// tags. Fields are optional pointers so a partial JSON config only
// overrides what it names; everything else falls back to the documented
// default via a Get* accessor.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// AlertDefinition is one entry of the `alert` multi-value config key:
// "name,unit_rate,burst_rate".
type AlertDefinition struct {
	Name      string
	UnitRate  int
	BurstRate int
}

// TuningConfig holds every optional knob listed in the configuration
// reference; fields left nil take their documented default.
type TuningConfig struct {
	AlertBacklog *int              `json:"alertbacklog,omitempty"`
	Alerts       []AlertDefinition `json:"alert,omitempty"`

	KisLogPackets             *bool   `json:"kis_log_packets,omitempty"`
	KisLogDuplicatePackets    *bool   `json:"kis_log_duplicate_packets,omitempty"`
	KisLogDataPackets         *bool   `json:"kis_log_data_packets,omitempty"`
	KisLogPacketTimeout       *int    `json:"kis_log_packet_timeout,omitempty"`
	KisLogDeviceTimeout       *int    `json:"kis_log_device_timeout,omitempty"`
	KisLogAlertTimeout        *int    `json:"kis_log_alert_timeout,omitempty"`
	KisLogMessageTimeout      *int    `json:"kis_log_message_timeout,omitempty"`
	KisLogSnapshotTimeout     *int    `json:"kis_log_snapshot_timeout,omitempty"`
	KisLogEphemeralDangerous  *bool   `json:"kis_log_ephemeral_dangerous,omitempty"`
	KisLogDeviceFilterDefault *bool   `json:"kis_log_device_filter_default,omitempty"`
	KisLogDeviceFilter        *string `json:"kis_log_device_filter,omitempty"`
	KisLogPacketFilterDefault *bool   `json:"kis_log_packet_filter_default,omitempty"`
	KisLogPacketFilter        *string `json:"kis_log_packet_filter,omitempty"`

	KismetPacketThreads *int `json:"kismet_packet_threads,omitempty"`
	PacketBacklogLimit  *int `json:"packet_backlog_limit,omitempty"`
	PacketLogWarning    *int `json:"packet_log_warning,omitempty"`

	ServerName        *string `json:"server_name,omitempty"`
	ServerDescription *string `json:"server_description,omitempty"`
	ServerLocation    *string `json:"server_location,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with every field unset, so
// every Get* accessor returns its documented default.
func EmptyTuningConfig() *TuningConfig { return &TuningConfig{} }

const maxConfigFileSize = 1 * 1024 * 1024

// LoadTuningConfig reads and validates a JSON tuning config from path.
// Fields omitted from the file keep their default values.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config: file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("config: stat %s: %w", cleanPath, err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config: %s too large (%d bytes, max %d)", cleanPath, info.Size(), maxConfigFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", cleanPath, err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", cleanPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid %s: %w", cleanPath, err)
	}
	return cfg, nil
}

// Validate rejects out-of-range or unparsable values.
func (c *TuningConfig) Validate() error {
	if c.AlertBacklog != nil && *c.AlertBacklog < 0 {
		return fmt.Errorf("alertbacklog must be non-negative, got %d", *c.AlertBacklog)
	}
	if c.PacketBacklogLimit != nil && *c.PacketBacklogLimit <= 0 {
		return fmt.Errorf("packet_backlog_limit must be positive, got %d", *c.PacketBacklogLimit)
	}
	if c.KismetPacketThreads != nil && *c.KismetPacketThreads < 0 {
		return fmt.Errorf("kismet_packet_threads must be non-negative, got %d", *c.KismetPacketThreads)
	}
	for _, a := range c.Alerts {
		if a.Name == "" {
			return fmt.Errorf("alert definition missing name")
		}
		if a.UnitRate < 0 || a.BurstRate < 0 {
			return fmt.Errorf("alert %q: unit_rate and burst_rate must be non-negative", a.Name)
		}
	}
	return nil
}

// GetAlertBacklog returns the configured alert backlog size, default 50.
func (c *TuningConfig) GetAlertBacklog() int {
	if c.AlertBacklog == nil {
		return 50
	}
	return *c.AlertBacklog
}

// GetKisLogPackets returns whether the packet writer is enabled, default true.
func (c *TuningConfig) GetKisLogPackets() bool {
	if c.KisLogPackets == nil {
		return true
	}
	return *c.KisLogPackets
}

// GetKisLogDuplicatePackets returns whether duplicate packets are logged, default false.
func (c *TuningConfig) GetKisLogDuplicatePackets() bool {
	if c.KisLogDuplicatePackets == nil {
		return false
	}
	return *c.KisLogDuplicatePackets
}

// GetKisLogDataPackets returns whether non-management packets are logged, default true.
func (c *TuningConfig) GetKisLogDataPackets() bool {
	if c.KisLogDataPackets == nil {
		return true
	}
	return *c.KisLogDataPackets
}

// GetKisLogPacketTimeout returns the packets retention window; 0 means forever.
func (c *TuningConfig) GetKisLogPacketTimeout() time.Duration {
	return durationSeconds(c.KisLogPacketTimeout, 0)
}

// GetKisLogDeviceTimeout returns the devices retention window; 0 means forever.
func (c *TuningConfig) GetKisLogDeviceTimeout() time.Duration {
	return durationSeconds(c.KisLogDeviceTimeout, 0)
}

// GetKisLogAlertTimeout returns the alerts retention window; 0 means forever.
func (c *TuningConfig) GetKisLogAlertTimeout() time.Duration {
	return durationSeconds(c.KisLogAlertTimeout, 0)
}

// GetKisLogMessageTimeout returns the messages retention window; 0 means forever.
func (c *TuningConfig) GetKisLogMessageTimeout() time.Duration {
	return durationSeconds(c.KisLogMessageTimeout, 0)
}

// GetKisLogSnapshotTimeout returns the snapshots retention window; 0 means forever.
func (c *TuningConfig) GetKisLogSnapshotTimeout() time.Duration {
	return durationSeconds(c.KisLogSnapshotTimeout, 0)
}

func durationSeconds(v *int, def int) time.Duration {
	if v == nil {
		return time.Duration(def) * time.Second
	}
	return time.Duration(*v) * time.Second
}

// GetKisLogEphemeralDangerous returns whether the log file is unlinked
// immediately after opening, default false.
func (c *TuningConfig) GetKisLogEphemeralDangerous() bool {
	if c.KisLogEphemeralDangerous == nil {
		return false
	}
	return *c.KisLogEphemeralDangerous
}

// GetKismetPacketThreads returns the worker pool size; 0 means the
// caller should fall back to hardware concurrency.
func (c *TuningConfig) GetKismetPacketThreads() int {
	if c.KismetPacketThreads == nil {
		return 0
	}
	return *c.KismetPacketThreads
}

// GetPacketBacklogLimit returns the per-worker backlog queue depth, default 8192.
func (c *TuningConfig) GetPacketBacklogLimit() int {
	if c.PacketBacklogLimit == nil {
		return 8192
	}
	return *c.PacketBacklogLimit
}

// GetPacketLogWarning returns the queue-depth warning threshold, default 4096.
func (c *TuningConfig) GetPacketLogWarning() int {
	if c.PacketLogWarning == nil {
		return 4096
	}
	return *c.PacketLogWarning
}

// GetServerName returns the configured server name, default "kismet".
func (c *TuningConfig) GetServerName() string {
	if c.ServerName == nil || *c.ServerName == "" {
		return "kismet"
	}
	return *c.ServerName
}

// GetServerDescription returns the configured server description, default empty.
func (c *TuningConfig) GetServerDescription() string {
	if c.ServerDescription == nil {
		return ""
	}
	return *c.ServerDescription
}

// GetServerLocation returns the configured server location, default empty.
func (c *TuningConfig) GetServerLocation() string {
	if c.ServerLocation == nil {
		return ""
	}
	return *c.ServerLocation
}

// GetKisLogDeviceFilterDefault returns the device filter's default policy
// (true blocks), default false (allow unless explicitly blocked).
func (c *TuningConfig) GetKisLogDeviceFilterDefault() bool {
	if c.KisLogDeviceFilterDefault == nil {
		return false
	}
	return *c.KisLogDeviceFilterDefault
}

// GetKisLogPacketFilterDefault returns the packet filter's default policy
// (true blocks), default false (allow unless explicitly blocked).
func (c *TuningConfig) GetKisLogPacketFilterDefault() bool {
	if c.KisLogPacketFilterDefault == nil {
		return false
	}
	return *c.KisLogPacketFilterDefault
}
