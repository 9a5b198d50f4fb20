package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmptyTuningConfigUsesDocumentedDefaults(t *testing.T) {
	c := EmptyTuningConfig()
	require.Equal(t, 50, c.GetAlertBacklog())
	require.True(t, c.GetKisLogPackets())
	require.False(t, c.GetKisLogDuplicatePackets())
	require.True(t, c.GetKisLogDataPackets())
	require.Equal(t, int64(0), int64(c.GetKisLogPacketTimeout().Seconds()))
	require.False(t, c.GetKisLogEphemeralDangerous())
	require.Equal(t, 0, c.GetKismetPacketThreads())
	require.Equal(t, 8192, c.GetPacketBacklogLimit())
	require.Equal(t, 4096, c.GetPacketLogWarning())
	require.Equal(t, "kismet", c.GetServerName())
	require.Equal(t, "", c.GetServerDescription())
}

func TestLoadTuningConfigOverridesOnlyNamedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kismet.json")

	body, err := json.Marshal(map[string]any{
		"alertbacklog":         100,
		"kis_log_packets":      false,
		"server_name":          "mobile-sensor-1",
		"kis_log_packet_timeout": 3600,
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, body, 0o644))

	cfg, err := LoadTuningConfig(path)
	require.NoError(t, err)
	require.Equal(t, 100, cfg.GetAlertBacklog())
	require.False(t, cfg.GetKisLogPackets())
	require.Equal(t, "mobile-sensor-1", cfg.GetServerName())
	require.Equal(t, int64(3600), int64(cfg.GetKisLogPacketTimeout().Seconds()))

	// Untouched fields keep their defaults.
	require.True(t, cfg.GetKisLogDataPackets())
	require.Equal(t, 8192, cfg.GetPacketBacklogLimit())
}

func TestLoadTuningConfigRejectsNonJSONExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kismet.conf")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	_, err := LoadTuningConfig(path)
	require.Error(t, err)
}

func TestLoadTuningConfigRejectsOversizedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kismet.json")

	big := make([]byte, maxConfigFileSize+1)
	for i := range big {
		big[i] = ' '
	}
	require.NoError(t, os.WriteFile(path, big, 0o644))

	_, err := LoadTuningConfig(path)
	require.Error(t, err)
}

func TestLoadTuningConfigRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kismet.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"packet_backlog_limit": -1}`), 0o644))

	_, err := LoadTuningConfig(path)
	require.Error(t, err)
}

func TestValidateRejectsAlertDefinitionMissingName(t *testing.T) {
	c := EmptyTuningConfig()
	c.Alerts = []AlertDefinition{{Name: "", UnitRate: 1, BurstRate: 1}}
	require.Error(t, c.Validate())
}

func TestValidateAcceptsWellFormedAlertDefinition(t *testing.T) {
	c := EmptyTuningConfig()
	c.Alerts = []AlertDefinition{{Name: "APSPOOF", UnitRate: 10, BurstRate: 5}}
	require.NoError(t, c.Validate())
}
