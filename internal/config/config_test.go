package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
device:
  type: socket
  host: alarmdecoder.local
  port: 10001
mqtt:
  host: broker.local
  username: ad2
  password: secret
  retain: true
zones:
  - address: 18
    channel: 0
    zone: 41
rf_sensors:
  - serial: "0180036"
    loops: [10, 11]
fault_window: 45
log: debug
cache: true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "socket", cfg.Device.Type)
	assert.Equal(t, "alarmdecoder.local", cfg.Device.Host)
	assert.Equal(t, 10001, cfg.Device.Port)
	assert.Equal(t, "broker.local", cfg.MQTT.Host)
	assert.True(t, cfg.MQTT.Retain)
	require.Len(t, cfg.Zones, 1)
	assert.Equal(t, 41, cfg.Zones[0].Zone)
	require.Len(t, cfg.RFSensors, 1)
	assert.Equal(t, "0180036", cfg.RFSensors[0].Serial)
	assert.Equal(t, []int{10, 11}, cfg.RFSensors[0].Loops)
	assert.Equal(t, 45, cfg.FaultWindow)
	assert.Equal(t, "debug", cfg.Log)
	assert.True(t, cfg.Cache)
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
device:
  path: /dev/ttyUSB0
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "serial", cfg.Device.Type)
	assert.Equal(t, 19200, cfg.Device.Baudrate)
	assert.Equal(t, "localhost", cfg.MQTT.Host)
	assert.Equal(t, 1883, cfg.MQTT.Port)
	assert.Equal(t, "ad2mqtt", cfg.MQTT.ClientID)
	assert.Equal(t, "ad2mqtt", cfg.MQTT.Prefix)
	assert.Equal(t, 60, cfg.MQTT.Keepalive)
	assert.Equal(t, 30, cfg.FaultWindow)
	assert.Equal(t, "info", cfg.Log)
	assert.False(t, cfg.Cache)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestLoadConfigBadYAML(t *testing.T) {
	path := writeConfig(t, "device: [not: valid")

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
