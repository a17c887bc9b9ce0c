package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Device    DeviceConfig     `yaml:"device"`
	MQTT      MQTTConfig       `yaml:"mqtt"`
	Zones     []ZoneMapping    `yaml:"zones"`
	RFSensors []RFSensorConfig `yaml:"rf_sensors"`
	// FaultWindow is the number of seconds a zone fault stays active
	// without a refreshing report before it is considered restored.
	FaultWindow int    `yaml:"fault_window"`
	Log         string `yaml:"log"`
	Cache       bool   `yaml:"cache"`
}

type DeviceConfig struct {
	Type     string `yaml:"type"` // "serial" or "socket"
	Path     string `yaml:"path"` // serial port, e.g. /dev/ttyUSB0
	Baudrate int    `yaml:"baudrate"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
}

type MQTTConfig struct {
	ClientID  string `yaml:"client_id"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Keepalive int    `yaml:"keepalive"`
	Password  string `yaml:"password"`
	QOS       int    `yaml:"qos"`
	Retain    bool   `yaml:"retain"`
	Username  string `yaml:"username"`
	Prefix    string `yaml:"prefix"`
	Clean     bool   `yaml:"clean"`
}

// ZoneMapping ties an expander (address, channel) pair to a flat panel
// zone number. The derivation depends on deployed hardware topology, so
// it is configuration rather than a formula.
type ZoneMapping struct {
	Address int `yaml:"address"`
	Channel int `yaml:"channel"`
	Zone    int `yaml:"zone"`
}

// RFSensorConfig ties a wireless sensor serial number to the panel zones
// monitored by its loops. A zero entry means the loop is unused.
type RFSensorConfig struct {
	Serial string `yaml:"serial"`
	Loops  []int  `yaml:"loops"`
}

func LoadConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	// Set default values
	if config.Device.Type == "" {
		config.Device.Type = "serial"
	}
	if config.Device.Baudrate == 0 {
		config.Device.Baudrate = 19200
	}
	if config.Device.Port == 0 {
		config.Device.Port = 10000
	}
	if config.MQTT.ClientID == "" {
		config.MQTT.ClientID = "ad2mqtt"
	}
	if config.MQTT.Host == "" {
		config.MQTT.Host = "localhost"
	}
	if config.MQTT.Port == 0 {
		config.MQTT.Port = 1883
	}
	if config.MQTT.Keepalive == 0 {
		config.MQTT.Keepalive = 60
	}
	if config.MQTT.Prefix == "" {
		config.MQTT.Prefix = "ad2mqtt"
	}
	if config.FaultWindow == 0 {
		config.FaultWindow = 30
	}
	if config.Log == "" {
		config.Log = "info"
	}

	return &config, nil
}
