package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ad2mqtt/internal/ad2"
	"ad2mqtt/internal/cache"
	"ad2mqtt/internal/config"
	"ad2mqtt/internal/device"
	"ad2mqtt/internal/log"
	"ad2mqtt/internal/mqtt"
)

func main() {
	configFile := flag.String("config", "config.yml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	logger := log.NewLogger(cfg.Log)

	// Create device
	var dev device.Device
	switch cfg.Device.Type {
	case "socket":
		dev = device.NewSocketDevice(cfg.Device.Host, cfg.Device.Port, logger)
	case "serial":
		dev = device.NewSerialDevice(cfg.Device.Path, cfg.Device.Baudrate, logger)
	default:
		logger.Error("Unknown device type: %s", cfg.Device.Type)
		os.Exit(1)
	}

	// Create decoder session
	decoder := ad2.New(dev, logger)
	decoder.SetFaultWindow(time.Duration(cfg.FaultWindow) * time.Second)
	applyZoneMappings(decoder.Tracker(), cfg, logger)

	// Load cache if enabled
	if cfg.Cache {
		cacheData, err := cache.LoadCache()
		if err != nil {
			logger.Warning("Failed to load cache: %v", err)
		} else if cacheData != nil {
			decoder.SetAdapterInfo(cacheData.Adapter)
			logger.Info("Loaded adapter identity from cache")
		}
	}

	// Create MQTT client
	mqttClient := mqtt.NewMQTT(&cfg.MQTT, decoder, logger)

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Subscribe the bridge before opening so no events are missed
	mqttClient.Start()

	// Open the adapter session
	if err := decoder.Open(true); err != nil {
		logger.Error("Failed to open adapter: %v", err)
		os.Exit(1)
	}

	// Connect to MQTT broker
	if err := mqttClient.Connect(); err != nil {
		logger.Error("Failed to connect to MQTT broker: %v", err)
		decoder.Close()
		os.Exit(1)
	}

	// Save cache if enabled
	if cfg.Cache {
		if err := cache.SaveCache(decoder.AdapterInfo()); err != nil {
			logger.Warning("Failed to save cache: %v", err)
		} else {
			logger.Info("Saved adapter identity to cache")
		}
	}

	// Wait for termination signal
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down...")
	mqttClient.Close()
	decoder.Close()
}

// applyZoneMappings installs the deployment's expander and RF sensor
// zone mappings on the tracker. Configured expander pairs take priority;
// unconfigured pairs fall back to the contiguous-bank derivation.
func applyZoneMappings(tracker *ad2.Tracker, cfg *config.Config, logger *log.Logger) {
	if len(cfg.Zones) > 0 {
		mapped := make(map[[2]int]int, len(cfg.Zones))
		for _, z := range cfg.Zones {
			mapped[[2]int{z.Address, z.Channel}] = z.Zone
		}
		tracker.SetExpanderMapper(func(address, channel int) (int, bool) {
			if zone, ok := mapped[[2]int{address, channel}]; ok {
				return zone, true
			}
			return address*8 + channel + 1, true
		})
	}

	for _, s := range cfg.RFSensors {
		var loops [4]int
		for i, zone := range s.Loops {
			if i >= len(loops) {
				logger.Warning("RF sensor %s has more than 4 loops, extras ignored", s.Serial)
				break
			}
			loops[i] = zone
		}
		tracker.AddRFSensor(s.Serial, loops)
	}
}
