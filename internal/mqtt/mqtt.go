package mqtt

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"ad2mqtt/internal/ad2"
	"ad2mqtt/internal/config"
	"ad2mqtt/internal/log"
)

const (
	offlinePayload = "offline"
	onlinePayload  = "online"
)

// statusEvents are the decoder events that change the panel status
// snapshot; each one triggers a fresh snapshot publish alongside its
// own event topic.
var statusEvents = []string{
	ad2.EventArmed,
	ad2.EventDisarmed,
	ad2.EventPowerChanged,
	ad2.EventReadyChanged,
	ad2.EventAlarm,
	ad2.EventAlarmRestored,
	ad2.EventFire,
	ad2.EventBypass,
	ad2.EventLowBattery,
	ad2.EventPanic,
	ad2.EventChimeChanged,
}

// notifyEvents are published to their event topic without a status
// snapshot.
var notifyEvents = []string{
	ad2.EventBoot,
	ad2.EventConfigReceived,
	ad2.EventSendingReceived,
	ad2.EventLRRMessage,
	ad2.EventRFXMessage,
	ad2.EventAUIMessage,
}

// MQTT bridges decoder events onto an MQTT broker and keypad key
// presses back to the adapter.
type MQTT struct {
	config  *config.MQTTConfig
	decoder *ad2.Decoder
	log     *log.Logger
	client  mqtt.Client
	topics  *Topics
}

func NewMQTT(cfg *config.MQTTConfig, decoder *ad2.Decoder, logger *log.Logger) *MQTT {
	return &MQTT{
		config:  cfg,
		decoder: decoder,
		log:     logger,
		topics:  NewTopics(cfg.Prefix),
	}
}

func (m *MQTT) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", m.config.Host, m.config.Port))
	opts.SetClientID(m.config.ClientID)
	opts.SetUsername(m.config.Username)
	opts.SetPassword(m.config.Password)
	opts.SetCleanSession(m.config.Clean)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(m.onConnect)
	opts.SetConnectionLostHandler(m.onDisconnect)

	opts.SetWill(m.topics.Status(), offlinePayload, byte(m.config.QOS), m.config.Retain)

	m.client = mqtt.NewClient(opts)

	if token := m.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %v", token.Error())
	}

	m.log.Info("Connected to MQTT broker: %s:%d", m.config.Host, m.config.Port)
	return nil
}

func (m *MQTT) onConnect(client mqtt.Client) {
	m.log.Info("MQTT connection established")
	m.publish(m.topics.Status(), onlinePayload, true)
	m.subscribeKeys()
	m.publishPanelStatus()
}

func (m *MQTT) onDisconnect(client mqtt.Client, err error) {
	m.log.Error("MQTT connection lost: %v", err)
}

// Start subscribes the bridge to the decoder's events. Call before
// opening the decoder; the decoder drops all subscriptions on close.
func (m *MQTT) Start() {
	events := m.decoder.Events()

	for _, name := range statusEvents {
		events.Subscribe(name, func(e ad2.Event) {
			m.publish(m.topics.Event(e.Name), m.eventPayload(e), false)
			m.publishPanelStatus()
		})
	}

	for _, name := range notifyEvents {
		events.Subscribe(name, func(e ad2.Event) {
			m.publish(m.topics.Event(e.Name), m.eventPayload(e), false)
		})
	}

	events.Subscribe(ad2.EventZoneFault, func(e ad2.Event) {
		m.publishZone(e.Payload.(int), true)
	})
	events.Subscribe(ad2.EventZoneRestore, func(e ad2.Event) {
		m.publishZone(e.Payload.(int), false)
	})
	events.Subscribe(ad2.EventRelayChanged, func(e ad2.Event) {
		msg := e.Payload.(*ad2.ExpanderMessage)
		m.publish(m.topics.Relay(msg.Address, msg.Channel), map[string]interface{}{
			"address": msg.Address,
			"channel": msg.Channel,
			"value":   msg.Value,
		}, m.config.Retain)
	})
}

func (m *MQTT) subscribeKeys() {
	topic := m.topics.Keys()
	token := m.client.Subscribe(topic, byte(m.config.QOS), m.handleKeys)
	if token.Wait() && token.Error() != nil {
		m.log.Error("Failed to subscribe to topic %s: %v", topic, token.Error())
	} else {
		m.log.Debug("Subscribed to topic: %s", topic)
	}
}

// handleKeys passes published key presses through to the adapter.
func (m *MQTT) handleKeys(client mqtt.Client, msg mqtt.Message) {
	payload := string(msg.Payload())
	m.log.Debug("Received keys on %s", msg.Topic())
	if _, err := m.decoder.Send(payload); err != nil {
		m.log.Error("Failed to send keys to adapter: %v", err)
	}
}

func (m *MQTT) publishPanelStatus() {
	status := m.decoder.Status()
	info := m.decoder.AdapterInfo()

	payload := map[string]interface{}{
		"ready":           status.Ready,
		"armed_away":      status.ArmedAway,
		"armed_home":      status.ArmedHome,
		"chime_on":        status.ChimeOn,
		"ac_power":        status.ACPower,
		"battery_low":     status.BatteryLow,
		"fire_alarm":      status.FireAlarm,
		"alarm_occurring": status.AlarmOccurring,
		"panic":           status.Panic,
		"serial_number":   info.SerialNumber,
		"firmware":        info.Version,
	}
	m.publish(m.topics.Panel(), payload, true)
}

func (m *MQTT) publishZone(zone int, faulted bool) {
	state := "restore"
	if faulted {
		state = "fault"
	}
	m.publish(m.topics.Zone(zone), map[string]interface{}{
		"zone":   zone,
		"status": state,
	}, m.config.Retain)
}

// eventPayload flattens an event payload into something JSON-friendly;
// message payloads are reduced to their raw line.
func (m *MQTT) eventPayload(e ad2.Event) interface{} {
	switch p := e.Payload.(type) {
	case ad2.Message:
		return map[string]interface{}{"event": e.Name, "raw": p.Base().Raw}
	case nil:
		return map[string]interface{}{"event": e.Name}
	default:
		return map[string]interface{}{"event": e.Name, "payload": p}
	}
}

func (m *MQTT) publish(topic string, message interface{}, retain bool) {
	payload, err := json.Marshal(message)
	if err != nil {
		m.log.Error("Failed to marshal message for topic %s: %v", topic, err)
		return
	}

	token := m.client.Publish(topic, byte(m.config.QOS), retain, payload)
	if token.Wait() && token.Error() != nil {
		m.log.Error("Failed to publish message to topic %s: %v", topic, token.Error())
	} else {
		m.log.Debug("Published message to topic: %s", topic)
	}
}

func (m *MQTT) Close() {
	if m.client != nil && m.client.IsConnected() {
		m.publish(m.topics.Status(), offlinePayload, true)
		m.client.Disconnect(250)
	}
}
