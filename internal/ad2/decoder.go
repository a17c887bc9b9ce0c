package ad2

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"ad2mqtt/internal/device"
	"ad2mqtt/internal/log"
)

// readTimeout bounds each reader-loop wait so shutdown is observed
// promptly. A timeout is retried, not surfaced.
const readTimeout = 1 * time.Second

// AdapterInfo is the identity the adapter reports over !VER and !CONFIG
// lines.
type AdapterInfo struct {
	SerialNumber string
	Version      string
	VersionFlags string
	ConfigBits   uint32
}

// Decoder is one session against an AD2 adapter. It owns the reader
// loop and drives the decode, aggregate, track, dispatch pipeline
// inline on that goroutine; a slow event handler directly delays the
// next read. Panel and zone state live for the lifetime of the open
// session and reset on Close. Independent sessions share nothing.
type Decoder struct {
	log     *log.Logger
	device  device.Device
	events  *Dispatcher
	agg     *aggregator
	tracker *Tracker

	mu     sync.Mutex
	isOpen bool
	stop   chan struct{}
	wg     sync.WaitGroup

	internalMask uint32

	serialNumber string
	version      string
	versionFlags string
	address      int
	configBits   uint32
	addressMask  uint32
	emulateZone  [5]bool
	emulateRelay [4]bool
	emulateLRR   bool
	deduplicate  bool
	emulateCOM   bool
	mode         string
}

func New(dev device.Device, logger *log.Logger) *Decoder {
	return &Decoder{
		log:          logger,
		device:       dev,
		events:       NewDispatcher(logger),
		agg:          newAggregator(logger),
		tracker:      NewTracker(DefaultFaultWindow, logger),
		internalMask: 0xFFFFFFFF,
		serialNumber: "Unknown",
		version:      "Unknown",
		address:      18,
		configBits:   0xFF00,
		addressMask:  0xFFFFFFFF,
		mode:         "ADEMCO",
	}
}

// Events returns the session's event registry. Handlers run
// synchronously on the reader goroutine and must not block.
func (d *Decoder) Events() *Dispatcher {
	return d.events
}

// Tracker returns the session's zone tracker, e.g. to install the
// deployment's expander and RF sensor mappings before opening.
func (d *Decoder) Tracker() *Tracker {
	return d.tracker
}

// SetFaultWindow overrides the zone fault expiration window.
func (d *Decoder) SetFaultWindow(window time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if window > 0 {
		d.tracker.window = window
	}
}

// SetInternalAddressMask restricts which keypad messages update
// internal status, matched against the message's address mask.
func (d *Decoder) SetInternalAddressMask(mask uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.internalMask = mask
}

// Status returns a copy of the current panel status.
func (d *Decoder) Status() PanelStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.agg.status.snapshot()
}

// AdapterInfo returns the identity reported by the adapter.
func (d *Decoder) AdapterInfo() AdapterInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return AdapterInfo{
		SerialNumber: d.serialNumber,
		Version:      d.version,
		VersionFlags: d.versionFlags,
		ConfigBits:   d.configBits,
	}
}

// SetAdapterInfo restores a previously cached adapter identity.
func (d *Decoder) SetAdapterInfo(info AdapterInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if info.SerialNumber != "" {
		d.serialNumber = info.SerialNumber
	}
	if info.Version != "" {
		d.version = info.Version
	}
	if info.VersionFlags != "" {
		d.versionFlags = info.VersionFlags
	}
	if info.ConfigBits != 0 {
		d.configBits = info.ConfigBits
	}
}

// SetPanic updates the panic side channel. Panic is not derived from a
// message body in this protocol; it is set out-of-band and compared the
// same edge-triggered way.
func (d *Decoder) SetPanic(status bool) {
	d.mu.Lock()
	events := d.agg.setPanic(status)
	d.mu.Unlock()
	d.fire(events)
}

// SweepZones forces a zone expiration pass without waiting for the next
// message.
func (d *Decoder) SweepZones() {
	d.mu.Lock()
	events := d.tracker.Sweep()
	d.mu.Unlock()
	d.fire(events)
}

// Open establishes the device connection and optionally starts the
// reader loop. Returns device.ErrNoDevice (wrapped) when the transport
// cannot be opened.
func (d *Decoder) Open(startReader bool) error {
	d.mu.Lock()
	if d.isOpen {
		d.mu.Unlock()
		return nil
	}

	if err := d.device.Open(); err != nil {
		d.mu.Unlock()
		return err
	}

	d.isOpen = true
	d.stop = make(chan struct{})
	d.mu.Unlock()

	d.events.Fire(EventOpen, nil)

	// Query the version so the adapter identity gets populated.
	if _, err := d.Send("V\r"); err != nil {
		d.log.Warning("Failed to send version query: %v", err)
	}

	if startReader {
		d.wg.Add(1)
		go d.readLoop()
	}

	return nil
}

// Close stops the reader loop, closes the device, unregisters every
// event subscription and resets panel and zone state to defaults.
// In-flight event deliveries complete before teardown.
func (d *Decoder) Close() {
	d.mu.Lock()
	if !d.isOpen {
		d.mu.Unlock()
		return
	}
	d.isOpen = false
	close(d.stop)
	d.mu.Unlock()

	d.wg.Wait()

	if err := d.device.Close(); err != nil {
		d.log.Warning("Error closing device: %v", err)
	}

	d.events.Fire(EventClose, nil)
	d.events.Clear()

	d.mu.Lock()
	d.agg.reset()
	d.tracker.Reset()
	d.mu.Unlock()
}

// Send writes data to the adapter and reports how many bytes were
// written.
func (d *Decoder) Send(data string) (int, error) {
	n, err := d.device.Write([]byte(data))
	if err != nil {
		return n, err
	}
	d.events.Fire(EventWrite, data)
	return n, nil
}

// FaultZone faults a zone when the adapter is emulating a zone
// expander. simulateWireProblem reports an open-wire condition instead
// of a plain fault.
func (d *Decoder) FaultZone(zone int, simulateWireProblem bool) error {
	status := 1
	if simulateWireProblem {
		status = 2
	}
	_, err := d.Send(fmt.Sprintf("L%02d%d\r", zone, status))
	return err
}

// FaultExpanderZone faults the zone derived from an expander
// (address, channel) pair via the configured mapping.
func (d *Decoder) FaultExpanderZone(address, channel int, simulateWireProblem bool) error {
	zone, ok := d.tracker.ExpanderZone(address, channel)
	if !ok {
		return fmt.Errorf("no zone mapping for expander %d channel %d", address, channel)
	}
	return d.FaultZone(zone, simulateWireProblem)
}

// ClearZone clears a previously faulted emulated zone.
func (d *Decoder) ClearZone(zone int) error {
	_, err := d.Send(fmt.Sprintf("L%02d0\r", zone))
	return err
}

// ConfigString rebuilds the adapter configuration command payload from
// the current settings.
func (d *Decoder) ConfigString() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	yn := func(b bool) string {
		if b {
			return "Y"
		}
		return "N"
	}

	var exp, rel strings.Builder
	for _, z := range d.emulateZone {
		exp.WriteString(yn(z))
	}
	for _, r := range d.emulateRelay {
		rel.WriteString(yn(r))
	}

	entries := []string{
		fmt.Sprintf("ADDRESS=%d", d.address),
		fmt.Sprintf("CONFIGBITS=%x", d.configBits),
		fmt.Sprintf("MASK=%x", d.addressMask),
		"EXP=" + exp.String(),
		"REL=" + rel.String(),
		"LRR=" + yn(d.emulateLRR),
		"DEDUPLICATE=" + yn(d.deduplicate),
		"MODE=" + d.mode,
		"COM=" + yn(d.emulateCOM),
	}
	return strings.Join(entries, "&")
}

// SendConfig writes the current configuration back to the adapter.
func (d *Decoder) SendConfig() error {
	_, err := d.Send("C" + d.ConfigString() + "\r")
	return err
}

func (d *Decoder) fire(events []Event) {
	for _, e := range events {
		d.events.Fire(e.Name, e.Payload)
	}
}

func (d *Decoder) readLoop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.stop:
			return
		default:
		}

		line, err := d.device.ReadLine(readTimeout, false)
		if err != nil {
			if errors.Is(err, device.ErrTimeout) {
				continue
			}
			d.log.Error("Read error, stopping session: %v", err)
			return
		}

		d.handleLine(line)
	}
}

// handleLine drives the pipeline for one raw line: adapter chatter is
// handled first, everything else goes through the message parser. A
// malformed line is logged and skipped; the pipeline continues. Status
// and zone mutations and their event firings complete before the next
// line is decoded.
func (d *Decoder) handleLine(line string) {
	d.events.Fire(EventRead, line)

	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}

	switch {
	case trimmed == "!Ready":
		d.log.Adapter("Boot complete")
		d.events.Fire(EventBoot, nil)
		return
	case strings.HasPrefix(trimmed, "!VER:"):
		d.handleVersion(trimmed)
		return
	case strings.HasPrefix(trimmed, "!CONFIG"):
		d.handleConfig(trimmed)
		return
	case strings.Contains(trimmed, "Sending.done"):
		d.events.Fire(EventSendingReceived, SendingPayload{Status: true, Raw: trimmed})
		return
	}

	msg, err := ParseMessage(trimmed)
	if err != nil {
		var invalid *InvalidMessageError
		if errors.As(err, &invalid) {
			d.log.Warning("Invalid message received: %s", invalid.Raw)
		} else {
			d.log.Warning("Failed to parse message %q: %v", trimmed, err)
		}
		return
	}

	d.events.Fire(EventMessage, msg)

	d.mu.Lock()
	var events []Event
	switch m := msg.(type) {
	case *PanelMessage:
		if d.internalMask&m.Mask != 0 {
			events = d.agg.applyPanel(m)
		}
	case *ExpanderMessage:
		events = d.agg.applyExpander(m)
		events = append(events, Event{EventExpanderMessage, m})
	case *RFMessage:
		events = append(events, Event{EventRFXMessage, m})
	case *ContactIDMessage:
		events = append(events, Event{EventLRRMessage, m})
	case *LRRMessage:
		events = append(events, Event{EventLRRMessage, m})
	case *AUIMessage:
		events = append(events, Event{EventAUIMessage, m})
	}
	events = append(events, d.tracker.Update(msg)...)
	d.mu.Unlock()

	d.fire(events)
}

// handleVersion parses a "!VER:serial,version,flags" identity line.
func (d *Decoder) handleVersion(line string) {
	parts := strings.Split(strings.TrimPrefix(line, "!VER:"), ",")

	d.mu.Lock()
	if len(parts) > 0 && parts[0] != "" {
		d.serialNumber = parts[0]
	}
	if len(parts) > 1 {
		d.version = parts[1]
	}
	if len(parts) > 2 {
		d.versionFlags = strings.Join(parts[2:], ",")
	}
	serial, version := d.serialNumber, d.version
	d.mu.Unlock()

	d.log.Adapter("Version: serial=%s firmware=%s", serial, version)
}

// handleConfig parses a "!CONFIG>KEY=VAL&KEY=VAL" line and fires
// config_received.
func (d *Decoder) handleConfig(line string) {
	body := line
	if idx := strings.IndexByte(line, '>'); idx >= 0 {
		body = line[idx+1:]
	}

	d.mu.Lock()
	for _, entry := range strings.Split(body, "&") {
		key, value, found := strings.Cut(entry, "=")
		if !found {
			continue
		}
		d.applyConfigEntry(strings.ToUpper(strings.TrimSpace(key)), strings.TrimSpace(value))
	}
	d.mu.Unlock()

	d.log.Info("Adapter configuration received")
	d.events.Fire(EventConfigReceived, nil)
}

func (d *Decoder) applyConfigEntry(key, value string) {
	switch key {
	case "ADDRESS":
		if v, err := strconv.Atoi(value); err == nil {
			d.address = v
		}
	case "CONFIGBITS":
		if v, err := strconv.ParseUint(value, 16, 32); err == nil {
			d.configBits = uint32(v)
		}
	case "MASK":
		if v, err := strconv.ParseUint(value, 16, 32); err == nil {
			d.addressMask = uint32(v)
		}
	case "EXP":
		for i := range d.emulateZone {
			d.emulateZone[i] = i < len(value) && value[i] == 'Y'
		}
	case "REL":
		for i := range d.emulateRelay {
			d.emulateRelay[i] = i < len(value) && value[i] == 'Y'
		}
	case "LRR":
		d.emulateLRR = value == "Y"
	case "DEDUPLICATE":
		d.deduplicate = value == "Y"
	case "COM":
		d.emulateCOM = value == "Y"
	case "MODE":
		switch value {
		case "A", "ADEMCO":
			d.mode = "ADEMCO"
		case "D", "DSC":
			d.mode = "DSC"
		default:
			d.mode = value
		}
	}
}
