package ad2

import (
	"sort"
	"time"

	"ad2mqtt/internal/log"
)

// DefaultFaultWindow is how long a zone fault stays active without a
// refreshing report before the zone is considered restored.
const DefaultFaultWindow = 30 * time.Second

// ExpanderZoneMapper derives a flat panel zone number from an expander
// (address, channel) pair. The derivation depends on deployed hardware
// topology and is therefore injectable.
type ExpanderZoneMapper func(address, channel int) (int, bool)

// defaultExpanderZone assumes contiguous 8-channel expander banks.
func defaultExpanderZone(address, channel int) (int, bool) {
	return address*8 + channel + 1, true
}

type zoneFault struct {
	lastFault time.Time
	deadline  time.Time
}

// Tracker resolves per-zone fault state regardless of which message
// family reported the zone, with time-based auto-restore. State
// transitions are returned as events for the session to fire.
// Expiration is evaluated opportunistically whenever the tracker
// processes a message; there is no dedicated timer.
type Tracker struct {
	log          *log.Logger
	window       time.Duration
	now          func() time.Time
	expanderZone ExpanderZoneMapper
	rfZones      map[string][4]int
	zones        map[int]*zoneFault
}

func NewTracker(window time.Duration, logger *log.Logger) *Tracker {
	if window <= 0 {
		window = DefaultFaultWindow
	}
	return &Tracker{
		log:          logger,
		window:       window,
		now:          time.Now,
		expanderZone: defaultExpanderZone,
		rfZones:      make(map[string][4]int),
		zones:        make(map[int]*zoneFault),
	}
}

// SetClock replaces the tracker's time source. Tests use this to
// advance logical time without sleeping.
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}

// SetExpanderMapper installs the hardware-topology zone derivation.
func (t *Tracker) SetExpanderMapper(m ExpanderZoneMapper) {
	if m != nil {
		t.expanderZone = m
	}
}

// AddRFSensor maps a wireless sensor serial number to the panel zones
// monitored by its four loops. A zero entry means the loop is unused.
// Reports from unmapped serials never produce zone faults.
func (t *Tracker) AddRFSensor(serial string, loops [4]int) {
	t.rfZones[serial] = loops
}

// ExpanderZone exposes the current (address, channel) to zone mapping.
func (t *Tracker) ExpanderZone(address, channel int) (int, bool) {
	return t.expanderZone(address, channel)
}

// Reset drops all tracked fault state. Used at session teardown.
func (t *Tracker) Reset() {
	t.zones = make(map[int]*zoneFault)
}

// Update folds one decoded message into the tracked state and returns
// the resulting zone_fault/zone_restore events in order. Expired faults
// are swept first so the deadline check needs no timer.
func (t *Tracker) Update(msg Message) []Event {
	events := t.Sweep()

	switch m := msg.(type) {
	case *ExpanderMessage:
		events = append(events, t.updateExpander(m)...)
	case *RFMessage:
		events = append(events, t.updateRF(m)...)
	case *PanelMessage:
		events = append(events, t.updatePanel(m)...)
	}
	return events
}

func (t *Tracker) updateExpander(m *ExpanderMessage) []Event {
	if m.Type != ExpanderTypeZone {
		return nil
	}

	zone, ok := t.expanderZone(m.Address, m.Channel)
	if !ok {
		t.log.Debug("No zone mapping for expander %d channel %d", m.Address, m.Channel)
		return nil
	}

	if m.Value != 0 {
		return t.Fault(zone)
	}
	return t.Restore(zone)
}

func (t *Tracker) updateRF(m *RFMessage) []Event {
	loops, ok := t.rfZones[m.SerialNumber]
	if !ok {
		return nil
	}

	var events []Event
	for i, zone := range loops {
		if zone == 0 {
			continue
		}
		if m.Loop[i] {
			events = append(events, t.Fault(zone)...)
		} else {
			events = append(events, t.Restore(zone)...)
		}
	}
	return events
}

func (t *Tracker) updatePanel(m *PanelMessage) []Event {
	// A READY keypad message asserts no zones are open.
	if m.Ready {
		return t.restoreAll()
	}

	if m.CheckZone {
		if zone, ok := m.ZoneNumber(); ok {
			return t.Fault(zone)
		}
	}
	return nil
}

// Fault marks a zone faulted. A repeated fault for an already-faulted
// zone only extends the deadline; no event refires.
func (t *Tracker) Fault(zone int) []Event {
	now := t.now()

	if f, ok := t.zones[zone]; ok {
		f.lastFault = now
		f.deadline = now.Add(t.window)
		return nil
	}

	t.zones[zone] = &zoneFault{lastFault: now, deadline: now.Add(t.window)}
	t.log.Warning("Zone %d faulted", zone)
	return []Event{{EventZoneFault, zone}}
}

// Restore clears a faulted zone. Restoring an already-clear zone is a
// no-op.
func (t *Tracker) Restore(zone int) []Event {
	if _, ok := t.zones[zone]; !ok {
		return nil
	}
	delete(t.zones, zone)
	t.log.Info("Zone %d restored", zone)
	return []Event{{EventZoneRestore, zone}}
}

// Faulted reports whether the zone is currently considered faulted.
func (t *Tracker) Faulted(zone int) bool {
	_, ok := t.zones[zone]
	return ok
}

// FaultedZones returns the currently faulted zones in ascending order.
func (t *Tracker) FaultedZones() []int {
	zones := make([]int, 0, len(t.zones))
	for z := range t.zones {
		zones = append(zones, z)
	}
	sort.Ints(zones)
	return zones
}

// Sweep restores every zone whose deadline has passed without a
// refreshing fault, returning one zone_restore event per expired zone.
// Exposed so callers and tests can force an expiration pass
// deterministically.
func (t *Tracker) Sweep() []Event {
	now := t.now()

	var expired []int
	for zone, f := range t.zones {
		if now.After(f.deadline) {
			expired = append(expired, zone)
		}
	}
	sort.Ints(expired)

	var events []Event
	for _, zone := range expired {
		delete(t.zones, zone)
		t.log.Info("Zone %d fault expired", zone)
		events = append(events, Event{EventZoneRestore, zone})
	}
	return events
}

func (t *Tracker) restoreAll() []Event {
	var events []Event
	for _, zone := range t.FaultedZones() {
		events = append(events, t.Restore(zone)...)
	}
	return events
}
