package ad2

import (
	"ad2mqtt/internal/log"
)

// RelayKey identifies a relay channel on an expander board.
type RelayKey struct {
	Address int
	Channel int
}

// PanelStatus is the aggregate panel state for one open session.
// Transitions are edge-triggered: an event fires only when a newly
// decoded value differs from the stored one.
type PanelStatus struct {
	Ready          bool
	ArmedAway      bool
	ArmedHome      bool
	ChimeOn        bool
	ACPower        bool
	BatteryLow     bool
	FireAlarm      bool
	AlarmOccurring bool
	Panic          bool
	Bypassed       map[int]bool
	Relays         map[RelayKey]int
}

// newPanelStatus builds the per-session default state. AC power starts
// on: the panel only reports its loss. The maps are per-instance so
// sessions never share mutable state.
func newPanelStatus() *PanelStatus {
	return &PanelStatus{
		ACPower:  true,
		Bypassed: make(map[int]bool),
		Relays:   make(map[RelayKey]int),
	}
}

func (s *PanelStatus) snapshot() PanelStatus {
	out := *s
	out.Bypassed = make(map[int]bool, len(s.Bypassed))
	for k, v := range s.Bypassed {
		out.Bypassed[k] = v
	}
	out.Relays = make(map[RelayKey]int, len(s.Relays))
	for k, v := range s.Relays {
		out.Relays[k] = v
	}
	return out
}

// aggregator folds decoded messages into the PanelStatus and returns
// one event per changed field, in evaluation order, for the session to
// fire. It assumes messages already validated by the parser.
type aggregator struct {
	log    *log.Logger
	status *PanelStatus
}

func newAggregator(logger *log.Logger) *aggregator {
	return &aggregator{
		log:    logger,
		status: newPanelStatus(),
	}
}

func (a *aggregator) reset() {
	a.status = newPanelStatus()
}

// applyPanel evaluates the keypad message fields in a fixed order so a
// message carrying several changes yields one event per field, never a
// coalesced one: ready, power, chime, alarm, bypass, battery, fire,
// armed/disarmed.
func (a *aggregator) applyPanel(m *PanelMessage) []Event {
	s := a.status
	var events []Event

	if m.Ready != s.Ready {
		s.Ready = m.Ready
		a.log.Debug("Ready status changed: %t", s.Ready)
		events = append(events, Event{EventReadyChanged, s.Ready})
	}

	if m.ACPower != s.ACPower {
		s.ACPower = m.ACPower
		a.log.Info("AC power changed: %t", s.ACPower)
		events = append(events, Event{EventPowerChanged, s.ACPower})
	}

	if m.ChimeOn != s.ChimeOn {
		s.ChimeOn = m.ChimeOn
		a.log.Debug("Chime status changed: %t", s.ChimeOn)
		events = append(events, Event{EventChimeChanged, m})
	}

	events = append(events, a.applyAlarm(m)...)
	events = append(events, a.applyBypass(m)...)

	if m.BatteryLow != s.BatteryLow {
		s.BatteryLow = m.BatteryLow
		a.log.Warning("Battery status changed: low=%t", s.BatteryLow)
		events = append(events, Event{EventLowBattery, s.BatteryLow})
	}

	if m.FireAlarm != s.FireAlarm {
		s.FireAlarm = m.FireAlarm
		a.log.Warning("Fire status changed: %t", s.FireAlarm)
		events = append(events, Event{EventFire, s.FireAlarm})
	}

	events = append(events, a.applyArmed(m)...)
	return events
}

func (a *aggregator) applyAlarm(m *PanelMessage) []Event {
	s := a.status
	zone, zoneKnown := m.ZoneNumber()

	if m.AlarmEventOccurred && !s.AlarmOccurring {
		s.AlarmOccurring = true
		a.log.Warning("Alarm event occurring")
		return []Event{{EventAlarm, AlarmPayload{Zone: zone, ZoneKnown: zoneKnown}}}
	}
	if !m.AlarmEventOccurred && s.AlarmOccurring {
		s.AlarmOccurring = false
		a.log.Info("Alarm restored")
		return []Event{{EventAlarmRestored, AlarmPayload{Zone: zone, ZoneKnown: zoneKnown}}}
	}
	return nil
}

// applyBypass maintains the per-zone bypass map. A bypass report with
// no identifiable zone is logged and skipped rather than producing a
// malformed event.
func (a *aggregator) applyBypass(m *PanelMessage) []Event {
	s := a.status
	zone, zoneKnown := m.ZoneNumber()

	if m.ZoneBypassed {
		if !zoneKnown {
			a.log.Warning("Bypass report with no zone identifier: %s", m.Raw)
			return nil
		}
		if !s.Bypassed[zone] {
			s.Bypassed[zone] = true
			a.log.Info("Zone %d bypassed", zone)
			return []Event{{EventBypass, BypassPayload{Zone: zone, Bypassed: true}}}
		}
		return nil
	}

	if zoneKnown && s.Bypassed[zone] {
		delete(s.Bypassed, zone)
		a.log.Info("Zone %d bypass cleared", zone)
		return []Event{{EventBypass, BypassPayload{Zone: zone, Bypassed: false}}}
	}
	return nil
}

// applyArmed derives the armed state jointly from the away and home
// tokens. Arming home and away are mutually exclusive; absence of both
// while previously armed means disarmed.
func (a *aggregator) applyArmed(m *PanelMessage) []Event {
	s := a.status

	switch {
	case m.ArmedAway && !s.ArmedAway:
		s.ArmedAway = true
		s.ArmedHome = false
		a.log.Info("Panel armed: AWAY")
		return []Event{{EventArmed, ArmedPayload{Stay: false}}}
	case m.ArmedHome && !s.ArmedHome:
		s.ArmedHome = true
		s.ArmedAway = false
		a.log.Info("Panel armed: STAY")
		return []Event{{EventArmed, ArmedPayload{Stay: true}}}
	case !m.ArmedAway && !m.ArmedHome && (s.ArmedAway || s.ArmedHome):
		s.ArmedAway = false
		s.ArmedHome = false
		a.log.Info("Panel disarmed")
		return []Event{{EventDisarmed, nil}}
	}
	return nil
}

// applyExpander folds a relay report into the relay map. Zone expander
// reports are the zone tracker's business and do not touch PanelStatus.
func (a *aggregator) applyExpander(m *ExpanderMessage) []Event {
	if m.Type != ExpanderTypeRelay {
		return nil
	}

	key := RelayKey{Address: m.Address, Channel: m.Channel}
	if old, ok := a.status.Relays[key]; ok && old == m.Value {
		return nil
	}
	a.status.Relays[key] = m.Value
	a.log.Debug("Relay %d/%d changed to %d", m.Address, m.Channel, m.Value)
	return []Event{{EventRelayChanged, m}}
}

// setPanic tracks the out-of-band panic side channel, compared the same
// edge-triggered way as message-driven fields.
func (a *aggregator) setPanic(status bool) []Event {
	if a.status.Panic == status {
		return nil
	}
	a.status.Panic = status
	a.log.Warning("Panic status changed: %t", status)
	return []Event{{EventPanic, status}}
}
