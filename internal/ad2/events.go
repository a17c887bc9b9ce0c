package ad2

import (
	"sync"

	"ad2mqtt/internal/log"
)

// Event names exposed to callers.
const (
	EventArmed           = "armed"
	EventDisarmed        = "disarmed"
	EventPowerChanged    = "power_changed"
	EventReadyChanged    = "ready_changed"
	EventAlarm           = "alarm"
	EventAlarmRestored   = "alarm_restored"
	EventFire            = "fire"
	EventBypass          = "bypass"
	EventBoot            = "boot"
	EventConfigReceived  = "config_received"
	EventZoneFault       = "zone_fault"
	EventZoneRestore     = "zone_restore"
	EventLowBattery      = "low_battery"
	EventPanic           = "panic"
	EventRelayChanged    = "relay_changed"
	EventChimeChanged    = "chime_changed"
	EventMessage         = "message"
	EventExpanderMessage = "expander_message"
	EventLRRMessage      = "lrr_message"
	EventRFXMessage      = "rfx_message"
	EventAUIMessage      = "aui_message"
	EventSendingReceived = "sending_received"
	EventOpen            = "open"
	EventClose           = "close"
	EventRead            = "read"
	EventWrite           = "write"
)

// Event is a fired occurrence delivered to subscribers.
type Event struct {
	Name    string
	Payload interface{}
}

// Handler receives a fired event. Handlers run synchronously on the
// pipeline goroutine and must not block.
type Handler func(Event)

// ArmedPayload accompanies the armed event.
type ArmedPayload struct {
	Stay bool
}

// AlarmPayload accompanies alarm and alarm_restored events. ZoneKnown
// is false when the triggering message carried no zone identifier.
type AlarmPayload struct {
	Zone      int
	ZoneKnown bool
}

// BypassPayload accompanies the bypass event.
type BypassPayload struct {
	Zone     int
	Bypassed bool
}

// SendingPayload accompanies the sending_received event.
type SendingPayload struct {
	Status bool
	Raw    string
}

type subscription struct {
	id      uint64
	handler Handler
}

// Dispatcher is an in-process registry of named events. Delivery is
// synchronous and in subscription order; Fire returns only after every
// current subscriber has run. A panicking handler is caught and logged
// without preventing the remaining subscribers from running.
type Dispatcher struct {
	log      *log.Logger
	mu       sync.Mutex
	handlers map[string][]subscription
	nextID   uint64
}

func NewDispatcher(logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		log:      logger,
		handlers: make(map[string][]subscription),
	}
}

// Subscribe registers a handler for the named event and returns an id
// usable with Unsubscribe.
func (d *Dispatcher) Subscribe(name string, handler Handler) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	d.handlers[name] = append(d.handlers[name], subscription{id: id, handler: handler})
	return id
}

// Unsubscribe removes a previously registered handler. Unknown ids are
// ignored.
func (d *Dispatcher) Unsubscribe(name string, id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	subs := d.handlers[name]
	for i, s := range subs {
		if s.id == id {
			d.handlers[name] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Clear drops every subscription. Used at session teardown.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers = make(map[string][]subscription)
}

// Fire delivers the payload to each current subscriber of the named
// event, once, in subscription order. There is no queueing and no
// replay for late subscribers.
func (d *Dispatcher) Fire(name string, payload interface{}) {
	d.mu.Lock()
	subs := make([]subscription, len(d.handlers[name]))
	copy(subs, d.handlers[name])
	d.mu.Unlock()

	event := Event{Name: name, Payload: payload}
	for _, s := range subs {
		d.deliver(s, event)
	}
}

func (d *Dispatcher) deliver(s subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Handler for event %s panicked: %v", event.Name, r)
		}
	}()
	s.handler(event)
}
