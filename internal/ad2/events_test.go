package ad2

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ad2mqtt/internal/log"
)

func testLogger() *log.Logger {
	return log.NewLogger("error")
}

func TestDispatcherSubscriptionOrder(t *testing.T) {
	d := NewDispatcher(testLogger())

	var order []int
	d.Subscribe(EventArmed, func(e Event) { order = append(order, 1) })
	d.Subscribe(EventArmed, func(e Event) { order = append(order, 2) })
	d.Subscribe(EventArmed, func(e Event) { order = append(order, 3) })

	d.Fire(EventArmed, nil)

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestDispatcherPayloadDelivery(t *testing.T) {
	d := NewDispatcher(testLogger())

	var got Event
	d.Subscribe(EventZoneFault, func(e Event) { got = e })

	d.Fire(EventZoneFault, 12)

	assert.Equal(t, EventZoneFault, got.Name)
	assert.Equal(t, 12, got.Payload)
}

func TestDispatcherUnsubscribe(t *testing.T) {
	d := NewDispatcher(testLogger())

	var first, second int
	id := d.Subscribe(EventBypass, func(e Event) { first++ })
	d.Subscribe(EventBypass, func(e Event) { second++ })

	d.Fire(EventBypass, nil)
	d.Unsubscribe(EventBypass, id)
	d.Fire(EventBypass, nil)

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestDispatcherUnsubscribeUnknownID(t *testing.T) {
	d := NewDispatcher(testLogger())

	var calls int
	d.Subscribe(EventBoot, func(e Event) { calls++ })

	d.Unsubscribe(EventBoot, 999)
	d.Fire(EventBoot, nil)

	assert.Equal(t, 1, calls)
}

func TestDispatcherPanicIsolation(t *testing.T) {
	d := NewDispatcher(testLogger())

	var reached bool
	d.Subscribe(EventAlarm, func(e Event) { panic("handler failure") })
	d.Subscribe(EventAlarm, func(e Event) { reached = true })

	assert.NotPanics(t, func() { d.Fire(EventAlarm, nil) })
	assert.True(t, reached)
}

func TestDispatcherClear(t *testing.T) {
	d := NewDispatcher(testLogger())

	var calls int
	d.Subscribe(EventFire, func(e Event) { calls++ })
	d.Subscribe(EventArmed, func(e Event) { calls++ })

	d.Clear()
	d.Fire(EventFire, nil)
	d.Fire(EventArmed, nil)

	assert.Equal(t, 0, calls)
}

func TestDispatcherNoReplayForLateSubscriber(t *testing.T) {
	d := NewDispatcher(testLogger())

	d.Fire(EventBoot, nil)

	var calls int
	d.Subscribe(EventBoot, func(e Event) { calls++ })

	assert.Equal(t, 0, calls)
}
