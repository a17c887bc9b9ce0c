package ad2

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClock is a manually advanced time source.
type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestTracker(t *testing.T) (*Tracker, *testClock) {
	t.Helper()
	clock := newTestClock()
	tracker := NewTracker(DefaultFaultWindow, testLogger())
	tracker.SetClock(clock.Now)
	return tracker, clock
}

func TestTrackerFaultAndExpire(t *testing.T) {
	tracker, clock := newTestTracker(t)

	events := tracker.Fault(12)
	require.Len(t, events, 1)
	assert.Equal(t, Event{EventZoneFault, 12}, events[0])
	assert.True(t, tracker.Faulted(12))

	// Within the window nothing expires.
	clock.Advance(29 * time.Second)
	assert.Empty(t, tracker.Sweep())
	assert.True(t, tracker.Faulted(12))

	clock.Advance(2 * time.Second)
	events = tracker.Sweep()
	require.Len(t, events, 1)
	assert.Equal(t, Event{EventZoneRestore, 12}, events[0])
	assert.False(t, tracker.Faulted(12))

	// A later sweep finds nothing left to restore.
	clock.Advance(9 * time.Second)
	assert.Empty(t, tracker.Sweep())
}

func TestTrackerRefreshExtendsDeadline(t *testing.T) {
	tracker, clock := newTestTracker(t)

	tracker.Fault(5)
	clock.Advance(20 * time.Second)

	// A repeated fault refreshes silently.
	assert.Empty(t, tracker.Fault(5))

	clock.Advance(20 * time.Second)
	assert.Empty(t, tracker.Sweep())
	assert.True(t, tracker.Faulted(5))

	clock.Advance(11 * time.Second)
	events := tracker.Sweep()
	require.Len(t, events, 1)
	assert.Equal(t, Event{EventZoneRestore, 5}, events[0])
}

func TestTrackerExplicitRestore(t *testing.T) {
	tracker, _ := newTestTracker(t)

	tracker.Fault(3)
	events := tracker.Restore(3)
	require.Len(t, events, 1)
	assert.Equal(t, Event{EventZoneRestore, 3}, events[0])

	// Restoring an already clear zone is a no-op.
	assert.Empty(t, tracker.Restore(3))
}

func TestTrackerSweepOrder(t *testing.T) {
	tracker, clock := newTestTracker(t)

	tracker.Fault(9)
	tracker.Fault(2)
	tracker.Fault(15)

	clock.Advance(31 * time.Second)
	events := tracker.Sweep()

	require.Len(t, events, 3)
	assert.Equal(t, 2, events[0].Payload)
	assert.Equal(t, 9, events[1].Payload)
	assert.Equal(t, 15, events[2].Payload)
}

func TestTrackerExpanderMessages(t *testing.T) {
	tracker, _ := newTestTracker(t)

	msg, err := ParseMessage("!EXP:02,1,01")
	require.NoError(t, err)

	// Default contiguous-bank derivation: 2*8 + 1 + 1 = 18.
	events := tracker.Update(msg)
	require.Len(t, events, 1)
	assert.Equal(t, Event{EventZoneFault, 18}, events[0])

	msg, err = ParseMessage("!EXP:02,1,00")
	require.NoError(t, err)
	events = tracker.Update(msg)
	require.Len(t, events, 1)
	assert.Equal(t, Event{EventZoneRestore, 18}, events[0])
}

func TestTrackerExpanderCustomMapping(t *testing.T) {
	tracker, _ := newTestTracker(t)
	tracker.SetExpanderMapper(func(address, channel int) (int, bool) {
		if address == 18 && channel == 0 {
			return 40, true
		}
		return 0, false
	})

	msg, err := ParseMessage("!EXP:18,0,01")
	require.NoError(t, err)
	events := tracker.Update(msg)
	require.Len(t, events, 1)
	assert.Equal(t, Event{EventZoneFault, 40}, events[0])

	// Unmapped pair produces nothing.
	msg, err = ParseMessage("!EXP:19,0,01")
	require.NoError(t, err)
	assert.Empty(t, tracker.Update(msg))
}

func TestTrackerRelayMessagesIgnored(t *testing.T) {
	tracker, _ := newTestTracker(t)

	msg, err := ParseMessage("!REL:12,1,01")
	require.NoError(t, err)
	assert.Empty(t, tracker.Update(msg))
	assert.Empty(t, tracker.FaultedZones())
}

func TestTrackerRFMessages(t *testing.T) {
	tracker, _ := newTestTracker(t)
	tracker.AddRFSensor("0180036", [4]int{10, 11, 0, 0})

	// Bit 8 set: loop 0 faulted.
	msg, err := ParseMessage("!RFX:0180036,80")
	require.NoError(t, err)
	events := tracker.Update(msg)
	require.Len(t, events, 1)
	assert.Equal(t, Event{EventZoneFault, 10}, events[0])

	// All loops clear: loop 0 restores; loop 1 was never faulted.
	msg, err = ParseMessage("!RFX:0180036,00")
	require.NoError(t, err)
	events = tracker.Update(msg)
	require.Len(t, events, 1)
	assert.Equal(t, Event{EventZoneRestore, 10}, events[0])
}

func TestTrackerRFUnmappedSerial(t *testing.T) {
	tracker, _ := newTestTracker(t)

	msg, err := ParseMessage("!RFX:0999999,80")
	require.NoError(t, err)
	assert.Empty(t, tracker.Update(msg))
}

func TestTrackerPanelCheckZone(t *testing.T) {
	tracker, _ := newTestTracker(t)

	msg, err := ParseMessage("!CHECK 05")
	require.NoError(t, err)
	events := tracker.Update(msg)
	require.Len(t, events, 1)
	assert.Equal(t, Event{EventZoneFault, 5}, events[0])
}

func TestTrackerReadyRestoresAll(t *testing.T) {
	tracker, _ := newTestTracker(t)

	tracker.Fault(3)
	tracker.Fault(7)

	msg, err := ParseMessage("!READY")
	require.NoError(t, err)
	events := tracker.Update(msg)

	require.Len(t, events, 2)
	assert.Equal(t, Event{EventZoneRestore, 3}, events[0])
	assert.Equal(t, Event{EventZoneRestore, 7}, events[1])
	assert.Empty(t, tracker.FaultedZones())
}

func TestTrackerUpdateSweepsFirst(t *testing.T) {
	tracker, clock := newTestTracker(t)

	tracker.Fault(12)
	clock.Advance(31 * time.Second)

	// The expired fault restores before the new message is folded in.
	msg, err := ParseMessage("!EXP:02,1,01")
	require.NoError(t, err)
	events := tracker.Update(msg)

	require.Len(t, events, 2)
	assert.Equal(t, Event{EventZoneRestore, 12}, events[0])
	assert.Equal(t, Event{EventZoneFault, 18}, events[1])
}

func TestTrackerFaultedZonesSorted(t *testing.T) {
	tracker, _ := newTestTracker(t)

	tracker.Fault(20)
	tracker.Fault(1)
	tracker.Fault(8)

	assert.Equal(t, []int{1, 8, 20}, tracker.FaultedZones())
}

func TestTrackerReset(t *testing.T) {
	tracker, _ := newTestTracker(t)

	tracker.Fault(4)
	tracker.Reset()

	assert.Empty(t, tracker.FaultedZones())
	assert.Empty(t, tracker.Sweep())
}
