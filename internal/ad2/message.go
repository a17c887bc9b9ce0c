// Package ad2 implements the line-oriented ASCII protocol spoken by
// AlarmDecoder (AD2) adapters: message parsing, panel status tracking,
// zone fault tracking and event dispatch.
package ad2

import (
	"fmt"
	"time"
)

// Message is the closed set of wire messages produced by ParseMessage.
// Messages are immutable once constructed.
type Message interface {
	// Base returns the raw line and capture timestamp shared by every
	// message kind.
	Base() BaseMessage
}

type BaseMessage struct {
	Raw       string
	Timestamp time.Time
}

func (m BaseMessage) Base() BaseMessage { return m }

// PanelMessage is a standard keypad message. The boolean fields are
// derived from free-text tokens in the message body.
type PanelMessage struct {
	BaseMessage

	Text               string
	AlarmEventOccurred bool
	AlarmSounding      bool
	Ready              bool
	ArmedAway          bool
	ArmedHome          bool
	ChimeOn            bool
	Bypass             bool
	ACPower            bool
	BatteryLow         bool
	FireAlarm          bool
	CheckZone          bool
	ProgrammingMode    bool
	SystemFault        bool
	ZoneBypassed       bool

	// NumericCode is the zone or user code carried by the message, if
	// any. Empty when the body has no numeric token.
	NumericCode    string
	Mask           uint32
	Beeps          int
	CursorLocation int
	PanelType      string
}

// ZoneNumber parses the message's numeric code as a zone number.
func (m *PanelMessage) ZoneNumber() (int, bool) {
	if m.NumericCode == "" {
		return 0, false
	}
	var zone int
	if _, err := fmt.Sscanf(m.NumericCode, "%d", &zone); err != nil {
		return 0, false
	}
	return zone, true
}

// ExpanderType distinguishes zone-expander reports from relay reports.
type ExpanderType int

const (
	ExpanderTypeZone ExpanderType = iota
	ExpanderTypeRelay
)

func (t ExpanderType) String() string {
	switch t {
	case ExpanderTypeZone:
		return "Zone"
	case ExpanderTypeRelay:
		return "Relay"
	default:
		return fmt.Sprintf("Unknown ExpanderType(%d)", int(t))
	}
}

// ExpanderMessage is a zone expander or relay module report.
type ExpanderMessage struct {
	BaseMessage

	Address int
	Channel int
	Value   int
	Type    ExpanderType
}

// RFMessage is a wireless sensor status report. Battery, Supervision
// and the loop flags are unpacked from fixed bit positions of Value.
type RFMessage struct {
	BaseMessage

	SerialNumber string
	Value        int
	Battery      bool
	Supervision  bool
	Loop         [4]bool
}

// LRRMessage is a long-range-radio report. EventType and Partition are
// reserved for future extraction and currently left empty.
type LRRMessage struct {
	BaseMessage

	EventType string
	Partition string
}

// ContactIDEvent is the standardized numeric event encoding carried by
// an ADEMCO Contact-ID report.
type ContactIDEvent struct {
	Code      string
	Qualifier string
	Group     string
	Zone      string
	Partition string
}

// ContactIDMessage is the ADEMCO Contact-ID specialization of an LRR
// message.
type ContactIDMessage struct {
	LRRMessage

	Event ContactIDEvent
}

// AUIMessage is text destined for an auxiliary touchscreen or keypad
// display.
type AUIMessage struct {
	BaseMessage

	AUIID   string
	MsgType string
	Line    string
	Text    string
}
