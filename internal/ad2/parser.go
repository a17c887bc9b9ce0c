package ad2

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	auiPrefix   = "!AUI:"
	expPrefix   = "!EXP:"
	relPrefix   = "!REL:"
	rfxPrefix   = "!RFX:"
	cidPrefix   = "!CID:"
	lrrPrefix   = "!LRR:"
	panelPrefix = "!"
)

var (
	contactIDPattern = regexp.MustCompile(`(\d{3}),(\d),(\d{2}),(\d{3}),(\d)`)
	numericPattern   = regexp.MustCompile(`\b(\d{1,3})\b`)
)

// ParseMessage classifies a raw line by its prefix token and parses it
// into one of the six message variants. A line that cannot be
// classified, or whose fields fail to parse, yields an
// *InvalidMessageError and no message.
func ParseMessage(data string) (Message, error) {
	switch {
	case strings.HasPrefix(data, auiPrefix):
		return parseAUI(data)
	case strings.HasPrefix(data, expPrefix), strings.HasPrefix(data, relPrefix):
		return parseExpander(data)
	case strings.HasPrefix(data, rfxPrefix):
		return parseRF(data)
	case strings.HasPrefix(data, cidPrefix):
		return parseContactID(data)
	case strings.HasPrefix(data, lrrPrefix):
		return parseLRR(data)
	case strings.HasPrefix(data, panelPrefix):
		return parsePanel(data)
	default:
		return nil, invalidMessage("unknown message format", data)
	}
}

func newBase(data string) BaseMessage {
	return BaseMessage{Raw: data, Timestamp: time.Now()}
}

// parsePanel derives the keypad message booleans from free-text tokens.
// Absence of a token means false, except AC power which is on unless an
// explicit loss indicator is present.
func parsePanel(data string) (*PanelMessage, error) {
	text := strings.TrimSpace(data)[len(panelPrefix):]

	msg := &PanelMessage{
		BaseMessage:        newBase(data),
		Text:               text,
		AlarmEventOccurred: strings.Contains(text, "ALARM"),
		AlarmSounding:      strings.Contains(text, "SOUND"),
		Ready:              strings.Contains(text, "READY"),
		ArmedAway:          strings.Contains(text, "AWAY"),
		ArmedHome:          strings.Contains(text, "STAY"),
		ChimeOn:            strings.Contains(text, "CHIME"),
		Bypass:             strings.Contains(text, "BYPASS"),
		ACPower:            !strings.Contains(text, "AC LOSS"),
		BatteryLow:         strings.Contains(text, "BAT"),
		FireAlarm:          strings.Contains(text, "FIRE"),
		CheckZone:          strings.Contains(text, "CHECK"),
		ProgrammingMode:    strings.Contains(text, "PROGRAM"),
		SystemFault:        strings.Contains(text, "FAULT"),
		ZoneBypassed:       strings.Contains(text, "BYPASS"),
		Mask:               0xFFFFFFFF,
	}

	if match := numericPattern.FindStringSubmatch(text); match != nil {
		msg.NumericCode = match[1]
	}

	return msg, nil
}

// parseExpander handles both zone expander (!EXP) and relay (!REL)
// reports; the prefix decides the type tag.
func parseExpander(data string) (*ExpanderMessage, error) {
	parts := strings.Split(strings.TrimSpace(data)[len(expPrefix):], ",")
	if len(parts) < 3 {
		return nil, invalidMessage("expander message requires at least 3 fields", data)
	}

	address, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, invalidMessage("bad expander address", data)
	}
	channel, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, invalidMessage("bad expander channel", data)
	}
	value, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return nil, invalidMessage("bad expander value", data)
	}

	msgType := ExpanderTypeZone
	if strings.HasPrefix(data, relPrefix) {
		msgType = ExpanderTypeRelay
	}

	return &ExpanderMessage{
		BaseMessage: newBase(data),
		Address:     address,
		Channel:     channel,
		Value:       value,
		Type:        msgType,
	}, nil
}

// parseRF unpacks a wireless sensor report: serial number and a
// hexadecimal status value. Battery and supervision come from bits 2
// and 3; the loop flags from bits 5, 6, 7 and 8 mapped to loop indices
// 2, 1, 3 and 0. The mapping is non-sequential by design and must be
// preserved exactly.
func parseRF(data string) (*RFMessage, error) {
	parts := strings.Split(strings.TrimSpace(data)[len(rfxPrefix):], ",")
	if len(parts) < 2 {
		return nil, invalidMessage("RF message requires serial and value", data)
	}

	serial := strings.TrimSpace(parts[0])
	if serial == "" {
		return nil, invalidMessage("empty RF serial number", data)
	}

	value, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 16, 32)
	if err != nil {
		return nil, invalidMessage("bad RF value", data)
	}

	isBitSet := func(b int) bool {
		return value&(1<<(b-1)) != 0
	}

	msg := &RFMessage{
		BaseMessage:  newBase(data),
		SerialNumber: serial,
		Value:        int(value),
		Battery:      isBitSet(2),
		Supervision:  isBitSet(3),
	}
	msg.Loop[2] = isBitSet(5)
	msg.Loop[1] = isBitSet(6)
	msg.Loop[3] = isBitSet(7)
	msg.Loop[0] = isBitSet(8)

	return msg, nil
}

func parseContactID(data string) (*ContactIDMessage, error) {
	match := contactIDPattern.FindStringSubmatch(data)
	if match == nil {
		return nil, invalidMessage("Contact-ID format mismatch", data)
	}

	return &ContactIDMessage{
		LRRMessage: LRRMessage{BaseMessage: newBase(data)},
		Event: ContactIDEvent{
			Code:      match[1],
			Qualifier: match[2],
			Group:     match[3],
			Zone:      match[4],
			Partition: match[5],
		},
	}, nil
}

// parseLRR keeps the report opaque; event type and partition extraction
// is reserved for a future firmware revision.
func parseLRR(data string) (*LRRMessage, error) {
	return &LRRMessage{BaseMessage: newBase(data)}, nil
}

func parseAUI(data string) (*AUIMessage, error) {
	parts := strings.SplitN(strings.TrimSpace(data)[len(auiPrefix):], ",", 4)
	if len(parts) < 3 {
		return nil, invalidMessage("AUI message requires at least 3 fields", data)
	}

	msg := &AUIMessage{
		BaseMessage: newBase(data),
		AUIID:       strings.TrimSpace(parts[0]),
		MsgType:     strings.TrimSpace(parts[1]),
		Line:        strings.TrimSpace(parts[2]),
	}
	if len(parts) > 3 {
		msg.Text = strings.TrimSpace(parts[3])
	}

	return msg, nil
}
