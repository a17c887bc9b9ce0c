package mqtt

import (
	"fmt"

	"ad2mqtt/internal/util"
)

type Topics struct {
	prefix string
}

func NewTopics(prefix string) *Topics {
	return &Topics{prefix: prefix}
}

func (t *Topics) Status() string {
	return fmt.Sprintf("%s/status", t.prefix)
}

func (t *Topics) Panel() string {
	return fmt.Sprintf("%s/panel", t.prefix)
}

func (t *Topics) Zone(zone int) string {
	return fmt.Sprintf("%s/zone/%d", t.prefix, zone)
}

func (t *Topics) Relay(address, channel int) string {
	return fmt.Sprintf("%s/relay/%d/%d", t.prefix, address, channel)
}

func (t *Topics) Event(name string) string {
	return fmt.Sprintf("%s/event/%s", t.prefix, util.Slugify(name))
}

func (t *Topics) Keys() string {
	return fmt.Sprintf("%s/keys", t.prefix)
}
