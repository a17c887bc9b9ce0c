package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopics(t *testing.T) {
	topics := NewTopics("ad2mqtt")

	assert.Equal(t, "ad2mqtt/status", topics.Status())
	assert.Equal(t, "ad2mqtt/panel", topics.Panel())
	assert.Equal(t, "ad2mqtt/zone/12", topics.Zone(12))
	assert.Equal(t, "ad2mqtt/relay/12/1", topics.Relay(12, 1))
	assert.Equal(t, "ad2mqtt/event/zone-fault", topics.Event("zone_fault"))
	assert.Equal(t, "ad2mqtt/keys", topics.Keys())
}
