package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Zone Fault", "zone-fault"},
		{"armed", "armed"},
		{"AC Power!", "ac-power"},
		{"Café Door", "cafe-door"},
		{"  spaced  out  ", "spaced-out"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in))
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "!READY", Normalize(" !READY\x00 "))
	assert.Equal(t, "", Normalize("\x00\x00"))
}
