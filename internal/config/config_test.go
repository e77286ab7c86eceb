package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDuration_EnvOverridesDefault(t *testing.T) {
	t.Setenv("SERVER_READ_TIMEOUT", "90s")
	assert.Equal(t, 90*time.Second, parseDuration("SERVER_READ_TIMEOUT", "15s"))
}

func TestParseDuration_MalformedEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("SERVER_READ_TIMEOUT", "soon")
	assert.Equal(t, 15*time.Second, parseDuration("SERVER_READ_TIMEOUT", "15s"))
}

func TestParseDuration_MalformedDefaultPanics(t *testing.T) {
	// Defaults are compile-time constants; a typo must fail loudly instead
	// of silently becoming a zero duration.
	assert.Panics(t, func() {
		parseDuration("SERVER_READ_TIMEOUT_UNSET", "soon")
	})
}
