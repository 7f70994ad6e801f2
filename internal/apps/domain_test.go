package apps

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripEnvSuffix(t *testing.T) {
	cases := map[string]string{
		"BILLING_DEV":    "BILLING",
		"BILLING_TEST":   "BILLING",
		"BILLING_PROD":   "BILLING",
		"BILLING":        "BILLING",
		"FAM":            "FAM",
		"DEVICE_MANAGER": "DEVICE_MANAGER",
		"_PROD":          "",
	}
	for input, want := range cases {
		assert.Equal(t, want, StripEnvSuffix(input), "input %q", input)
	}
}

func TestApplicationDisplayName(t *testing.T) {
	app := Application{Name: "TELEMETRY_DEV", Environment: EnvDev}
	assert.Equal(t, "TELEMETRY", app.DisplayName())
}
