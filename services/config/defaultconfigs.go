// services/config/defaultconfigs.go
package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Populate embeddedConfigs at build time (e.g. via code generation) or
// manually during development.
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that device
// -----------------------------------------------------------------------------

const cfgSaberprop = `{
  "power": {
    "poll_ms": 10,
    "min_timeout_ms": 20,
    "default_timeout_ms": 1000,
    "startup_domains": ["CPU"],
    "timeouts": {
      "CPU": 60000,
      "SD": 5000,
      "AMP": 50
    },
    "rtc_debounce_samples": 3,
    "charge_wake": true
  },
  "battery": {
  }
}`

var embeddedConfigs = map[string][]byte{
	"saberprop": []byte(cfgSaberprop),
}
