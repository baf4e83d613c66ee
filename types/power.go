package types

// ------------------------
// Power manager (retained docs + control payloads)
// ------------------------

// Retained doc: power/state
type PowerState struct {
	Mask    uint8          `json:"mask"` // live domain bitmask
	Domains []DomainStatus `json:"domains"`
	Wake    string         `json:"wake,omitempty"` // source that ended the last sleep
	TSms    int64          `json:"ts_ms"`
}

type DomainStatus struct {
	Name        string `json:"name"`
	On          bool   `json:"on"`
	RemainingMS uint32 `json:"remaining_ms"` // 0 when unarmed or off
	TimeoutMS   uint32 `json:"timeout_ms"`   // domain default
}

type SubscriberStatus struct {
	Name string `json:"name"`
	Mask uint8  `json:"mask"`
	On   bool   `json:"on"`
	Hold bool   `json:"hold"`
}

// PowerConfig is the JSON document expected retained on config/power.
// Zero fields keep their built-in defaults.
type PowerConfig struct {
	PollMS             uint32            `json:"poll_ms,omitempty"`
	MinTimeoutMS       uint32            `json:"min_timeout_ms,omitempty"`
	DefaultTimeoutMS   uint32            `json:"default_timeout_ms,omitempty"`
	JitterBudgetMS     uint32            `json:"jitter_budget_ms,omitempty"`
	StartupDomains     []string          `json:"startup_domains,omitempty"`
	Timeouts           map[string]uint32 `json:"timeouts,omitempty"` // per-domain default overrides
	RTCDebounceSamples uint8             `json:"rtc_debounce_samples,omitempty"`
	ChargeWake         bool              `json:"charge_wake,omitempty"`
	StopEntry          string            `json:"stop_entry,omitempty"` // "wfi" (default) or "wfe"
}

// PowerRequest is the payload for power/control/request: a named subscriber
// asks for power, optionally with per-domain timeouts in registration order.
type PowerRequest struct {
	Subscriber string   `json:"subscriber"`
	TimeoutsMS []uint32 `json:"timeouts_ms,omitempty"`
}

// CommandResult is the reply to power/control/command.
type CommandResult struct {
	Handled bool   `json:"handled"`
	Output  string `json:"output"`
}

// ------------------------
// Battery monitor (retained: battery/value)
// ------------------------

type BatteryValue struct {
	MilliV  int32 `json:"mv"`
	Percent uint8 `json:"percent"`
	Low     bool  `json:"low"`
	TSms    int64 `json:"ts_ms"`
}
