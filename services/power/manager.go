// services/power/manager.go
package power

import (
	"time"

	"propcode-go/errcode"
	"propcode-go/services/power/board"
)

// Config holds the arbitration tuning knobs. Zero values select the
// defaults below.
type Config struct {
	PollPeriod     time.Duration // arbitration tick period
	MinTimeout     time.Duration // floor applied to every timeout request
	DefaultTimeout time.Duration // budget for domains that declare none
	JitterBudget   time.Duration // ticks with a larger measured gap are skipped
	Startup        Mask          // domains energised at boot and after wake
	RTCDebounce    int           // consecutive charging samples to commit an RTC wake
	ChargeWake     bool          // arm the periodic charge-detect wake source
	Entry          board.StopEntry
}

const (
	defaultPollPeriod     = 10 * time.Millisecond
	defaultMinTimeout     = 20 * time.Millisecond
	defaultDefaultTimeout = time.Second
	defaultRTCDebounce    = 3
)

func (c *Config) setDefaults() {
	if c.PollPeriod == 0 {
		c.PollPeriod = defaultPollPeriod
	}
	if c.MinTimeout == 0 {
		c.MinTimeout = defaultMinTimeout
	}
	if c.DefaultTimeout == 0 {
		c.DefaultTimeout = defaultDefaultTimeout
	}
	if c.JitterBudget == 0 {
		c.JitterBudget = 2 * c.PollPeriod
	}
	if c.Startup == 0 {
		c.Startup = CPU
	}
	if c.RTCDebounce == 0 {
		c.RTCDebounce = defaultRTCDebounce
	}
}

// Manager owns the domain and subscriber registries, the global power-state
// mask and the sleep transition. It is not goroutine-safe: all calls must
// come from the single task that runs the arbitration loop (ISRs only ever
// touch the wake latch, never the manager).
type Manager struct {
	cfg     Config
	sleeper board.Sleeper

	domains []*Domain
	subs    []*Subscriber

	state    Mask
	lastTick time.Time
	lastWake WakeSource

	inUse    func() bool // deep-sleep override refusal predicate
	preSleep []func()
}

func New(s board.Sleeper, cfg Config) *Manager {
	cfg.setDefaults()
	return &Manager{cfg: cfg, sleeper: s}
}

// RegisterDomain adds a rail to arbitration. The id must be a single bit
// and not already claimed.
func (m *Manager) RegisterDomain(d *Domain) error {
	if d.ID == 0 || d.ID&(d.ID-1) != 0 {
		return errcode.BadDomainID
	}
	for _, have := range m.domains {
		if have.ID == d.ID {
			return errcode.DomainTaken
		}
	}
	d.def = m.cfg.DefaultTimeout
	d.floor = m.cfg.MinTimeout
	m.domains = append(m.domains, d)
	return nil
}

// RegisterSubscriber adds a consumer. The domain set must be non-empty;
// bits without a registered domain are tolerated and simply never satisfied.
func (m *Manager) RegisterSubscriber(s *Subscriber) error {
	if s.Domains == 0 {
		return errcode.InvalidParams
	}
	s.mgr = m
	m.subs = append(m.subs, s)
	return nil
}

// SetInUseCheck installs the predicate consulted by DeepSleepNow.
func (m *Manager) SetInUseCheck(f func() bool) { m.inUse = f }

// OnBeforeSleep appends a hook run at the start of every sleep transition,
// before rails are forced off. Hooks may momentarily re-power domains.
func (m *Manager) OnBeforeSleep(f func()) { m.preSleep = append(m.preSleep, f) }

// Setup runs one-time domain init and energises the startup set.
func (m *Manager) Setup() {
	for _, d := range m.domains {
		if d.Init != nil {
			d.Init()
		}
	}
	m.Activate(m.cfg.Startup)
}

// State reports the global power-state mask.
func (m *Manager) State() Mask { return m.state }

// LastWake reports the source that ended the most recent sleep.
func (m *Manager) LastWake() WakeSource { return m.lastWake }

// Config returns the active tuning values.
func (m *Manager) Config() Config { return m.cfg }

// UpdateConfig replaces the tuning values, re-deriving defaults and
// restamping per-domain bounds.
func (m *Manager) UpdateConfig(cfg Config) {
	cfg.setDefaults()
	m.cfg = cfg
	for _, d := range m.domains {
		d.def = cfg.DefaultTimeout
		d.floor = cfg.MinTimeout
	}
}

// SetDomainTimeout overrides a domain's own idle budget. Returns false for
// an unknown name.
func (m *Manager) SetDomainTimeout(name string, t time.Duration) bool {
	d := m.DomainByName(name)
	if d == nil {
		return false
	}
	d.Timeout = t
	return true
}

func (m *Manager) DomainByName(name string) *Domain {
	for _, d := range m.domains {
		if d.Name == name {
			return d
		}
	}
	return nil
}

func (m *Manager) SubscriberByName(name string) *Subscriber {
	for _, s := range m.subs {
		if s.Name == name {
			return s
		}
	}
	return nil
}

func (m *Manager) Domains() []*Domain         { return m.domains }
func (m *Manager) Subscribers() []*Subscriber { return m.subs }

// Activate powers up every domain in mask that is currently off, arming
// each with its default budget, then fires OnPowerOn for subscribers whose
// full domain set is now satisfied. Returns true if anything turned on.
// With an empty registry this is a no-op.
func (m *Manager) Activate(mask Mask) bool {
	if len(m.domains) == 0 {
		return false
	}
	turned := false
	for _, d := range m.domains {
		if d.ID&mask == 0 || d.ID&m.state != 0 {
			continue
		}
		d.ResetTimeout(0)
		m.state |= d.ID
		d.SetPower(true)
		turned = true
	}
	if !turned {
		return false
	}
	for _, s := range m.subs {
		if s.IsOn() && s.OnPowerOn != nil {
			s.OnPowerOn()
		}
	}
	return true
}

// Tick runs one arbitration pass. changed reports a state-mask transition;
// slept reports that the system went through a full sleep/wake cycle (in
// which case Tick only returns after the wake, with the startup set back
// up). A tick whose measured gap exceeds the jitter budget is skipped so a
// delayed loop cannot expire timers spuriously.
func (m *Manager) Tick(now time.Time) (changed, slept bool) {
	elapsed := now.Sub(m.lastTick)
	m.lastTick = now
	if len(m.domains) == 0 {
		return false, false
	}
	if elapsed > m.cfg.JitterBudget {
		return false, false
	}

	held := Mask(0)
	for _, s := range m.subs {
		if s.Hold != nil && s.Hold() {
			held |= s.Domains
		}
	}

	next := m.state
	for _, d := range m.domains {
		if d.ID&m.state == 0 || d.ID&held != 0 {
			continue
		}
		if d.CheckTimeout(elapsed) {
			next &^= d.ID
		}
	}
	if next == m.state {
		return false, false
	}

	// Off-callbacks run strictly before any rail is cut, so subscribers can
	// still use their hardware (flush a filesystem, mute an amp).
	for _, s := range m.subs {
		if m.state&s.Domains == s.Domains && next&s.Domains != s.Domains {
			if s.OnPowerOff != nil {
				s.OnPowerOff()
			}
		}
	}
	for _, d := range m.domains {
		if d.ID&m.state != 0 && d.ID&next == 0 {
			d.SetPower(false)
			m.state &^= d.ID
		}
	}

	if m.state != 0 {
		return true, false
	}
	m.sleepAndWake()
	m.Activate(m.cfg.Startup)
	return true, true
}

// DeepSleepNow is the administrative override: it refuses while the device
// is busy, otherwise it takes the system down immediately. Every
// subscriber's off-callback fires first, then all rails are cut, then the
// normal sleep transition runs. Returns after wake with the startup set up.
func (m *Manager) DeepSleepNow() error {
	if m.inUse != nil && m.inUse() {
		return errcode.DeviceInUse
	}
	if len(m.domains) == 0 {
		return nil
	}
	for _, s := range m.subs {
		if s.OnPowerOff != nil {
			s.OnPowerOff()
		}
	}
	for _, d := range m.domains {
		if d.ID&m.state != 0 {
			d.SetPower(false)
			m.state &^= d.ID
		}
		d.countdown = 0
	}
	m.sleepAndWake()
	m.Activate(m.cfg.Startup)
	return nil
}
