// Package failsafe decides when outputs must be forced to their center
// position because valid control data stopped arriving.
package failsafe

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig indicates the timing thresholds are inconsistent.
var ErrInvalidConfig = errors.New("invalid failsafe config")

// State is the link state.
type State int

// States.
const (
	// StateCentered means outputs are (or are about to be) at center.
	StateCentered State = iota
	// StateActive means fresh channel data is being applied.
	StateActive
)

func (s State) String() string {
	switch s {
	case StateCentered:
		return "CENTERED"
	case StateActive:
		return "ACTIVE"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Action is what Tick asks the caller to do.
type Action int

// Actions.
const (
	// ActionNone leaves outputs untouched.
	ActionNone Action = iota
	// ActionHold reports the link entered the hold band. Outputs keep
	// their last commanded values; nothing needs to be written.
	ActionHold
	// ActionCenter requires all outputs to be centered.
	ActionCenter
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionHold:
		return "hold"
	case ActionCenter:
		return "center"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// Config defines the thresholds.
type Config struct {
	// Hold is the age of the last valid frame after which the link is
	// considered degraded. Outputs are not changed in this band.
	Hold time.Duration `yaml:"hold"`
	// CenterTimeout is the age after which outputs are centered.
	CenterTimeout time.Duration `yaml:"center-timeout"`
}

// Validate checks 0 <= Hold <= CenterTimeout.
func (c Config) Validate() error {
	if c.Hold < 0 {
		return fmt.Errorf("%w: hold %v is negative", ErrInvalidConfig, c.Hold)
	}
	if c.CenterTimeout < c.Hold {
		return fmt.Errorf("%w: center timeout %v is shorter than hold %v",
			ErrInvalidConfig, c.CenterTimeout, c.Hold)
	}
	return nil
}

// Controller is the link state machine. It is not safe for concurrent
// use; the session loop owns it.
type Controller struct {
	conf      Config
	state     State
	lastValid time.Time
	holding   bool
}

// New creates a Controller in StateCentered.
func New(conf Config) (*Controller, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &Controller{conf: conf}, nil
}

// Config returns the thresholds.
func (c *Controller) Config() Config {
	return c.conf
}

// State returns the current state.
func (c *Controller) State() State {
	return c.state
}

// LastValid returns the time of the last valid frame, zero if none.
func (c *Controller) LastValid() time.Time {
	return c.lastValid
}

// Age returns how long ago the last valid frame arrived, or zero if no
// frame has arrived yet.
func (c *Controller) Age(now time.Time) time.Duration {
	if c.lastValid.IsZero() {
		return 0
	}
	return now.Sub(c.lastValid)
}

// Frame records a valid channel frame at now. It returns true if the
// link was centered before, i.e. the link recovered.
func (c *Controller) Frame(now time.Time) (recovered bool) {
	recovered = c.state == StateCentered
	c.state, c.lastValid, c.holding = StateActive, now, false
	return
}

// Tick evaluates the timeouts at now. ActionCenter is returned once per
// transition to StateCentered and ActionHold once per entry into the
// hold band.
func (c *Controller) Tick(now time.Time) Action {
	if c.state != StateActive {
		return ActionNone
	}
	age := now.Sub(c.lastValid)
	if age >= c.conf.CenterTimeout {
		c.state, c.holding = StateCentered, false
		return ActionCenter
	}
	if age >= c.conf.Hold && !c.holding {
		c.holding = true
		return ActionHold
	}
	return ActionNone
}

// Holding tells whether the link is in the hold band.
func (c *Controller) Holding() bool {
	return c.holding
}

// Fault forces StateCentered after a transport error, independent of
// the timers. It returns the state before the fault.
func (c *Controller) Fault() State {
	prev := c.state
	c.state, c.holding = StateCentered, false
	return prev
}
