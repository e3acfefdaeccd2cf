package pwm

import (
	"fmt"

	"github.com/golang/glog"
)

// Limits defines the clamp range and the safe center value in microseconds.
type Limits struct {
	Min    int `yaml:"min-us"`
	Max    int `yaml:"max-us"`
	Center int `yaml:"center-us"`
}

// Validate checks Min <= Center <= Max.
func (l Limits) Validate() error {
	if l.Min > l.Max {
		return fmt.Errorf("min %dus is above max %dus", l.Min, l.Max)
	}
	if l.Center < l.Min || l.Center > l.Max {
		return fmt.Errorf("center %dus outside %d..%dus", l.Center, l.Min, l.Max)
	}
	return nil
}

// Clamp limits us into [Min, Max].
func (l Limits) Clamp(us int) int {
	if us < l.Min {
		return l.Min
	}
	if us > l.Max {
		return l.Max
	}
	return us
}

// Output is one physical output with clamped, write-if-changed updates.
// It is not safe for concurrent use.
type Output struct {
	index     int
	dev       Device
	limits    Limits
	last      int
	available bool
}

// Open brings dev online: export, disable, set period, set duty to
// center and enable. Any failure leaves the output unusable and is
// returned; an output in an unknown state must not be driven.
func Open(dev Device, period int, limits Limits) (*Output, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	o := &Output{index: dev.Index(), dev: dev, limits: limits}
	steps := []struct {
		name string
		fn   func() error
	}{
		{"export", dev.Export},
		{"disable", func() error { return dev.SetEnabled(false) }},
		{"set period", func() error { return dev.SetPeriod(period) }},
		{"set center", func() error { return dev.SetDutyMicros(limits.Center) }},
		{"enable", func() error { return dev.SetEnabled(true) }},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return nil, fmt.Errorf("pwm%d %s: %w", o.index, step.name, err)
		}
	}
	o.last, o.available = limits.Center, true
	glog.V(1).Infof("PWM%d ready: period=%d center=%dus", o.index, period, limits.Center)
	return o, nil
}

// Disabled creates an Output which ignores all commands.
func Disabled(index int) *Output {
	return &Output{index: index, last: -1}
}

// Index returns the channel index.
func (o *Output) Index() int {
	return o.index
}

// Available tells whether the output accepts commands.
func (o *Output) Available() bool {
	return o.available
}

// Value returns the last value written to hardware.
func (o *Output) Value() int {
	return o.last
}

// Limits returns the configured limits.
func (o *Output) Limits() Limits {
	return o.limits
}

// Set clamps us and writes it if it differs from the last written value.
// On write failure the last value is kept so the same command is retried.
func (o *Output) Set(us int) (written bool, err error) {
	if !o.available {
		return false, nil
	}
	v := o.limits.Clamp(us)
	if v == o.last {
		glog.V(3).Infof("PWM%d unchanged: duty_us=%d", o.index, v)
		return false, nil
	}
	if err := o.dev.SetDutyMicros(v); err != nil {
		return false, err
	}
	o.last = v
	if v != us {
		glog.V(2).Infof("PWM%d <- %dus (clamped from %dus)", o.index, v, us)
	} else {
		glog.V(2).Infof("PWM%d <- %dus", o.index, v)
	}
	return true, nil
}

// Center sets the output to the center value.
func (o *Output) Center() (bool, error) {
	return o.Set(o.limits.Center)
}

// Close releases the device.
func (o *Output) Close() error {
	o.available = false
	if o.dev != nil {
		return o.dev.Close()
	}
	return nil
}
