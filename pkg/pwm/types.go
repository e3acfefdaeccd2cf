// Package pwm drives hardware pulse-width outputs for servos and ESCs.
package pwm

import (
	"errors"
	"io"
)

// ErrNoDutyMicros indicates the PWM driver does not expose duty_us.
var ErrNoDutyMicros = errors.New("duty_us attribute missing (driver patch not present?)")

// Device represents a hardware PWM channel.
type Device interface {
	io.Closer
	// Index returns the channel index on the chip.
	Index() int
	// Export makes the channel available, creating it if absent.
	Export() error
	// SetEnabled turns the output on or off.
	SetEnabled(bool) error
	// SetPeriod sets the period attribute. On the reference board
	// support package the value is the frequency in Hz.
	SetPeriod(int) error
	// SetDutyMicros sets the pulse width in microseconds.
	SetDutyMicros(int) error
}

// Chip provides Devices by index.
type Chip interface {
	Device(index int) Device
}
