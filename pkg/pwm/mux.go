package pwm

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/golang/glog"
	fx "github.com/waybeam/crsfpwm/pkg/framework"
)

// PinMux writes a value to the pin multiplexing register.
type PinMux interface {
	WriteMux(value uint16) error
}

// Default register and values for routing pwm0/pwm1 to their pins.
const (
	DefaultMuxRegister = "0x1f207994"
	DefaultMuxPWM0     = 0x1102
	DefaultMuxPWM1     = 0x1121
	DefaultMuxBoth     = 0x1122
)

// DevmemMux writes the register through the external devmem utility.
type DevmemMux struct {
	Register string
	// Command defaults to "devmem".
	Command string
}

// WriteMux implements PinMux.
func (m *DevmemMux) WriteMux(value uint16) error {
	name := m.Command
	if name == "" {
		name = "devmem"
	}
	cmd := exec.Command(name, m.Register, "16", fmt.Sprintf("0x%04x", value))
	if out, err := cmd.CombinedOutput(); err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%s %s=0x%04x: %w: %s", name, m.Register, value, err, msg)
		}
		return fmt.Errorf("%s %s=0x%04x: %w", name, m.Register, value, err)
	}
	return nil
}

// MuxMode selects how the pin mux is initialized.
type MuxMode int

// Mux modes.
const (
	MuxNone MuxMode = iota
	MuxPerChannel
	MuxOneShot
)

func (m MuxMode) String() string {
	switch m {
	case MuxNone:
		return "none"
	case MuxPerChannel:
		return "per-channel"
	case MuxOneShot:
		return "one-shot"
	}
	return fmt.Sprintf("MuxMode(%d)", int(m))
}

// MuxPlan describes the pin mux writes performed at startup.
type MuxPlan struct {
	Mode MuxMode
	// Channel holds the per-channel values indexed by PWM index.
	Channel [2]uint16
	// Value is written once in MuxOneShot mode.
	Value uint16
}

// Apply performs the writes for the PWM indexes in use. Failures are
// collected; callers treat them as warnings.
func (p MuxPlan) Apply(mux PinMux, indexes []int) error {
	var errs fx.AggregatedError
	switch p.Mode {
	case MuxNone:
		glog.V(1).Info("MUX: disabled")
	case MuxOneShot:
		if err := mux.WriteMux(p.Value); err != nil {
			errs.Add(fmt.Errorf("one-shot mux write 0x%04x: %w", p.Value, err))
		} else {
			glog.V(1).Infof("MUX: one-shot write 0x%04x", p.Value)
		}
	case MuxPerChannel:
		for _, index := range indexes {
			if index < 0 || index >= len(p.Channel) {
				errs.Add(fmt.Errorf("no mux value for pwm%d", index))
				continue
			}
			val := p.Channel[index]
			if err := mux.WriteMux(val); err != nil {
				errs.Add(fmt.Errorf("mux write for pwm%d: %w", index, err))
			} else {
				glog.V(2).Infof("MUX: pwm%d -> 0x%04x", index, val)
			}
		}
	default:
		errs.Add(fmt.Errorf("unknown mux mode %v", p.Mode))
	}
	return errs.Aggregate()
}
