package pwm

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// DefaultChipPath is the sysfs directory of the first PWM chip.
const DefaultChipPath = "/sys/class/pwm/pwmchip0"

// SysfsChip is a PWM chip exposed through sysfs.
type SysfsChip struct {
	Path string
}

// NewSysfsChip creates a SysfsChip, using DefaultChipPath if path is empty.
func NewSysfsChip(path string) *SysfsChip {
	if path == "" {
		path = DefaultChipPath
	}
	return &SysfsChip{Path: path}
}

// Device implements Chip.
func (c *SysfsChip) Device(index int) Device {
	return &sysfsDevice{
		chip:  c,
		index: index,
		dir:   filepath.Join(c.Path, "pwm"+strconv.Itoa(index)),
	}
}

type sysfsDevice struct {
	chip  *SysfsChip
	index int
	dir   string
}

// Index implements Device.
func (d *sysfsDevice) Index() int {
	return d.index
}

// Export implements Device.
func (d *sysfsDevice) Export() error {
	if !pathExists(d.dir) {
		err := writeInt(filepath.Join(d.chip.Path, "export"), d.index)
		// another process may have exported the channel meanwhile.
		if err != nil && !pathExists(d.dir) {
			return fmt.Errorf("export pwm%d: %w", d.index, err)
		}
	}
	if !pathExists(filepath.Join(d.dir, "duty_us")) {
		return fmt.Errorf("pwm%d: %w", d.index, ErrNoDutyMicros)
	}
	return nil
}

// SetEnabled implements Device.
func (d *sysfsDevice) SetEnabled(enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}
	return d.write("enable", v)
}

// SetPeriod implements Device.
func (d *sysfsDevice) SetPeriod(period int) error {
	return d.write("period", period)
}

// SetDutyMicros implements Device.
func (d *sysfsDevice) SetDutyMicros(us int) error {
	return d.write("duty_us", us)
}

// Close implements Device. Attributes are opened per write, so there
// is nothing to release and the output keeps its last state.
func (d *sysfsDevice) Close() error {
	return nil
}

func (d *sysfsDevice) write(attr string, v int) error {
	if err := writeInt(filepath.Join(d.dir, attr), v); err != nil {
		return fmt.Errorf("pwm%d %s=%d: %w", d.index, attr, v, err)
	}
	return nil
}

func writeInt(path string, v int) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	_, err = f.Write([]byte(strconv.Itoa(v)))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
