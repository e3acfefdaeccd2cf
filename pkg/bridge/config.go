package bridge

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang/glog"
	"gopkg.in/yaml.v3"

	"github.com/waybeam/crsfpwm/pkg/crsf"
	"github.com/waybeam/crsfpwm/pkg/env"
	"github.com/waybeam/crsfpwm/pkg/failsafe"
	fx "github.com/waybeam/crsfpwm/pkg/framework"
	"github.com/waybeam/crsfpwm/pkg/pwm"
)

// ErrInvalidConfig indicates a configuration value is out of range.
var ErrInvalidConfig = errors.New("invalid config")

// DefaultTick is the session tick period.
const DefaultTick = 20 * time.Millisecond

// Mux modes accepted by -mux-mode.
const (
	MuxModeAuto       = "auto"
	MuxModeNone       = "none"
	MuxModePerChannel = "per-channel"
	MuxModeOneShot    = "one-shot"
)

// Config defines the bridge options.
type Config struct {
	// ConfigFile is an optional YAML file. Flags given explicitly on the
	// command line override its values.
	ConfigFile string `yaml:"-"`

	Port int `yaml:"port"`
	// PWM0Channel and PWM1Channel map CRSF channels 1..16 to pwm0 and
	// pwm1, 0 disables the output.
	PWM0Channel int           `yaml:"pwm0-ch"`
	PWM1Channel int           `yaml:"pwm1-ch"`
	Hz          int           `yaml:"hz"`
	Limits      pwm.Limits    `yaml:",inline"`
	HoldMs      int           `yaml:"hold-ms"`
	TimeoutMs   int           `yaml:"center-timeout-ms"`
	Tick        time.Duration `yaml:"tick"`
	PWMChip     string        `yaml:"pwmchip"`

	NoMux       bool   `yaml:"no-mux"`
	MuxMode     string `yaml:"mux-mode"`
	MuxRegister string `yaml:"mux-reg"`
	// MuxPWM0 and MuxPWM1 are loaded by Load, which also records
	// whether a file specified them.
	MuxPWM0 uint `yaml:"-"`
	MuxPWM1 uint `yaml:"-"`
	// MuxInitVal selects a one-shot mux write, -1 when unset.
	MuxInitVal int `yaml:"mux-init-val"`

	AddressPolicy crsf.AddressPolicy `yaml:"address-policy"`
	Address       uint               `yaml:"address"`

	// MQTTBrokerURL enables status publishing, e.g.
	// mqtt://host:1883/waybeam/
	MQTTBrokerURL string `yaml:"mqtt"`
	BridgeID      string `yaml:"bridge-id"`

	muxValuesExplicit bool
}

var defaultConfig = Config{
	Port:        9000,
	PWM0Channel: 1,
	PWM1Channel: 2,
	Hz:          50,
	Limits:      pwm.Limits{Min: 1000, Max: 2000, Center: 1500},
	HoldMs:      300,
	TimeoutMs:   500,
	Tick:        DefaultTick,
	PWMChip:     pwm.DefaultChipPath,
	MuxMode:     MuxModeAuto,
	MuxRegister: pwm.DefaultMuxRegister,
	MuxPWM0:     pwm.DefaultMuxPWM0,
	MuxPWM1:     pwm.DefaultMuxPWM1,
	MuxInitVal:  -1,
	Address:     uint(crsf.AddressFlightController),
}

func init() {
	if val := os.Getenv("WAYBEAM_PWM_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	defaultConfig.SetupFlags(flag.CommandLine)
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// SetupFlags registers flags bound to c.
func (c *Config) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "YAML config file, explicit flags take precedence")
	fs.IntVar(&c.Port, "port", c.Port, "UDP listen port")
	fs.IntVar(&c.PWM0Channel, "pwm0-ch", c.PWM0Channel, "Map CRSF channel N (1..16) to pwm0, 0 disables")
	fs.IntVar(&c.PWM1Channel, "pwm1-ch", c.PWM1Channel, "Map CRSF channel N (1..16) to pwm1, 0 disables")
	fs.IntVar(&c.Hz, "hz", c.Hz, "PWM frequency in Hz")
	fs.IntVar(&c.Limits.Min, "min-us", c.Limits.Min, "Clamp minimum pulse width in us")
	fs.IntVar(&c.Limits.Max, "max-us", c.Limits.Max, "Clamp maximum pulse width in us")
	fs.IntVar(&c.Limits.Center, "center-us", c.Limits.Center, "Center (failsafe) pulse width in us")
	fs.IntVar(&c.HoldMs, "hold-ms", c.HoldMs, "Hold last command for this long after link loss")
	fs.IntVar(&c.TimeoutMs, "center-timeout-ms", c.TimeoutMs, "Center outputs after this long without valid frames")
	fs.DurationVar(&c.Tick, "tick", c.Tick, "Control loop tick period")
	fs.StringVar(&c.PWMChip, "pwmchip", c.PWMChip, "sysfs PWM chip directory")
	fs.BoolVar(&c.NoMux, "no-mux", c.NoMux, "Skip pin mux writes")
	fs.StringVar(&c.MuxMode, "mux-mode", c.MuxMode, "Pin mux mode: auto, none, per-channel or one-shot")
	fs.StringVar(&c.MuxRegister, "mux-reg", c.MuxRegister, "Pin mux register address")
	fs.UintVar(&c.MuxPWM0, "mux-pwm0", c.MuxPWM0, "Mux value written for pwm0 (per-channel mode)")
	fs.UintVar(&c.MuxPWM1, "mux-pwm1", c.MuxPWM1, "Mux value written for pwm1 (per-channel mode)")
	fs.IntVar(&c.MuxInitVal, "mux-init-val", c.MuxInitVal, "Single mux value written once at startup, -1 disables")
	fs.TextVar(&c.AddressPolicy, "address-policy", c.AddressPolicy, "CRSF address filtering: strict or any")
	fs.UintVar(&c.Address, "address", c.Address, "Expected CRSF address with -address-policy=strict")
	fs.StringVar(&c.MQTTBrokerURL, "mqtt", c.MQTTBrokerURL, "MQTT broker URL for status publishing, empty disables")
	fs.StringVar(&c.BridgeID, "bridge-id", c.BridgeID, "Bridge ID in status topics, defaults to the machine ID")
}

// Parse parses args into flags registered by SetupFlags. If a config
// file is specified, it is loaded and args are parsed again so explicit
// flags override the file.
func (c *Config) Parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if c.ConfigFile != "" {
		if err := c.Load(c.ConfigFile); err != nil {
			return err
		}
		if err := fs.Parse(args); err != nil {
			return err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "mux-pwm0" || f.Name == "mux-pwm1" {
			c.muxValuesExplicit = true
		}
	})
	if c.BridgeID == "" {
		c.BridgeID = env.MachineID()
	}
	return c.Validate()
}

// Load reads a YAML config file over c.
func (c *Config) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var file struct {
		Config  `yaml:",inline"`
		MuxPWM0 *uint `yaml:"mux-pwm0"`
		MuxPWM1 *uint `yaml:"mux-pwm1"`
	}
	file.Config = *c
	if err := yaml.NewDecoder(f).Decode(&file); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	configFile := c.ConfigFile
	*c = file.Config
	c.ConfigFile = configFile
	if file.MuxPWM0 != nil {
		c.MuxPWM0, c.muxValuesExplicit = *file.MuxPWM0, true
	}
	if file.MuxPWM1 != nil {
		c.MuxPWM1, c.muxValuesExplicit = *file.MuxPWM1, true
	}
	glog.V(1).Infof("config loaded from %s", path)
	return nil
}

// Validate checks all values.
func (c *Config) Validate() error {
	var errs fx.AggregatedError
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			errs.Add(fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidConfig}, args...)...))
		}
	}
	check(c.Port > 0 && c.Port <= 65535, "port %d out of range 1..65535", c.Port)
	check(c.PWM0Channel >= 0 && c.PWM0Channel <= crsf.NumChannels, "pwm0-ch %d out of range 0..16", c.PWM0Channel)
	check(c.PWM1Channel >= 0 && c.PWM1Channel <= crsf.NumChannels, "pwm1-ch %d out of range 0..16", c.PWM1Channel)
	check(c.Hz > 0, "hz must be positive")
	check(c.Limits.Min >= 500, "min-us %d below 500", c.Limits.Min)
	check(c.Limits.Max <= 2500, "max-us %d above 2500", c.Limits.Max)
	if err := c.Limits.Validate(); err != nil {
		errs.Add(fmt.Errorf("%w: %v", ErrInvalidConfig, err))
	}
	if err := c.FailsafeConfig().Validate(); err != nil {
		errs.Add(fmt.Errorf("%w: %v", ErrInvalidConfig, err))
	}
	check(c.Tick > 0, "tick must be positive")
	check(c.MuxPWM0 <= 0xffff, "mux-pwm0 0x%x out of range 0..0xffff", c.MuxPWM0)
	check(c.MuxPWM1 <= 0xffff, "mux-pwm1 0x%x out of range 0..0xffff", c.MuxPWM1)
	check(c.MuxInitVal >= -1 && c.MuxInitVal <= 0xffff, "mux-init-val %d out of range", c.MuxInitVal)
	switch c.MuxMode {
	case MuxModeAuto, MuxModeNone, MuxModePerChannel, MuxModeOneShot:
	default:
		check(false, "unknown mux-mode %q", c.MuxMode)
	}
	check(c.Address <= 0xff, "address 0x%x is not a byte", c.Address)
	check(c.AddressPolicy == crsf.AddressStrict || c.AddressPolicy == crsf.AddressAny,
		"unknown address policy %v", c.AddressPolicy)
	return errs.Aggregate()
}

// Channels returns the CRSF channel mapped to each PWM index.
func (c *Config) Channels() []int {
	return []int{c.PWM0Channel, c.PWM1Channel}
}

// EnabledOutputs returns the PWM indexes with a channel mapped.
func (c *Config) EnabledOutputs() (indexes []int) {
	for index, ch := range c.Channels() {
		if ch > 0 {
			indexes = append(indexes, index)
		}
	}
	return
}

// FailsafeConfig returns the failsafe thresholds.
func (c *Config) FailsafeConfig() failsafe.Config {
	return failsafe.Config{
		Hold:          time.Duration(c.HoldMs) * time.Millisecond,
		CenterTimeout: time.Duration(c.TimeoutMs) * time.Millisecond,
	}
}

// MuxPlan resolves the pin mux strategy. In auto mode an explicit
// -mux-init-val selects one-shot, explicit per-channel values select
// per-channel, and with both outputs enabled the combined value is
// written once.
func (c *Config) MuxPlan() pwm.MuxPlan {
	plan := pwm.MuxPlan{
		Channel: [2]uint16{uint16(c.MuxPWM0), uint16(c.MuxPWM1)},
		Value:   pwm.DefaultMuxBoth,
	}
	if c.MuxInitVal >= 0 {
		plan.Value = uint16(c.MuxInitVal)
	}
	switch {
	case c.NoMux || c.MuxMode == MuxModeNone:
		plan.Mode = pwm.MuxNone
	case c.MuxMode == MuxModeOneShot:
		plan.Mode = pwm.MuxOneShot
	case c.MuxMode == MuxModePerChannel:
		plan.Mode = pwm.MuxPerChannel
	case c.MuxInitVal >= 0:
		plan.Mode = pwm.MuxOneShot
	case !c.muxValuesExplicit && len(c.EnabledOutputs()) == 2:
		plan.Mode = pwm.MuxOneShot
	default:
		plan.Mode = pwm.MuxPerChannel
	}
	return plan
}

// PinMux creates the pin mux writer.
func (c *Config) PinMux() pwm.PinMux {
	return &pwm.DevmemMux{Register: c.MuxRegister}
}

// NewDecoder creates the frame decoder.
func (c *Config) NewDecoder() *crsf.Decoder {
	return crsf.NewDecoder(c.AddressPolicy, byte(c.Address))
}

// OpenOutputs opens the enabled outputs on chip. Outputs with no channel
// mapped are returned disabled. Any failure closes what was opened.
func (c *Config) OpenOutputs(chip pwm.Chip) ([]Mapping, error) {
	var mappings []Mapping
	for index, ch := range c.Channels() {
		if ch == 0 {
			mappings = append(mappings, Mapping{Output: pwm.Disabled(index)})
			continue
		}
		out, err := pwm.Open(chip.Device(index), c.Hz, c.Limits)
		if err != nil {
			for _, m := range mappings {
				m.Output.Close()
			}
			return nil, err
		}
		mappings = append(mappings, Mapping{Output: out, Channel: ch})
	}
	return mappings, nil
}

// NewSession creates a Session reading from source.
func (c *Config) NewSession(source PacketSource, mappings []Mapping, observer Observer) (*Session, error) {
	ctl, err := failsafe.New(c.FailsafeConfig())
	if err != nil {
		return nil, err
	}
	return &Session{
		Source:     source,
		Buffer:     crsf.NewBuffer(crsf.DefaultBufferSize),
		Decoder:    c.NewDecoder(),
		Failsafe:   ctl,
		Mappings:   mappings,
		Observer:   observer,
		TickPeriod: c.Tick,
	}, nil
}

// ListenAddr returns the UDP address to listen on.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// String summarizes the configuration in one line.
func (c *Config) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "UDP :%d | pwm0<-CH%d pwm1<-CH%d | %dHz | clamp %d..%dus | center %dus | hold %dms center@%dms | address %s",
		c.Port, c.PWM0Channel, c.PWM1Channel, c.Hz, c.Limits.Min, c.Limits.Max, c.Limits.Center,
		c.HoldMs, c.TimeoutMs, c.AddressPolicy)
	if c.AddressPolicy == crsf.AddressStrict {
		fmt.Fprintf(&sb, "(0x%02X)", c.Address)
	}
	return sb.String()
}
