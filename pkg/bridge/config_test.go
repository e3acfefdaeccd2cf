package bridge

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/waybeam/crsfpwm/pkg/crsf"
	"github.com/waybeam/crsfpwm/pkg/pwm"
)

func parseConfig(t *testing.T, args ...string) (*Config, error) {
	conf := NewConfig()
	conf.BridgeID = "test"
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	conf.SetupFlags(fs)
	return conf, conf.Parse(fs, args)
}

func TestConfigDefaults(t *testing.T) {
	conf, err := parseConfig(t)
	require.NoError(t, err)
	require.Equal(t, 9000, conf.Port)
	require.Equal(t, []int{1, 2}, conf.Channels())
	require.Equal(t, 50, conf.Hz)
	require.Equal(t, pwm.Limits{Min: 1000, Max: 2000, Center: 1500}, conf.Limits)
	require.Equal(t, 300*time.Millisecond, conf.FailsafeConfig().Hold)
	require.Equal(t, 500*time.Millisecond, conf.FailsafeConfig().CenterTimeout)
	require.Equal(t, DefaultTick, conf.Tick)
	require.Equal(t, crsf.AddressStrict, conf.AddressPolicy)
	require.Equal(t, uint(0xC8), conf.Address)
	require.Equal(t, ":9000", conf.ListenAddr())
}

func TestConfigFlags(t *testing.T) {
	conf, err := parseConfig(t,
		"-port", "9100", "-pwm0-ch", "4", "-pwm1-ch", "0", "-hz", "400",
		"-min-us", "900", "-max-us", "2100", "-center-us", "1450",
		"-hold-ms", "100", "-center-timeout-ms", "250",
		"-address-policy", "any", "-address", "0xEE", "-mux-reg", "0x1f200000")
	require.NoError(t, err)
	require.Equal(t, 9100, conf.Port)
	require.Equal(t, []int{4, 0}, conf.Channels())
	require.Equal(t, []int{0}, conf.EnabledOutputs())
	require.Equal(t, 400, conf.Hz)
	require.Equal(t, pwm.Limits{Min: 900, Max: 2100, Center: 1450}, conf.Limits)
	require.Equal(t, crsf.AddressAny, conf.AddressPolicy)
	require.Equal(t, byte(0xEE), conf.NewDecoder().Address)
	require.Equal(t, "0x1f200000", conf.PinMux().(*pwm.DevmemMux).Register)
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{"port zero", []string{"-port", "0"}},
		{"port too large", []string{"-port", "70000"}},
		{"channel too large", []string{"-pwm0-ch", "17"}},
		{"negative channel", []string{"-pwm1-ch", "-1"}},
		{"zero hz", []string{"-hz", "0"}},
		{"min too small", []string{"-min-us", "400"}},
		{"max too large", []string{"-max-us", "2600"}},
		{"center outside", []string{"-center-us", "2200"}},
		{"negative hold", []string{"-hold-ms", "-1"}},
		{"timeout below hold", []string{"-hold-ms", "600", "-center-timeout-ms", "500"}},
		{"zero tick", []string{"-tick", "0s"}},
		{"mux value", []string{"-mux-pwm0", "0x10000"}},
		{"mux init value", []string{"-mux-init-val", "0x10000"}},
		{"mux mode", []string{"-mux-mode", "sometimes"}},
		{"address", []string{"-address", "0x100"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseConfig(t, tc.args...)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalidConfig), "%v", err)
		})
	}

	_, err := parseConfig(t, "-address-policy", "loose")
	require.Error(t, err)
}

func TestConfigMuxPlan(t *testing.T) {
	testCases := []struct {
		name  string
		args  []string
		mode  pwm.MuxMode
		value uint16
	}{
		{"auto both outputs", nil, pwm.MuxOneShot, pwm.DefaultMuxBoth},
		{"auto single output", []string{"-pwm1-ch", "0"}, pwm.MuxPerChannel, pwm.DefaultMuxBoth},
		{"explicit values", []string{"-mux-pwm1", "0x1121"}, pwm.MuxPerChannel, pwm.DefaultMuxBoth},
		{"init value", []string{"-mux-init-val", "0x1133"}, pwm.MuxOneShot, 0x1133},
		{"no mux", []string{"-no-mux"}, pwm.MuxNone, pwm.DefaultMuxBoth},
		{"no mux wins", []string{"-no-mux", "-mux-init-val", "0x1133"}, pwm.MuxNone, 0x1133},
		{"mode none", []string{"-mux-mode", "none"}, pwm.MuxNone, pwm.DefaultMuxBoth},
		{"mode per-channel", []string{"-mux-mode", "per-channel"}, pwm.MuxPerChannel, pwm.DefaultMuxBoth},
		{"mode one-shot", []string{"-mux-mode", "one-shot", "-pwm1-ch", "0"}, pwm.MuxOneShot, pwm.DefaultMuxBoth},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conf, err := parseConfig(t, tc.args...)
			require.NoError(t, err)
			plan := conf.MuxPlan()
			require.Equal(t, tc.mode, plan.Mode)
			require.Equal(t, tc.value, plan.Value)
			require.Equal(t, [2]uint16{pwm.DefaultMuxPWM0, pwm.DefaultMuxPWM1}, plan.Channel)
		})
	}
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9200
pwm0-ch: 5
hz: 100
max-us: 1900
hold-ms: 200
tick: 10ms
address-policy: any
mux-pwm0: 0x1103
mqtt: mqtt://broker:1883/fleet/
`), 0644))

	conf, err := parseConfig(t, "-config", path, "-hz", "60")
	require.NoError(t, err)
	require.Equal(t, 9200, conf.Port)
	require.Equal(t, 5, conf.PWM0Channel)
	require.Equal(t, 2, conf.PWM1Channel)
	require.Equal(t, 60, conf.Hz)
	require.Equal(t, 1900, conf.Limits.Max)
	require.Equal(t, 1000, conf.Limits.Min)
	require.Equal(t, 200*time.Millisecond, conf.FailsafeConfig().Hold)
	require.Equal(t, 10*time.Millisecond, conf.Tick)
	require.Equal(t, crsf.AddressAny, conf.AddressPolicy)
	require.Equal(t, "mqtt://broker:1883/fleet/", conf.MQTTBrokerURL)
	require.Equal(t, path, conf.ConfigFile)

	plan := conf.MuxPlan()
	require.Equal(t, pwm.MuxPerChannel, plan.Mode)
	require.Equal(t, uint16(0x1103), plan.Channel[0])
}

func TestConfigFileErrors(t *testing.T) {
	_, err := parseConfig(t, "-config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [1, 2]\n"), 0644))
	_, err = parseConfig(t, "-config", path)
	require.Error(t, err)
}

func TestConfigString(t *testing.T) {
	conf, err := parseConfig(t)
	require.NoError(t, err)
	require.Contains(t, conf.String(), "pwm0<-CH1 pwm1<-CH2")
	require.Contains(t, conf.String(), "strict(0xC8)")
}
