package pwm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	index   int
	calls   []string
	duty    []int
	failOn  string
	failErr error
	closed  bool
}

func (d *fakeDevice) record(call string) error {
	d.calls = append(d.calls, call)
	if d.failOn == call {
		return d.failErr
	}
	return nil
}

func (d *fakeDevice) Index() int    { return d.index }
func (d *fakeDevice) Export() error { return d.record("export") }
func (d *fakeDevice) Close() error  { d.closed = true; return nil }

func (d *fakeDevice) SetEnabled(on bool) error {
	return d.record(fmt.Sprintf("enable=%v", on))
}

func (d *fakeDevice) SetPeriod(v int) error {
	return d.record(fmt.Sprintf("period=%d", v))
}

func (d *fakeDevice) SetDutyMicros(v int) error {
	if err := d.record(fmt.Sprintf("duty=%d", v)); err != nil {
		return err
	}
	d.duty = append(d.duty, v)
	return nil
}

var testLimits = Limits{Min: 1000, Max: 2000, Center: 1500}

func TestOpenSequence(t *testing.T) {
	dev := &fakeDevice{index: 1}
	o, err := Open(dev, 50, testLimits)
	require.NoError(t, err)
	require.Equal(t, []string{"export", "enable=false", "period=50", "duty=1500", "enable=true"}, dev.calls)
	require.True(t, o.Available())
	require.Equal(t, 1500, o.Value())
	require.Equal(t, 1, o.Index())
}

func TestOpenFailures(t *testing.T) {
	for _, step := range []string{"export", "enable=false", "period=50", "duty=1500", "enable=true"} {
		t.Run(step, func(t *testing.T) {
			boom := errors.New("boom")
			dev := &fakeDevice{failOn: step, failErr: boom}
			o, err := Open(dev, 50, testLimits)
			require.Nil(t, o)
			require.True(t, errors.Is(err, boom))
			require.Equal(t, step, dev.calls[len(dev.calls)-1])
		})
	}
	_, err := Open(&fakeDevice{}, 50, Limits{Min: 1000, Max: 2000, Center: 2100})
	require.Error(t, err)
}

func TestOutputSet(t *testing.T) {
	dev := &fakeDevice{}
	o, err := Open(dev, 50, testLimits)
	require.NoError(t, err)
	dev.duty = nil

	testCases := []struct {
		requested int
		written   bool
		value     int
	}{
		{1500, false, 1500},
		{1600, true, 1600},
		{1600, false, 1600},
		{2500, true, 2000},
		{2100, false, 2000},
		{900, true, 1000},
		{-5, false, 1000},
	}
	for _, tc := range testCases {
		written, err := o.Set(tc.requested)
		require.NoError(t, err)
		require.Equal(t, tc.written, written, "requested %d", tc.requested)
		require.Equal(t, tc.value, o.Value())
	}
	require.Equal(t, []int{1600, 2000, 1000}, dev.duty)

	written, err := o.Center()
	require.NoError(t, err)
	require.True(t, written)
	require.Equal(t, 1500, o.Value())
}

func TestOutputWriteFailureRetries(t *testing.T) {
	dev := &fakeDevice{}
	o, err := Open(dev, 50, testLimits)
	require.NoError(t, err)

	dev.failOn, dev.failErr = "duty=1700", errors.New("io error")
	written, err := o.Set(1700)
	require.Error(t, err)
	require.False(t, written)
	require.Equal(t, 1500, o.Value())

	dev.failOn = ""
	written, err = o.Set(1700)
	require.NoError(t, err)
	require.True(t, written)
	require.Equal(t, 1700, o.Value())
}

func TestDisabledOutput(t *testing.T) {
	o := Disabled(1)
	require.False(t, o.Available())
	written, err := o.Set(1600)
	require.NoError(t, err)
	require.False(t, written)
	written, err = o.Center()
	require.NoError(t, err)
	require.False(t, written)
	require.NoError(t, o.Close())
}

func TestOutputClose(t *testing.T) {
	dev := &fakeDevice{}
	o, err := Open(dev, 50, testLimits)
	require.NoError(t, err)
	require.NoError(t, o.Close())
	require.True(t, dev.closed)
	require.False(t, o.Available())
}

func TestLimits(t *testing.T) {
	require.NoError(t, testLimits.Validate())
	require.Error(t, Limits{Min: 2000, Max: 1000, Center: 1500}.Validate())
	require.Error(t, Limits{Min: 1000, Max: 2000, Center: 900}.Validate())
	require.Equal(t, 1000, testLimits.Clamp(0))
	require.Equal(t, 2000, testLimits.Clamp(99999))
	require.Equal(t, 1234, testLimits.Clamp(1234))
}
