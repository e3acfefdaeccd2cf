package failsafe

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func at(ms int) time.Time {
	return time.Unix(1000, 0).Add(time.Duration(ms) * time.Millisecond)
}

func newController(t *testing.T) *Controller {
	c, err := New(Config{Hold: 300 * time.Millisecond, CenterTimeout: 500 * time.Millisecond})
	require.NoError(t, err)
	return c
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name  string
		conf  Config
		valid bool
	}{
		{"defaults", Config{Hold: 300 * time.Millisecond, CenterTimeout: 500 * time.Millisecond}, true},
		{"equal", Config{Hold: time.Second, CenterTimeout: time.Second}, true},
		{"zero", Config{}, true},
		{"negative hold", Config{Hold: -time.Millisecond, CenterTimeout: time.Second}, false},
		{"timeout below hold", Config{Hold: time.Second, CenterTimeout: 500 * time.Millisecond}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.conf.Validate()
			if tc.valid {
				require.NoError(t, err)
			} else {
				require.True(t, errors.Is(err, ErrInvalidConfig))
			}
		})
	}
	_, err := New(Config{Hold: time.Second})
	require.Error(t, err)
}

func TestControllerTimeline(t *testing.T) {
	c := newController(t)
	require.Equal(t, StateCentered, c.State())
	require.Equal(t, ActionNone, c.Tick(at(0)))

	require.True(t, c.Frame(at(0)))
	require.Equal(t, StateActive, c.State())

	steps := []struct {
		ms     int
		action Action
		state  State
	}{
		{100, ActionNone, StateActive},
		{299, ActionNone, StateActive},
		{300, ActionHold, StateActive},
		{400, ActionNone, StateActive},
		{499, ActionNone, StateActive},
		{500, ActionCenter, StateCentered},
		{520, ActionNone, StateCentered},
		{5000, ActionNone, StateCentered},
	}
	for _, s := range steps {
		require.Equal(t, s.action, c.Tick(at(s.ms)), "t=%d", s.ms)
		require.Equal(t, s.state, c.State(), "t=%d", s.ms)
	}

	require.True(t, c.Frame(at(6000)))
	require.Equal(t, StateActive, c.State())
	require.Equal(t, ActionNone, c.Tick(at(6100)))
	require.Equal(t, 100*time.Millisecond, c.Age(at(6100)))
}

func TestControllerFramesKeepActive(t *testing.T) {
	c := newController(t)
	c.Frame(at(0))
	for ms := 100; ms <= 2000; ms += 100 {
		require.False(t, c.Frame(at(ms)))
		require.Equal(t, ActionNone, c.Tick(at(ms+20)))
	}
	require.Equal(t, at(2000), c.LastValid())
}

func TestControllerHoldResetsOnFrame(t *testing.T) {
	c := newController(t)
	c.Frame(at(0))
	require.Equal(t, ActionHold, c.Tick(at(350)))
	require.True(t, c.Holding())
	require.False(t, c.Frame(at(400)))
	require.False(t, c.Holding())
	require.Equal(t, ActionHold, c.Tick(at(700)))
	require.Equal(t, ActionCenter, c.Tick(at(900)))
}

func TestControllerFault(t *testing.T) {
	c := newController(t)
	c.Frame(at(0))
	require.Equal(t, StateActive, c.Fault())
	require.Equal(t, StateCentered, c.State())
	require.Equal(t, ActionNone, c.Tick(at(600)))
	require.Equal(t, StateCentered, c.Fault())
	require.True(t, c.Frame(at(700)))
}

func TestControllerAgeBeforeFrame(t *testing.T) {
	c := newController(t)
	require.Zero(t, c.Age(at(100)))
	require.True(t, c.LastValid().IsZero())
}
