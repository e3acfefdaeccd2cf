// Package bridge runs the control loop between the CRSF link and the
// PWM outputs.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/golang/glog"

	"github.com/waybeam/crsfpwm/pkg/crsf"
	"github.com/waybeam/crsfpwm/pkg/failsafe"
	fx "github.com/waybeam/crsfpwm/pkg/framework"
	"github.com/waybeam/crsfpwm/pkg/pwm"
)

// Mapping drives an output from a CRSF channel.
type Mapping struct {
	Output *pwm.Output
	// Channel is the CRSF channel 1..16, 0 for none.
	Channel int
}

// Session is the tick-driven control loop. All state is owned by the
// goroutine calling Run, Feed and Tick.
type Session struct {
	Source     PacketSource
	Buffer     *crsf.Buffer
	Decoder    *crsf.Decoder
	Failsafe   *failsafe.Controller
	Mappings   []Mapping
	Observer   Observer
	TickPeriod time.Duration
	// Now is the clock, time.Now if nil.
	Now func() time.Time
}

// Run centers all outputs, then processes inbound data until ctx is
// canceled or the source is closed. Outputs are always centered again
// before Run returns.
func (s *Session) Run(ctx context.Context) error {
	tick := s.TickPeriod
	if tick <= 0 {
		tick = DefaultTick
	}
	s.centerAll(ReasonStartup)
	defer s.centerAll(ReasonShutdown)
	for {
		select {
		case <-ctx.Done():
			glog.V(1).Info("Stopping, centering outputs...")
			return ctx.Err()
		default:
		}
		dgrams, err := s.Source.Receive(tick)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
				return fmt.Errorf("receive: %w", err)
			}
			s.ReceiveError(err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(tick):
			}
			continue
		}
		for _, d := range dgrams {
			s.Feed(d)
		}
		s.Tick()
	}
}

// Feed appends a datagram to the stream buffer, decodes all complete
// frames and applies the channel values of the last RC frame.
func (s *Session) Feed(d Datagram) Report {
	now := s.now()
	r := Report{At: now, From: d.Addr, Bytes: len(d.Data)}
	r.Dropped = s.Buffer.Append(d.Data)
	before := s.Decoder.Stats
	frames := s.Decoder.Decode(s.Buffer)
	r.Stats = s.Decoder.Stats.Sub(before)

	var chs crsf.Channels
	for n := range frames {
		if c, ok := frames[n].Channels(); ok {
			chs = c
			r.RCFrames++
		} else {
			r.Ignored++
			glog.V(2).Infof("CRSF frame ignored: type=0x%02x payload_len=%d", frames[n].Type, len(frames[n].Payload))
		}
	}
	s.observer().DatagramReceived(r)
	if r.RCFrames > 0 {
		s.apply(now, chs)
	}
	return r
}

// Tick evaluates the failsafe timers and centers outputs on timeout.
func (s *Session) Tick() failsafe.Action {
	now := s.now()
	action := s.Failsafe.Tick(now)
	switch action {
	case failsafe.ActionHold:
		s.observer().LinkChanged(LinkEvent{
			At: now, State: s.Failsafe.State(), Reason: ReasonHolding, Age: s.Failsafe.Age(now),
		})
	case failsafe.ActionCenter:
		s.observer().LinkChanged(LinkEvent{
			At: now, State: s.Failsafe.State(), Reason: ReasonTimeout, Age: s.Failsafe.Age(now),
		})
		s.centerOutputs(now)
	}
	return action
}

// ReceiveError handles a transport error: outputs are centered
// unconditionally and buffered bytes are discarded.
func (s *Session) ReceiveError(err error) {
	now := s.now()
	glog.Warningf("recv: %v", err)
	s.Failsafe.Fault()
	s.Buffer.Reset()
	s.centerOutputs(now)
	s.observer().LinkChanged(LinkEvent{
		At: now, State: s.Failsafe.State(), Reason: ReasonTransportFault, Age: s.Failsafe.Age(now),
	})
}

// Close releases the outputs and the source.
func (s *Session) Close() error {
	var errs fx.AggregatedError
	for _, m := range s.Mappings {
		errs.Add(m.Output.Close())
	}
	if closer, ok := s.Source.(io.Closer); ok {
		errs.Add(closer.Close())
	}
	return errs.Aggregate()
}

func (s *Session) apply(now time.Time, chs crsf.Channels) {
	if s.Failsafe.Frame(now) {
		s.observer().LinkChanged(LinkEvent{At: now, State: s.Failsafe.State(), Reason: ReasonLinkUp})
	}
	for _, m := range s.Mappings {
		if m.Channel <= 0 || m.Channel > crsf.NumChannels || !m.Output.Available() {
			continue
		}
		us := chs[m.Channel-1]
		glog.V(2).Infof("Map: CH%d=%dus -> PWM%d=%dus", m.Channel, us, m.Output.Index(), m.Output.Limits().Clamp(us))
		s.set(now, m.Output, us)
	}
}

func (s *Session) centerAll(reason LinkReason) {
	now := s.now()
	s.centerOutputs(now)
	s.observer().LinkChanged(LinkEvent{At: now, State: failsafe.StateCentered, Reason: reason})
}

func (s *Session) centerOutputs(now time.Time) {
	for _, m := range s.Mappings {
		if m.Output.Available() {
			glog.V(1).Infof("Centering PWM%d to %dus", m.Output.Index(), m.Output.Limits().Center)
			s.set(now, m.Output, m.Output.Limits().Center)
		}
	}
}

func (s *Session) set(now time.Time, out *pwm.Output, us int) {
	written, err := out.Set(us)
	if err != nil {
		glog.Warningf("PWM%d write failed: %v", out.Index(), err)
		return
	}
	if written {
		s.observer().OutputUpdated(OutputEvent{At: now, Index: out.Index(), Micros: out.Value(), Requested: us})
	}
}

func (s *Session) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Session) observer() Observer {
	if s.Observer != nil {
		return s.Observer
	}
	return Observers(nil)
}
