package bridge

import (
	"fmt"
	"net"
	"time"

	"github.com/golang/glog"

	"github.com/waybeam/crsfpwm/pkg/crsf"
	"github.com/waybeam/crsfpwm/pkg/failsafe"
)

// Report summarizes the processing of one datagram.
type Report struct {
	At    time.Time
	From  net.Addr
	Bytes int
	// Dropped counts buffered bytes discarded on overflow.
	Dropped int
	// Stats holds the decoder counters for this datagram only.
	Stats crsf.Stats
	// RCFrames counts packed RC channel frames decoded.
	RCFrames int
	// Ignored counts valid frames of other types or sizes.
	Ignored int
}

// LinkReason explains a LinkEvent.
type LinkReason int

// Link reasons.
const (
	ReasonStartup LinkReason = iota
	ReasonLinkUp
	ReasonHolding
	ReasonTimeout
	ReasonTransportFault
	ReasonShutdown
)

func (r LinkReason) String() string {
	switch r {
	case ReasonStartup:
		return "startup"
	case ReasonLinkUp:
		return "link up"
	case ReasonHolding:
		return "holding"
	case ReasonTimeout:
		return "timeout"
	case ReasonTransportFault:
		return "transport fault"
	case ReasonShutdown:
		return "shutdown"
	}
	return fmt.Sprintf("LinkReason(%d)", int(r))
}

// LinkEvent reports a change of the link state.
type LinkEvent struct {
	At     time.Time
	State  failsafe.State
	Reason LinkReason
	// Age is the time since the last valid frame.
	Age time.Duration
}

// OutputEvent reports a value written to an output.
type OutputEvent struct {
	At        time.Time
	Index     int
	Micros    int
	Requested int
}

// Observer receives session events. Calls are made from the session
// loop and must not block.
type Observer interface {
	DatagramReceived(Report)
	LinkChanged(LinkEvent)
	OutputUpdated(OutputEvent)
}

// Observers fans events out to multiple Observers.
type Observers []Observer

// DatagramReceived implements Observer.
func (o Observers) DatagramReceived(r Report) {
	for _, ob := range o {
		ob.DatagramReceived(r)
	}
}

// LinkChanged implements Observer.
func (o Observers) LinkChanged(ev LinkEvent) {
	for _, ob := range o {
		ob.LinkChanged(ev)
	}
}

// OutputUpdated implements Observer.
func (o Observers) OutputUpdated(ev OutputEvent) {
	for _, ob := range o {
		ob.OutputUpdated(ev)
	}
}

// LogObserver logs events with glog.
type LogObserver struct{}

// DatagramReceived implements Observer.
func (LogObserver) DatagramReceived(r Report) {
	if glog.V(2) {
		glog.Infof("UDP rx: %d bytes from %v | frames=%d crc_ok=%d bad_crc=%d bad_addr=%d bad_len=%d rc=%d ignored=%d dropped=%d",
			r.Bytes, r.From, r.Stats.Candidates, r.Stats.Valid, r.Stats.BadCRC, r.Stats.BadAddress,
			r.Stats.BadLength, r.RCFrames, r.Ignored, r.Dropped)
	} else if glog.V(1) {
		var suffix string
		if r.RCFrames > 0 {
			suffix = " (RC)"
		}
		glog.Infof("UDP rx: %d bytes from %v%s", r.Bytes, r.From, suffix)
	}
	if r.Dropped > 0 {
		glog.Warningf("stream buffer overflow, dropped %d bytes", r.Dropped)
	}
}

// LinkChanged implements Observer.
func (LogObserver) LinkChanged(ev LinkEvent) {
	switch ev.Reason {
	case ReasonLinkUp:
		glog.Info("Link recovered: valid RC frame received")
	case ReasonHolding:
		glog.V(1).Infof("HOLD: no valid CRSF for %v, keeping last command", ev.Age)
	case ReasonTimeout:
		glog.Warningf("FAILSAFE: no valid CRSF for %v -> center outputs", ev.Age)
	case ReasonTransportFault:
		glog.Warning("receive error, centered outputs")
	default:
		glog.V(1).Infof("link %s: %v", ev.Reason, ev.State)
	}
}

// OutputUpdated implements Observer.
func (LogObserver) OutputUpdated(OutputEvent) {}
