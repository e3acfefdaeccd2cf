// Package tx provides a bench transmitter sending CRSF RC frames over
// UDP, used to exercise a bridge without a radio link.
package tx

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/waybeam/crsfpwm/pkg/crsf"
)

// Transmitter holds the channel state and writes frames to W.
// One Write carries one datagram.
type Transmitter struct {
	W io.Writer

	lock    sync.Mutex
	address byte
	ticks   crsf.Ticks
	rnd    *rand.Rand
	sent   int
	cancel func()
	done   chan struct{}
}

// NewTransmitter creates a Transmitter with all channels centered.
func NewTransmitter(w io.Writer, address byte) *Transmitter {
	t := &Transmitter{
		W:       w,
		address: address,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	t.Center()
	return t
}

// Address returns the destination address of sent frames.
func (t *Transmitter) Address() byte {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.address
}

// SetAddress changes the destination address of sent frames.
func (t *Transmitter) SetAddress(address byte) {
	t.lock.Lock()
	t.address = address
	t.lock.Unlock()
}

// SetMicros sets channel ch (1..16) to us microseconds.
func (t *Transmitter) SetMicros(ch, us int) error {
	if ch < 1 || ch > crsf.NumChannels {
		return fmt.Errorf("channel %d out of range 1..%d", ch, crsf.NumChannels)
	}
	t.lock.Lock()
	t.ticks[ch-1] = uint16(crsf.MicrosToTicks(us))
	t.lock.Unlock()
	return nil
}

// Center sets all channels to the center value.
func (t *Transmitter) Center() {
	t.lock.Lock()
	for n := range t.ticks {
		t.ticks[n] = crsf.TickCenter
	}
	t.lock.Unlock()
}

// Channels returns the current channel values in microseconds.
func (t *Transmitter) Channels() (chs crsf.Channels) {
	t.lock.Lock()
	defer t.lock.Unlock()
	for n, v := range t.ticks {
		chs[n] = crsf.TicksToMicros(int(v))
	}
	return
}

// Sent returns the number of datagrams written.
func (t *Transmitter) Sent() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.sent
}

// Frame encodes the current channel values.
func (t *Transmitter) Frame() []byte {
	t.lock.Lock()
	f := crsf.NewRCChannelsFrame(t.address, t.ticks)
	t.lock.Unlock()
	b, _ := f.Bytes()
	return b
}

// Send writes count frames, each in its own datagram.
func (t *Transmitter) Send(count int) error {
	for n := 0; n < count; n++ {
		if err := t.write(t.Frame()); err != nil {
			return err
		}
	}
	return nil
}

// SendCorrupt writes a frame with payload bit flipped, -1 picks a
// random bit. The bridge must reject it by CRC.
func (t *Transmitter) SendCorrupt(bit int) error {
	frame := t.Frame()
	bits := crsf.RCChannelsPayloadSize * 8
	if bit < 0 {
		t.lock.Lock()
		bit = t.rnd.Intn(bits)
		t.lock.Unlock()
	}
	if bit >= bits {
		return fmt.Errorf("bit %d out of range 0..%d", bit, bits-1)
	}
	frame[3+bit/8] ^= 1 << uint(bit%8)
	return t.write(frame)
}

// SendNoise writes n random bytes.
func (t *Transmitter) SendNoise(n int) error {
	noise := make([]byte, n)
	t.lock.Lock()
	t.rnd.Read(noise)
	t.lock.Unlock()
	return t.write(noise)
}

// SendSplit writes one frame split into datagrams of at most size bytes.
func (t *Transmitter) SendSplit(size int) error {
	if size <= 0 {
		return fmt.Errorf("invalid size %d", size)
	}
	for frame := t.Frame(); len(frame) > 0; {
		n := size
		if n > len(frame) {
			n = len(frame)
		}
		if err := t.write(frame[:n]); err != nil {
			return err
		}
		frame = frame[n:]
	}
	return nil
}

// StartStream sends frames every interval until StopStream.
func (t *Transmitter) StartStream(interval time.Duration) {
	t.StopStream()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.lock.Lock()
	t.cancel, t.done = cancel, done
	t.lock.Unlock()
	go func() {
		defer close(done)
		if err := t.Stream(ctx, interval); err != nil && err != context.Canceled {
			glog.Errorf("stream stopped: %v", err)
		}
	}()
}

// StopStream stops a stream started by StartStream.
func (t *Transmitter) StopStream() bool {
	t.lock.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.lock.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

// Stream sends frames every interval until ctx is done.
func (t *Transmitter) Stream(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := t.Send(1); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (t *Transmitter) write(p []byte) error {
	if _, err := t.W.Write(p); err != nil {
		return err
	}
	t.lock.Lock()
	t.sent++
	t.lock.Unlock()
	glog.V(2).Infof("sent %d bytes", len(p))
	return nil
}
