package bridge

import (
	"context"
	"errors"
	"net"
	"time"

	"golang.org/x/net/ipv4"
)

// MaxDatagramSize bounds a single received datagram.
const MaxDatagramSize = 4096

// Datagram is one received packet.
type Datagram struct {
	Data []byte
	Addr net.Addr
}

// PacketSource provides inbound datagrams.
type PacketSource interface {
	// Receive waits up to timeout and returns the datagrams available.
	// A timeout with nothing received returns no datagrams and no error.
	Receive(timeout time.Duration) ([]Datagram, error)
}

// UDPReceiver receives datagrams in batches from a UDP socket.
type UDPReceiver struct {
	conn  net.PacketConn
	pconn *ipv4.PacketConn
	msgs  []ipv4.Message
}

// DefaultBatchSize is the number of datagrams read per system call.
const DefaultBatchSize = 8

// ListenUDP binds a UDP socket on addr with SO_REUSEADDR.
func ListenUDP(ctx context.Context, addr string) (*UDPReceiver, error) {
	lc := net.ListenConfig{Control: reuseAddrControl}
	conn, err := lc.ListenPacket(ctx, "udp4", addr)
	if err != nil {
		return nil, err
	}
	return NewUDPReceiver(conn, DefaultBatchSize), nil
}

// NewUDPReceiver wraps an existing packet connection.
func NewUDPReceiver(conn net.PacketConn, batch int) *UDPReceiver {
	if batch <= 0 {
		batch = 1
	}
	r := &UDPReceiver{
		conn:  conn,
		pconn: ipv4.NewPacketConn(conn),
		msgs:  make([]ipv4.Message, batch),
	}
	for n := range r.msgs {
		r.msgs[n].Buffers = [][]byte{make([]byte, MaxDatagramSize)}
	}
	return r
}

// LocalAddr returns the bound address.
func (r *UDPReceiver) LocalAddr() net.Addr {
	return r.conn.LocalAddr()
}

// Receive implements PacketSource.
func (r *UDPReceiver) Receive(timeout time.Duration) ([]Datagram, error) {
	if err := r.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	n, err := r.pconn.ReadBatch(r.msgs, 0)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, nil
		}
		return nil, err
	}
	dgrams := make([]Datagram, 0, n)
	for _, msg := range r.msgs[:n] {
		if msg.N == 0 {
			continue
		}
		dgrams = append(dgrams, Datagram{
			Data: append([]byte(nil), msg.Buffers[0][:msg.N]...),
			Addr: msg.Addr,
		})
	}
	return dgrams, nil
}

// Close closes the socket.
func (r *UDPReceiver) Close() error {
	return r.conn.Close()
}
