package bridge

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUDPReceiver(t *testing.T) {
	r, err := ListenUDP(context.Background(), "127.0.0.1:0")
	require.NoError(t, err)
	defer r.Close()

	dgrams, err := r.Receive(10 * time.Millisecond)
	require.NoError(t, err)
	require.Empty(t, dgrams)

	conn, err := net.DialUDP("udp4", nil, r.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	_, err = conn.Write([]byte{4, 5})
	require.NoError(t, err)

	var received [][]byte
	deadline := time.Now().Add(2 * time.Second)
	for len(received) < 2 && time.Now().Before(deadline) {
		dgrams, err := r.Receive(50 * time.Millisecond)
		require.NoError(t, err)
		for _, d := range dgrams {
			received = append(received, d.Data)
			require.Equal(t, conn.LocalAddr().String(), d.Addr.String())
		}
	}
	require.Equal(t, [][]byte{{1, 2, 3}, {4, 5}}, received)
}

func TestUDPReceiverClosed(t *testing.T) {
	r, err := ListenUDP(context.Background(), "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, r.Close())
	_, err = r.Receive(10 * time.Millisecond)
	require.Error(t, err)
	require.True(t, errors.Is(err, net.ErrClosed))
}

func TestUDPReceiverReuseAddr(t *testing.T) {
	r, err := ListenUDP(context.Background(), "127.0.0.1:0")
	require.NoError(t, err)
	defer r.Close()
	addr := r.LocalAddr().String()
	require.NoError(t, r.Close())

	r2, err := ListenUDP(context.Background(), addr)
	require.NoError(t, err)
	require.NoError(t, r2.Close())
}
