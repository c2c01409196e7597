package udp

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/nickolajgrishuk/vstp/core"
	"github.com/nickolajgrishuk/vstp/observer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBind(t *testing.T, cfg Config, h Handler) *Transport {
	t.Helper()
	tr, err := Bind("127.0.0.1:0", cfg, h)
	require.NoError(t, err)
	go tr.Serve()
	t.Cleanup(func() { tr.Close() })
	return tr
}

func udpAddr(t *testing.T, tr *Transport) *net.UDPAddr {
	t.Helper()
	a, err := net.ResolveUDPAddr("udp", tr.LocalAddr().String())
	require.NoError(t, err)
	return a
}

func TestUnfragmentedRoundTrip(t *testing.T) {
	received := make(chan *core.Frame, 1)
	server := mustBind(t, DefaultConfig(), func(session observer.SessionID, peer *net.UDPAddr, f *core.Frame) {
		received <- f
	})
	client := mustBind(t, DefaultConfig(), nil)

	want := core.NewData([]byte("small payload"))
	require.NoError(t, client.Send(udpAddr(t, server), want))

	select {
	case got := <-received:
		assert.True(t, want.Equal(got))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}

func TestFragmentationRoundTrip(t *testing.T) {
	// S5: a 5000-byte payload exceeds MAX_DATAGRAM_SIZE; fragments share a
	// frag-id, carry index/total, and reassemble to the original frame
	// with fragment headers stripped.
	cfg := DefaultConfig()
	received := make(chan *core.Frame, 1)
	server := mustBind(t, cfg, func(session observer.SessionID, peer *net.UDPAddr, f *core.Frame) {
		received <- f
	})
	client := mustBind(t, cfg, nil)

	payload := make([]byte, 5000)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	want := core.NewData(payload)
	require.NoError(t, client.Send(udpAddr(t, server), want))

	select {
	case got := <-received:
		assert.True(t, want.Equal(got))
		_, hasID := got.GetHeader(core.HeaderFragID)
		assert.False(t, hasID)
		assert.False(t, got.HasFlag(core.FlagFrag))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reassembled frame")
	}
}

func TestFragmentationRejectsOversizeWhenDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FragmentEnabled = false
	client := mustBind(t, cfg, nil)

	dst := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}
	big := core.NewData(make([]byte, 5000))
	err := client.Send(dst, big)
	require.Error(t, err)
}

func TestAckReliabilityUnderLoss(t *testing.T) {
	// S6: drop the first two attempts, let the third through.
	cfg := DefaultConfig()
	cfg.AckTimeout = 150 * time.Millisecond
	cfg.RetryDelay = 30 * time.Millisecond
	cfg.MaxRetries = 3

	var mu sync.Mutex
	attempts := 0

	server, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer server.Close()

	go func() {
		buf := make([]byte, 4096)
		for {
			n, addr, err := server.ReadFromUDP(buf)
			if err != nil {
				return
			}
			frame, _, err := core.Decode(buf[:n], 0)
			if err != nil {
				continue
			}
			mu.Lock()
			attempts++
			drop := attempts <= 2
			mu.Unlock()
			if drop {
				continue
			}
			msgID, ok := frame.GetHeader(core.HeaderMsgID)
			if !ok {
				continue
			}
			ack := core.NewAck(string(msgID))
			data, err := core.Encode(ack)
			if err != nil {
				continue
			}
			_, _ = server.WriteToUDP(data, addr)
		}
	}()

	client := mustBind(t, cfg, nil)
	serverAddr, err := net.ResolveUDPAddr("udp", server.LocalAddr().String())
	require.NoError(t, err)

	start := time.Now()
	err = client.SendWithAck(context.Background(), serverAddr, core.NewData([]byte("reliable")))
	elapsed := time.Since(start)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, cfg.RetryDelay+2*cfg.RetryDelay)
}

func TestAckAllAttemptsDroppedTimesOut(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AckTimeout = 50 * time.Millisecond
	cfg.RetryDelay = 10 * time.Millisecond
	cfg.MaxRetries = 2

	// A socket that never replies.
	blackhole, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer blackhole.Close()
	go func() {
		buf := make([]byte, 4096)
		for {
			if _, _, err := blackhole.ReadFromUDP(buf); err != nil {
				return
			}
		}
	}()

	client := mustBind(t, cfg, nil)
	dst, err := net.ResolveUDPAddr("udp", blackhole.LocalAddr().String())
	require.NoError(t, err)

	err = client.SendWithAck(context.Background(), dst, core.NewData([]byte("lost")))
	require.Error(t, err)
}

func TestAckMismatchIsIgnored(t *testing.T) {
	// S7: an ACK for the wrong msg-id never completes the wait; it times
	// out normally.
	cfg := DefaultConfig()
	cfg.AckTimeout = 80 * time.Millisecond
	cfg.RetryDelay = 20 * time.Millisecond
	cfg.MaxRetries = 0

	server, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer server.Close()

	go func() {
		buf := make([]byte, 4096)
		for {
			_, addr, err := server.ReadFromUDP(buf)
			if err != nil {
				return
			}
			wrongAck := core.NewAck("999999")
			data, _ := core.Encode(wrongAck)
			_, _ = server.WriteToUDP(data, addr)
		}
	}()

	client := mustBind(t, cfg, nil)
	dst, err := net.ResolveUDPAddr("udp", server.LocalAddr().String())
	require.NoError(t, err)

	err = client.SendWithAck(context.Background(), dst, core.NewData([]byte("x")))
	require.Error(t, err)
}
