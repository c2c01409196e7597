package tcp

import (
	"sync"
	"testing"
	"time"

	"github.com/nickolajgrishuk/vstp/core"
	"github.com/nickolajgrishuk/vstp/observer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientServerRoundTrip(t *testing.T) {
	received := make(chan *core.Frame, 4)
	srv, err := Listen("127.0.0.1:0", func(session observer.SessionID, peer string, f *core.Frame) {
		received <- f
	})
	require.NoError(t, err)
	defer srv.Close()
	go srv.Serve()

	cli, err := Dial(srv.Addr().String(), 0)
	require.NoError(t, err)
	defer cli.Close()

	want := core.NewData([]byte("hello server"))
	require.NoError(t, cli.Send(want))

	select {
	case got := <-received:
		assert.True(t, want.Equal(got))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server to receive frame")
	}
}

func TestHandlerObservesArrivalOrder(t *testing.T) {
	var mu sync.Mutex
	var order []int

	srv, err := Listen("127.0.0.1:0", func(session observer.SessionID, peer string, f *core.Frame) {
		v, _ := f.GetHeader("seq")
		mu.Lock()
		order = append(order, int(v[0]))
		mu.Unlock()
	})
	require.NoError(t, err)
	defer srv.Close()
	go srv.Serve()

	cli, err := Dial(srv.Addr().String(), 0)
	require.NoError(t, err)
	defer cli.Close()

	const count = 20
	for i := 0; i < count; i++ {
		f := core.NewData(nil).WithHeader("seq", []byte{byte(i)})
		require.NoError(t, cli.Send(f))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == count
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

type vetoingObserver struct {
	vetoType core.Type
}

func (v vetoingObserver) OnFrame(_ observer.SessionID, _ string, f *core.Frame, _ int) bool {
	return f.Type == v.vetoType
}
func (vetoingObserver) OnSessionEnd(observer.SessionID, string, error) {}

func TestObserverVetoClosesSession(t *testing.T) {
	delivered := make(chan *core.Frame, 4)
	srv, err := Listen("127.0.0.1:0", func(session observer.SessionID, peer string, f *core.Frame) {
		delivered <- f
	}, WithObserver(vetoingObserver{vetoType: core.TypeData}))
	require.NoError(t, err)
	defer srv.Close()
	go srv.Serve()

	cli, err := Dial(srv.Addr().String(), 0)
	require.NoError(t, err)
	defer cli.Close()

	require.NoError(t, cli.Send(core.NewData([]byte("vetoed"))))

	select {
	case <-delivered:
		t.Fatal("handler should not have been invoked for a vetoed frame")
	case <-time.After(200 * time.Millisecond):
	}

	// subsequent reads on the same connection must fail: the server closed
	// the session after the veto.
	require.NoError(t, cli.Send(core.NewPing()))
	_, err = cli.Recv()
	assert.Error(t, err)
}

func TestServerSendIsInBand(t *testing.T) {
	var srv *Server
	srv, err := Listen("127.0.0.1:0", func(session observer.SessionID, peer string, f *core.Frame) {
		_ = srv.Send(session, core.NewData([]byte("echo: "+string(f.Payload))))
	})
	require.NoError(t, err)
	defer srv.Close()
	go srv.Serve()

	cli, err := Dial(srv.Addr().String(), 0)
	require.NoError(t, err)
	defer cli.Close()

	require.NoError(t, cli.Send(core.NewData([]byte("ping"))))

	got, err := cli.Recv()
	require.NoError(t, err)
	assert.Equal(t, "echo: ping", string(got.Payload))
}
