package tcp

import (
	"net"
	"sync"
	"time"

	"github.com/nickolajgrishuk/vstp/core"
	"github.com/nickolajgrishuk/vstp/framing"
)

// dialTimeout matches the teacher's transport.TCPConnect default.
const dialTimeout = 10 * time.Second

// Client is a TCP client connection: Send encodes and writes a frame,
// Recv decodes the next frame off the wire, Close sends BYE and closes
// the write half.
type Client struct {
	conn    net.Conn
	framer  *framing.Framer
	readMu  sync.Mutex
	readBuf    [64 * 1024]byte
	pending    []*core.Frame
	pendingErr error
}

// Dial connects to addr and returns a ready Client.
func Dial(addr string, maxFrameSize uint32) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, framer: framing.New(maxFrameSize)}, nil
}

// Send encodes and writes frame to the connection.
func (c *Client) Send(frame *core.Frame) error {
	if err := c.framer.Write(frame); err != nil {
		return err
	}
	_, err := c.conn.Write(c.framer.PendingWrite())
	return err
}

// Recv blocks until the next complete frame arrives, reading from the
// socket as needed.
func (c *Client) Recv() (*core.Frame, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	if len(c.pending) > 0 {
		f := c.pending[0]
		c.pending = c.pending[1:]
		return f, nil
	}
	if c.pendingErr != nil {
		err := c.pendingErr
		c.pendingErr = nil
		return nil, err
	}

	for {
		n, err := c.conn.Read(c.readBuf[:])
		if n > 0 {
			frames, ferr := c.framer.Feed(c.readBuf[:n])
			if len(frames) > 0 {
				c.pending = frames[1:]
				c.pendingErr = ferr
				return frames[0], nil
			}
			if ferr != nil {
				return nil, ferr
			}
		}
		if err != nil {
			return nil, err
		}
	}
}

// Close sends a BYE frame, best-effort, then closes the write half of the
// connection (spec.md §4.6).
func (c *Client) Close() error {
	_ = c.Send(core.NewBye())
	if tc, ok := c.conn.(*net.TCPConn); ok {
		_ = tc.CloseWrite()
	}
	return c.conn.Close()
}

// LocalAddr exposes the client's local address.
func (c *Client) LocalAddr() net.Addr { return c.conn.LocalAddr() }
