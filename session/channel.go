package session

import (
	"fmt"
	"net"
	"time"

	"github.com/lwm2m-go/core/errs"
)

// Channel is the transport a Session drives its IPC frames over.
// Generalized from udpChannel below so tests can substitute an
// in-memory double without opening a real socket.
type Channel interface {
	Connect(timeout time.Duration) error
	Disconnect() error
	Send(frame []byte) error
	// Receive waits up to timeout for one frame. ok is false if the
	// timeout elapsed with nothing to read.
	Receive(timeout time.Duration) (frame []byte, ok bool, err error)
}

// udpChannel is the default Channel, grounded on contents.go's
// interface-over-concrete-transport pattern (WriteFlusher), adapted
// from an HTTP ResponseWriter to a plain net.Conn.
type udpChannel struct {
	address string
	conn    net.Conn
}

// newUDPChannel validates address (host:port, numeric v4/v6 or a
// resolvable hostname) without yet opening a socket.
func newUDPChannel(address string) (*udpChannel, error) {
	if _, err := net.ResolveUDPAddr("udp", address); err != nil {
		return nil, fmt.Errorf("%w: invalid IPC address %q: %v", errs.ErrIPC, address, err)
	}
	return &udpChannel{address: address}, nil
}

func (c *udpChannel) Connect(timeout time.Duration) error {
	if c.conn != nil {
		return fmt.Errorf("%w: channel already connected", errs.ErrIPC)
	}
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.Dial("udp", c.address)
	if err != nil {
		// The address is re-resolved at dial time; a resolution that
		// outlives the deadline is a timeout, not a config error.
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return fmt.Errorf("%w: %v", errs.ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", errs.ErrIPC, err)
	}
	c.conn = conn
	return nil
}

func (c *udpChannel) Disconnect() error {
	if c.conn == nil {
		return fmt.Errorf("%w: channel not connected", errs.ErrIPC)
	}
	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIPC, err)
	}
	return nil
}

func (c *udpChannel) Send(frame []byte) error {
	if c.conn == nil {
		return fmt.Errorf("%w: channel not connected", errs.ErrIPC)
	}
	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIPC, err)
	}
	return nil
}

func (c *udpChannel) Receive(timeout time.Duration) ([]byte, bool, error) {
	if c.conn == nil {
		return nil, false, fmt.Errorf("%w: channel not connected", errs.ErrIPC)
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, false, fmt.Errorf("%w: %v", errs.ErrIPC, err)
	}
	buf := make([]byte, 65536)
	n, err := c.conn.Read(buf)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %v", errs.ErrIPC, err)
	}
	return buf[:n], true, nil
}
