package client

import (
	"bufio"
	"context"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Telnet protocol bytes, RFC 854.
const (
	telnetSE   = 240
	telnetSB   = 250
	telnetWILL = 251
	telnetWONT = 252
	telnetDO   = 253
	telnetDONT = 254
	telnetIAC  = 255
)

// telnetTransport carries NETCONF over a raw Telnet connection. Every option
// offered by the server is refused, so the connection stays in its default
// (NVT) mode, and IAC sequences are removed from the input.
type telnetTransport struct {
	conn   net.Conn
	r      *bufio.Reader
	target string
	trace  *ClientTrace

	// Serialises writes of option refusals from Read with caller writes.
	wmu sync.Mutex
}

// NewTelnetTransport connects to target over Telnet. When login is not nil,
// the login dialogue is performed before the transport is returned.
func NewTelnetTransport(ctx context.Context, target string, login *Login) (rt Transport, err error) {
	trace := ContextClientTrace(ctx)
	trace.DialStart(nil, target)
	defer func(begin time.Time) {
		trace.DialDone(nil, target, err, time.Since(begin))
	}(time.Now())

	conn, err := dialTCP(ctx, target, 0)
	if err != nil {
		return nil, err
	}
	t := &telnetTransport{conn: conn, r: bufio.NewReader(conn), target: target, trace: trace}

	if login != nil {
		if deadline, ok := ctx.Deadline(); ok {
			_ = conn.SetDeadline(deadline)
		}
		if err = login.run(t); err != nil {
			_ = conn.Close()
			return nil, errors.Wrap(err, "telnet login failed")
		}
		_ = conn.SetDeadline(time.Time{})
	}
	return t, nil
}

func dialTCP(ctx context.Context, target string, timeout time.Duration) (net.Conn, error) {
	d := net.Dialer{Timeout: timeout}
	return d.DialContext(ctx, "tcp", target)
}

// Read delivers application data, blocking until at least one byte is available.
func (t *telnetTransport) Read(p []byte) (n int, err error) {
	for n < len(p) {
		if n > 0 && t.r.Buffered() == 0 {
			return n, nil
		}
		var b byte
		if b, err = t.r.ReadByte(); err != nil {
			return n, err
		}
		if b != telnetIAC {
			p[n] = b
			n++
			continue
		}
		var data bool
		if data, err = t.command(); err != nil {
			return n, err
		}
		if data {
			p[n] = telnetIAC
			n++
		}
	}
	return n, nil
}

// command consumes the telnet command following an IAC, reporting whether it
// was an escaped data byte.
func (t *telnetTransport) command() (bool, error) {
	cmd, err := t.r.ReadByte()
	if err != nil {
		return false, err
	}
	switch cmd {
	case telnetIAC:
		return true, nil
	case telnetDO, telnetWILL:
		opt, err := t.r.ReadByte()
		if err != nil {
			return false, err
		}
		reply := byte(telnetWONT)
		if cmd == telnetWILL {
			reply = telnetDONT
		}
		return false, t.writeRaw([]byte{telnetIAC, reply, opt})
	case telnetDONT, telnetWONT:
		_, err = t.r.ReadByte()
		return false, err
	case telnetSB:
		return false, t.skipSubnegotiation()
	default:
		return false, nil
	}
}

func (t *telnetTransport) skipSubnegotiation() error {
	for {
		b, err := t.r.ReadByte()
		if err != nil {
			return err
		}
		if b != telnetIAC {
			continue
		}
		if b, err = t.r.ReadByte(); err != nil {
			return err
		}
		if b == telnetSE {
			return nil
		}
	}
}

// Write sends application data, escaping IAC bytes.
func (t *telnetTransport) Write(p []byte) (n int, err error) {
	escaped := make([]byte, 0, len(p))
	for _, b := range p {
		if b == telnetIAC {
			escaped = append(escaped, telnetIAC)
		}
		escaped = append(escaped, b)
	}
	if err = t.writeRaw(escaped); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (t *telnetTransport) writeRaw(b []byte) error {
	t.wmu.Lock()
	defer t.wmu.Unlock()
	_, err := t.conn.Write(b)
	return err
}

// Target delivers the address the transport is connected to.
func (t *telnetTransport) Target() string {
	return t.target
}

func (t *telnetTransport) Close() (err error) {
	defer func() {
		t.trace.ConnectionClosed(t.target, err)
	}()
	return t.conn.Close()
}
