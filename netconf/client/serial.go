package client

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// Default line settings for serial consoles, 9600 8N1.
const (
	DefaultBaud     = 9600
	DefaultDataBits = 8
)

// openSerialPort opens a serial port; replaced in tests.
var openSerialPort = serial.Open

// serialTransport carries NETCONF over a serial console.
type serialTransport struct {
	port  serial.Port
	path  string
	trace *ClientTrace
}

// NewSerialTransport opens the serial port at path with the given line settings,
// 9600 8N1 when mode is nil. When login is not nil, the login dialogue is
// performed before the transport is returned.
func NewSerialTransport(ctx context.Context, path string, mode *serial.Mode, login *Login) (rt Transport, err error) {
	trace := ContextClientTrace(ctx)
	trace.DialStart(nil, path)
	defer func(begin time.Time) {
		trace.DialDone(nil, path, err, time.Since(begin))
	}(time.Now())

	if mode == nil {
		mode = &serial.Mode{BaudRate: DefaultBaud, DataBits: DefaultDataBits}
	}
	port, err := openSerialPort(path, mode)
	if err != nil {
		return nil, err
	}
	t := &serialTransport{port: port, path: path, trace: trace}

	if login != nil {
		if deadline, ok := ctx.Deadline(); ok {
			_ = port.SetReadTimeout(time.Until(deadline))
		}
		if err = login.run(t); err != nil {
			_ = port.Close()
			return nil, errors.Wrap(err, "serial login failed")
		}
		_ = port.SetReadTimeout(serial.NoTimeout)
	}
	return t, nil
}

// Read delivers console output. A read that times out is reported as an error.
func (t *serialTransport) Read(p []byte) (n int, err error) {
	n, err = t.port.Read(p)
	if n == 0 && err == nil && len(p) > 0 {
		err = errors.Errorf("serial read from %s timed out", t.path)
	}
	return n, err
}

func (t *serialTransport) Write(p []byte) (n int, err error) {
	return t.port.Write(p)
}

// Target delivers the device path.
func (t *serialTransport) Target() string {
	return t.path
}

func (t *serialTransport) Close() (err error) {
	defer func() {
		t.trace.ConnectionClosed(t.path, err)
	}()
	return t.port.Close()
}

// SerialMode builds the line settings of a serial target, defaulting to 9600 8N1.
// Parity is one of none, odd, even, mark or space; StopBits one of 1, 1.5 or 2.
func (t *Target) SerialMode() (*serial.Mode, error) {
	mode := &serial.Mode{BaudRate: t.Baud, DataBits: t.DataBits}
	if mode.BaudRate == 0 {
		mode.BaudRate = DefaultBaud
	}
	if mode.DataBits == 0 {
		mode.DataBits = DefaultDataBits
	}

	switch strings.ToLower(t.Parity) {
	case "", "none":
		mode.Parity = serial.NoParity
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	case "mark":
		mode.Parity = serial.MarkParity
	case "space":
		mode.Parity = serial.SpaceParity
	default:
		return nil, errors.Errorf("unsupported parity %q", t.Parity)
	}

	switch t.StopBits {
	case "", "1":
		mode.StopBits = serial.OneStopBit
	case "1.5":
		mode.StopBits = serial.OnePointFiveStopBits
	case "2":
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, errors.Errorf("unsupported stop bits %q", t.StopBits)
	}
	return mode, nil
}
