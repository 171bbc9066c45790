package flasher

import (
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/bigbag/msp430-flasher/internal/frame"
	"github.com/bigbag/msp430-flasher/internal/protocol"
	"github.com/bigbag/msp430-flasher/internal/serial"
)

// State of a Connection.
type State int

const (
	StateDisconnected State = iota
	StateEnteringBSL
	StateReady
	StateSending
	StateAwaitingAck
	StateAwaitingResponse
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateEnteringBSL:
		return "entering-bsl"
	case StateReady:
		return "ready"
	case StateSending:
		return "sending"
	case StateAwaitingAck:
		return "awaiting-ack"
	case StateAwaitingResponse:
		return "awaiting-response"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Connection drives the BSL over a Transport. It is not safe for
// concurrent use; one command is in flight at a time.
type Connection struct {
	transport Transport
	cfg       config
	state     State
	baud      int
}

// New creates a Connection over transport. The connection owns the
// transport and closes it on Close.
func New(transport Transport, opts ...Option) *Connection {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Connection{
		transport: transport,
		cfg:       cfg,
		state:     StateDisconnected,
	}
}

// State returns the current state.
func (c *Connection) State() State {
	return c.state
}

// Baud returns the current link rate, 0 before EnterBSL.
func (c *Connection) Baud() int {
	return c.baud
}

// SetProgressCallback sets the progress callback function.
func (c *Connection) SetProgressCallback(cb ProgressCallback) {
	c.cfg.progress = cb
}

// reportProgress calls the progress callback if set.
func (c *Connection) reportProgress(current, total int) {
	if c.cfg.progress != nil {
		c.cfg.progress(current, total)
	}
}

// EnterBSL switches the link to the handshake rate and runs the entry
// sequence on RST and TEST.
func (c *Connection) EnterBSL() error {
	if c.state == StateClosed {
		return ErrClosed
	}

	glog.Infof("Entering BSL at %d baud", protocol.HandshakeBaudRate)
	c.state = StateEnteringBSL

	if err := c.enterBSL(); err != nil {
		c.state = StateDisconnected
		return errors.Wrap(err, "enter bsl")
	}

	c.state = StateReady
	glog.Infof("BSL ready")
	return nil
}

func (c *Connection) enterBSL() error {
	if err := c.transport.SetLineParams(serial.DefaultLineParams(protocol.HandshakeBaudRate)); err != nil {
		return err
	}
	c.baud = protocol.HandshakeBaudRate

	if err := c.transport.FlushInput(); err != nil {
		return errors.Wrap(err, "flush input")
	}
	if err := c.transport.FlushOutput(); err != nil {
		return errors.Wrap(err, "flush output")
	}

	return c.runSequence(entrySequence)
}

// SetBaud reconfigures the host side of the link and puts RST and TEST
// back to run levels. It does not tell the BSL; see ChangeBaudRate.
func (c *Connection) SetBaud(baud int) error {
	if c.state == StateClosed {
		return ErrClosed
	}
	if _, err := protocol.BaudRateCode(baud); err != nil {
		return err
	}

	glog.V(1).Infof("Setting serial port baud to %d", baud)
	if err := c.transport.SetLineParams(serial.DefaultLineParams(baud)); err != nil {
		return errors.Wrapf(err, "set baud %d", baud)
	}
	c.baud = baud

	if err := c.transport.SetControlLines(low, high); err != nil {
		return errors.Wrap(err, "set control lines")
	}
	return nil
}

// ChangeBaudRate asks the BSL to switch rate, then follows on the host side.
func (c *Connection) ChangeBaudRate(baud int) error {
	code, err := protocol.BaudRateCode(baud)
	if err != nil {
		return err
	}

	glog.Infof("Changing baud rate to %d", baud)
	if _, err := c.SendCommand(protocol.CmdChangeBaudRate, protocol.WithData([]byte{code})); err != nil {
		return err
	}
	return c.SetBaud(baud)
}

// TriggerReset pulses RST so the target runs its application. The BSL is
// left, so the connection goes back to disconnected.
func (c *Connection) TriggerReset() error {
	if c.state == StateClosed {
		return ErrClosed
	}

	glog.Infof("Resetting target")
	if err := c.runSequence(resetSequence); err != nil {
		return errors.Wrap(err, "reset")
	}
	c.state = StateDisconnected
	return nil
}

// Close releases the transport.
func (c *Connection) Close() error {
	if c.state == StateClosed {
		return nil
	}
	c.state = StateClosed
	return c.transport.Close()
}

// SendCommand builds, frames and sends a command, then waits for the ACK
// and, when the command has one, the response. Commands without a response
// return a Response of kind KindNone.
func (c *Connection) SendCommand(name protocol.CommandName, args ...protocol.Arg) (*protocol.Response, error) {
	switch c.state {
	case StateReady:
	case StateClosed:
		return nil, ErrClosed
	default:
		return nil, errors.Wrapf(ErrNotReady, "%s in state %s", name, c.state)
	}

	cmd, err := protocol.NewCommand(name, args...)
	if err != nil {
		return nil, err
	}

	resp, err := c.exchange(cmd)
	c.state = StateReady
	return resp, err
}

func (c *Connection) exchange(cmd *protocol.Command) (*protocol.Response, error) {
	out, err := frame.Encode(cmd.Payload())
	if err != nil {
		return nil, errors.Wrap(err, cmd.Name().String())
	}

	c.state = StateSending
	glog.V(2).Infof("Sending command %s", cmd.Name())
	if err := c.transport.FlushOutput(); err != nil {
		return nil, errors.Wrap(err, "flush output")
	}
	if err := c.transport.FlushInput(); err != nil {
		return nil, errors.Wrap(err, "flush input")
	}

	glog.V(2).Infof("OUT -> (%d bytes) % X", len(out), out)
	if _, err := c.transport.Write(out); err != nil {
		return nil, errors.Wrapf(err, "write %s", cmd.Name())
	}

	c.state = StateAwaitingAck
	rest, err := c.readAck(cmd)
	if err != nil {
		return nil, err
	}

	if cmd.Entry().Response.Kind == protocol.KindNone {
		return &protocol.Response{Kind: protocol.KindNone}, nil
	}

	c.state = StateAwaitingResponse
	in, err := c.readFrame(cmd, rest)
	if err != nil {
		return nil, err
	}
	glog.V(2).Infof("IN  <- RES (%d bytes) % X", len(in.Payload), in.Payload)

	resp, err := protocol.ValidateResponse(cmd, in.Payload)
	if err != nil {
		glog.Errorf("%v", err)
		return nil, &InvalidResponseError{Command: cmd.Name(), Err: err}
	}
	return resp, nil
}

// readAck waits for the single ACK byte. Bytes that arrived with it are
// returned; they belong to the response frame.
func (c *Connection) readAck(cmd *protocol.Command) ([]byte, error) {
	deadline := time.Now().Add(c.cfg.ackTimeout)

	for {
		data, err := c.transport.ReadAvailable()
		if err != nil {
			return nil, errors.Wrapf(err, "read ack for %s", cmd.Name())
		}
		if len(data) > 0 {
			ack := protocol.Ack(data[0])
			if !ack.OK() {
				glog.Errorf("%s: %s", cmd.Name(), ack.Reason())
				return nil, &AckError{Command: cmd.Name(), Ack: ack}
			}
			glog.V(2).Infof("IN  <- ACK (1 byte) 0x%02X", data[0])
			return data[1:], nil
		}
		if !time.Now().Before(deadline) {
			glog.Errorf("Timeout waiting for ACK to %s", cmd.Name())
			return nil, &TimeoutError{Command: cmd.Name(), Timeout: c.cfg.ackTimeout, Err: ErrAckTimeout}
		}
	}
}

// readFrame feeds the streaming parser until a frame is complete or the
// response timeout elapses.
func (c *Connection) readFrame(cmd *protocol.Command, pending []byte) (*frame.Frame, error) {
	deadline := time.Now().Add(c.cfg.responseTimeout)
	parser := frame.NewParser()
	parser.Push(pending)

	for !parser.Complete() {
		if !time.Now().Before(deadline) {
			glog.Errorf("Timeout waiting for response to %s (%s pending)", cmd.Name(), parser.State())
			return nil, &TimeoutError{Command: cmd.Name(), Timeout: c.cfg.responseTimeout, Err: ErrResponseTimeout}
		}

		data, err := c.transport.ReadAvailable()
		if err != nil {
			return nil, errors.Wrapf(err, "read response for %s", cmd.Name())
		}
		if rest := parser.Push(data); len(rest) > 0 {
			glog.Warningf("Discarding %d bytes after response to %s", len(rest), cmd.Name())
		}
	}

	if err := parser.Validate(); err != nil {
		return nil, errors.Wrapf(err, "response to %s", cmd.Name())
	}
	return parser.Frame(), nil
}
