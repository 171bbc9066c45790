package serial

import (
	"fmt"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// DefaultReadTimeout bounds a single ReadAvailable call.
const DefaultReadTimeout = 100 * time.Millisecond

// Parity of the serial line.
type Parity int

const (
	NoParity Parity = iota
	OddParity
	EvenParity
)

func (p Parity) String() string {
	switch p {
	case NoParity:
		return "none"
	case OddParity:
		return "odd"
	case EvenParity:
		return "even"
	default:
		return fmt.Sprintf("Parity(%d)", int(p))
	}
}

// LineParams describes the UART framing.
type LineParams struct {
	Baud     int
	DataBits int
	StopBits int
	Parity   Parity
}

// DefaultLineParams returns 8E1 at baud, the framing the BSL expects.
func DefaultLineParams(baud int) LineParams {
	return LineParams{
		Baud:     baud,
		DataBits: 8,
		StopBits: 1,
		Parity:   EvenParity,
	}
}

func (lp LineParams) String() string {
	letter := "?"
	switch lp.Parity {
	case NoParity:
		letter = "N"
	case OddParity:
		letter = "O"
	case EvenParity:
		letter = "E"
	}
	return fmt.Sprintf("%d %d%s%d", lp.Baud, lp.DataBits, letter, lp.StopBits)
}

func (lp LineParams) mode() (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: lp.Baud,
		DataBits: lp.DataBits,
	}

	switch lp.Parity {
	case NoParity:
		mode.Parity = serial.NoParity
	case OddParity:
		mode.Parity = serial.OddParity
	case EvenParity:
		mode.Parity = serial.EvenParity
	default:
		return nil, fmt.Errorf("unsupported parity %s", lp.Parity)
	}

	switch lp.StopBits {
	case 1:
		mode.StopBits = serial.OneStopBit
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("unsupported stop bits %d", lp.StopBits)
	}

	return mode, nil
}

// Port is a serial port driving an MSP430 BSL. DTR is wired to RST and RTS
// to TEST, both through inverting drivers.
type Port struct {
	port     serial.Port
	portName string
	params   LineParams
	buf      []byte
}

// Open opens a serial port with the given line parameters.
func Open(portName string, params LineParams) (*Port, error) {
	mode, err := params.mode()
	if err != nil {
		return nil, err
	}
	// keep RST and TEST released until the entry sequence drives them
	mode.InitialStatusBits = &serial.ModemOutputBits{DTR: false, RTS: false}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open port %s: %w", portName, err)
	}

	// Set read timeout
	if err := port.SetReadTimeout(DefaultReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	return &Port{
		port:     port,
		portName: portName,
		params:   params,
		buf:      make([]byte, 1024),
	}, nil
}

// Close closes the serial port.
func (p *Port) Close() error {
	if p.port != nil {
		err := p.port.Close()
		p.port = nil
		return err
	}
	return nil
}

// Write writes data to the serial port.
func (p *Port) Write(data []byte) (int, error) {
	n, err := p.port.Write(data)
	if err != nil {
		return n, err
	}
	return n, p.port.Drain()
}

// ReadAvailable returns whatever bytes arrive within the read timeout.
// An empty result is not an error.
func (p *Port) ReadAvailable() ([]byte, error) {
	n, err := p.port.Read(p.buf)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), p.buf[:n]...), nil
}

// FlushInput discards unread input.
func (p *Port) FlushInput() error {
	return p.port.ResetInputBuffer()
}

// FlushOutput discards unsent output.
func (p *Port) FlushOutput() error {
	return p.port.ResetOutputBuffer()
}

// SetLineParams reconfigures baud rate and framing.
func (p *Port) SetLineParams(params LineParams) error {
	mode, err := params.mode()
	if err != nil {
		return err
	}
	if err := p.port.SetMode(mode); err != nil {
		return fmt.Errorf("failed to set line params %s: %w", params, err)
	}
	p.params = params
	return nil
}

// SetControlLines drives RST and TEST. The lines are inverted on the way
// to the target, so a high level means a deasserted modem line.
func (p *Port) SetControlLines(reset, test bool) error {
	if err := p.port.SetDTR(!reset); err != nil {
		return fmt.Errorf("failed to set DTR: %w", err)
	}
	if err := p.port.SetRTS(!test); err != nil {
		return fmt.Errorf("failed to set RTS: %w", err)
	}
	return nil
}

// PortName returns the port name.
func (p *Port) PortName() string {
	return p.portName
}

// LineParams returns the current line parameters.
func (p *Port) LineParams() LineParams {
	return p.params
}

// PortInfo describes an available serial port.
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

func (pi PortInfo) String() string {
	if !pi.IsUSB {
		return pi.Name
	}
	s := fmt.Sprintf("%s [%s:%s]", pi.Name, pi.VID, pi.PID)
	if pi.SerialNumber != "" {
		s += " serial " + pi.SerialNumber
	}
	if pi.Product != "" {
		s += " " + pi.Product
	}
	return s
}

// ListPorts returns a list of available serial ports.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}
	return ports, nil
}

// ListPortDetails returns available ports with USB details where the OS
// provides them.
func ListPortDetails() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate ports: %w", err)
	}

	infos := make([]PortInfo, 0, len(details))
	for _, d := range details {
		infos = append(infos, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	return infos, nil
}
