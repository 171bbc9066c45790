package detect

import (
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/bigbag/msp430-flasher/internal/flasher"
	"github.com/bigbag/msp430-flasher/internal/protocol"
	"github.com/bigbag/msp430-flasher/internal/serial"
)

// ProbeTimeout bounds each ACK and response wait while probing a port.
const ProbeTimeout = 300 * time.Millisecond

// Result represents a port with a responding BSL.
type Result struct {
	Port       string
	Version    []byte
	BufferSize int
}

// VersionString formats the four BSL version bytes.
func (r Result) VersionString() string {
	if len(r.Version) != 4 {
		return fmt.Sprintf("% X", r.Version)
	}
	return fmt.Sprintf("vendor 0x%02X, interpreter 0x%02X, API 0x%02X, interface 0x%02X",
		r.Version[0], r.Version[1], r.Version[2], r.Version[3])
}

// Seams for tests.
var (
	listPorts = serial.ListPorts
	openPort  = func(name string) (flasher.Transport, error) {
		port, err := serial.Open(name, serial.DefaultLineParams(protocol.HandshakeBaudRate))
		if err != nil {
			return nil, err
		}
		return port, nil
	}
)

// DetectDevice returns the first port with a responding BSL.
func DetectDevice() (*Result, error) {
	ports, err := listPorts()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list ports")
	}

	if len(ports) == 0 {
		return nil, errors.New("no serial ports found")
	}

	var lastErr error
	for _, portName := range ports {
		result, err := tryPort(portName)
		if err != nil {
			glog.V(1).Infof("No BSL on %s: %v", portName, err)
			lastErr = err
			continue
		}
		return result, nil
	}

	return nil, errors.Wrap(lastErr, "no MSP430 BSL found")
}

// DetectOnPort probes a specific port.
func DetectOnPort(portName string) (*Result, error) {
	return tryPort(portName)
}

// ListDevices probes every port and returns the ones with a responding BSL.
func ListDevices() ([]Result, error) {
	ports, err := listPorts()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list ports")
	}

	var results []Result
	for _, portName := range ports {
		result, err := tryPort(portName)
		if err == nil {
			results = append(results, *result)
		}
	}

	return results, nil
}

func tryPort(portName string) (*Result, error) {
	port, err := openPort(portName)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", portName)
	}

	conn := flasher.New(port,
		flasher.WithAckTimeout(ProbeTimeout),
		flasher.WithResponseTimeout(ProbeTimeout),
	)
	defer conn.Close()

	if err := conn.EnterBSL(); err != nil {
		return nil, err
	}

	version, err := conn.BSLVersion()
	if err != nil {
		return nil, errors.Wrapf(err, "%s: bsl version", portName)
	}

	result := &Result{Port: portName, Version: version}

	// Older BSL versions may lock this command behind the password.
	if size, err := conn.BufferSize(); err == nil {
		result.BufferSize = size
	}

	return result, nil
}
