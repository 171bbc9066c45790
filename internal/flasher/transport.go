package flasher

import "github.com/bigbag/msp430-flasher/internal/serial"

// Transport is the byte link to the target. *serial.Port implements it.
type Transport interface {
	Write(data []byte) (int, error)
	// ReadAvailable returns the bytes received so far, possibly none,
	// blocking for at most a short while.
	ReadAvailable() ([]byte, error)
	FlushInput() error
	FlushOutput() error
	SetLineParams(params serial.LineParams) error
	SetControlLines(reset, test bool) error
	Close() error
}

var _ Transport = (*serial.Port)(nil)
