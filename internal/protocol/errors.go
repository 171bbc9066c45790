package protocol

import (
	"errors"
	"fmt"
)

// Command construction errors.
var (
	ErrUnsupportedCommand = errors.New("unsupported command")
	ErrMissingAddress     = errors.New("command requires an address")
	ErrMissingData        = errors.New("command requires data")
	ErrAddressRange       = errors.New("address does not fit in 3 bytes")
)

// Response validation errors. They appear as reasons of a ResponseError.
var (
	ErrKindMismatch        = errors.New("response kind mismatch")
	ErrDataSizeMismatch    = errors.New("response data size mismatch")
	ErrMinDataSizeMismatch = errors.New("response data shorter than minimum")
	ErrMessageCodeMismatch = errors.New("response message code not successful")
)

// ErrUnsupportedBaud is returned for rates outside the BSL baud table.
var ErrUnsupportedBaud = errors.New("unsupported baud rate")

// CommandError reports a command that could not be built.
type CommandError struct {
	Name string
	Err  error
}

func (e *CommandError) Error() string {
	if errors.Is(e.Err, ErrUnsupportedCommand) {
		return fmt.Sprintf("command %q not recognized, supported commands: %v", e.Name, Commands())
	}
	return fmt.Sprintf("command %q: %v", e.Name, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// BaudError reports a baud rate the BSL cannot switch to.
type BaudError struct {
	Baud int
}

func (e *BaudError) Error() string {
	return fmt.Sprintf("baud rate %d not supported, supported rates: %v", e.Baud, BaudRates())
}

func (e *BaudError) Unwrap() error {
	return ErrUnsupportedBaud
}
