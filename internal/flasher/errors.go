package flasher

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/bigbag/msp430-flasher/internal/protocol"
)

// Connection errors
var (
	ErrAckTimeout      = errors.New("ack timeout")
	ErrResponseTimeout = errors.New("response timeout")
	ErrAckNotOK        = errors.New("ack not ok")
	ErrResponseInvalid = errors.New("response not valid")
	ErrWriteVerify     = errors.New("write verify failed")
	ErrNotReady        = errors.New("connection not ready")
	ErrClosed          = errors.New("connection closed")
)

// TimeoutError reports an ACK or response that did not arrive in time.
type TimeoutError struct {
	Command protocol.CommandName
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: %v after %s", e.Command, e.Err, e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// AckError reports a frame the BSL refused.
type AckError struct {
	Command protocol.CommandName
	Ack     protocol.Ack
}

func (e *AckError) Error() string {
	return fmt.Sprintf("%s: %v: 0x%02X %s (%s)", e.Command, ErrAckNotOK, byte(e.Ack), e.Ack, e.Ack.Reason())
}

func (e *AckError) Unwrap() error {
	return ErrAckNotOK
}

// InvalidResponseError reports a well-formed response frame that does not
// match what the command expects. It matches ErrResponseInvalid and the
// protocol validation errors.
type InvalidResponseError struct {
	Command protocol.CommandName
	Err     error
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Command, ErrResponseInvalid, e.Err)
}

func (e *InvalidResponseError) Unwrap() []error {
	return []error{ErrResponseInvalid, e.Err}
}

// WriteVerifyError reports a packet whose CRC kept mismatching.
type WriteVerifyError struct {
	Address  uint32
	Length   int
	Attempts int
	Expected uint16
	Actual   uint16
}

func (e *WriteVerifyError) Error() string {
	return fmt.Sprintf("%v at 0x%06X (%d bytes) after %d attempts: crc 0x%04X, device 0x%04X",
		ErrWriteVerify, e.Address, e.Length, e.Attempts, e.Expected, e.Actual)
}

func (e *WriteVerifyError) Unwrap() error {
	return ErrWriteVerify
}
