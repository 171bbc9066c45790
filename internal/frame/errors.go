package frame

import (
	"errors"
	"fmt"
)

// Frame validation errors
var (
	ErrHeaderMismatch = errors.New("header mismatch")
	ErrLengthMismatch = errors.New("length mismatch")
	ErrCRCMismatch    = errors.New("crc mismatch")
	ErrIncomplete     = errors.New("frame incomplete")
)

// ProtocolError reports a frame that failed validation.
type ProtocolError struct {
	Err    error
	Detail string
}

func (e *ProtocolError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("frame: %v", e.Err)
	}
	return fmt.Sprintf("frame: %v: %s", e.Err, e.Detail)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
