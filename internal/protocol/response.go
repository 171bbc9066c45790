package protocol

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// ResponseKind is the first payload byte of a response frame.
type ResponseKind byte

// Response kinds
const (
	KindNone    ResponseKind = 0x00
	KindData    ResponseKind = 0x3A
	KindMessage ResponseKind = 0x3B
)

func (k ResponseKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindData:
		return "data"
	case KindMessage:
		return "message"
	default:
		return fmt.Sprintf("kind(0x%02X)", byte(k))
	}
}

// Response is a validated response frame payload.
type Response struct {
	Kind ResponseKind
	// Data excludes the kind byte.
	Data []byte
}

// Status returns the message code of a message response.
func (r *Response) Status() Status {
	if r.Kind != KindMessage || len(r.Data) == 0 {
		return StatusSuccess
	}
	return Status(r.Data[0])
}

// Uint16 decodes the first two data bytes as little-endian.
func (r *Response) Uint16() uint16 {
	if len(r.Data) < 2 {
		return 0
	}
	return binary.LittleEndian.Uint16(r.Data)
}

// ReasonCode classifies a validation failure.
type ReasonCode int

// Validation failure classes
const (
	ReasonKind ReasonCode = iota
	ReasonDataSize
	ReasonMinDataSize
	ReasonMessageCode
)

// Reason is one validation failure.
type Reason struct {
	Code    ReasonCode
	Message string
	// Status is set for ReasonMessageCode.
	Status Status
}

// Err returns the sentinel error matching the reason.
func (r Reason) Err() error {
	switch r.Code {
	case ReasonDataSize:
		return ErrDataSizeMismatch
	case ReasonMinDataSize:
		return ErrMinDataSizeMismatch
	case ReasonMessageCode:
		return ErrMessageCodeMismatch
	default:
		return ErrKindMismatch
	}
}

// ResponseError lists every way a response failed validation.
type ResponseError struct {
	Command CommandName
	Reasons []Reason
}

func (e *ResponseError) Error() string {
	msgs := make([]string, 0, len(e.Reasons))
	for _, r := range e.Reasons {
		msgs = append(msgs, r.Message)
	}
	return fmt.Sprintf("response to %s not valid: %s", e.Command, strings.Join(msgs, "; "))
}

func (e *ResponseError) Unwrap() []error {
	errs := make([]error, 0, len(e.Reasons))
	for _, r := range e.Reasons {
		errs = append(errs, r.Err())
	}
	return errs
}

// Status returns the failing message code, if any.
func (e *ResponseError) Status() (Status, bool) {
	for _, r := range e.Reasons {
		if r.Code == ReasonMessageCode {
			return r.Status, true
		}
	}
	return StatusSuccess, false
}

// ValidateResponse checks a response frame payload against the shape the
// command declares. The payload is not modified.
func ValidateResponse(cmd *Command, payload []byte) (*Response, error) {
	shape := cmd.Entry().Response
	var reasons []Reason

	if len(payload) == 0 {
		reasons = append(reasons, Reason{
			Code:    ReasonKind,
			Message: fmt.Sprintf("empty payload, expected response kind %s", shape.Kind),
		})
		return nil, &ResponseError{Command: cmd.Name(), Reasons: reasons}
	}

	resp := &Response{
		Kind: ResponseKind(payload[0]),
		Data: append([]byte(nil), payload[1:]...),
	}

	if resp.Kind != shape.Kind || shape.Kind == KindNone {
		reasons = append(reasons, Reason{
			Code:    ReasonKind,
			Message: fmt.Sprintf("expected response kind %s (0x%02X), got 0x%02X", shape.Kind, byte(shape.Kind), byte(resp.Kind)),
		})
	}

	switch resp.Kind {
	case KindMessage:
		if len(resp.Data) != 1 {
			reasons = append(reasons, Reason{
				Code:    ReasonDataSize,
				Message: fmt.Sprintf("expected message data size to be exactly 1 byte, got %d bytes", len(resp.Data)),
			})
		}
		if len(resp.Data) > 0 && Status(resp.Data[0]) != StatusSuccess {
			status := Status(resp.Data[0])
			reasons = append(reasons, Reason{
				Code:    ReasonMessageCode,
				Message: fmt.Sprintf("message code 0x%02X (%s): %s", byte(status), status, status.Reason()),
				Status:  status,
			})
		}
	case KindData:
		if shape.Size > 0 && len(resp.Data) != shape.Size {
			reasons = append(reasons, Reason{
				Code:    ReasonDataSize,
				Message: fmt.Sprintf("expected data size to be exactly %d bytes, got %d bytes", shape.Size, len(resp.Data)),
			})
		}
		if shape.MinSize > 0 && len(resp.Data) < shape.MinSize {
			reasons = append(reasons, Reason{
				Code:    ReasonMinDataSize,
				Message: fmt.Sprintf("expected data to have at least %d bytes, got %d bytes", shape.MinSize, len(resp.Data)),
			})
		}
	}

	if len(reasons) > 0 {
		return nil, &ResponseError{Command: cmd.Name(), Reasons: reasons}
	}
	return resp, nil
}
