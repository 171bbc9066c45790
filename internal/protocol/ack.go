package protocol

import "fmt"

// Ack is the single byte the BSL returns right after receiving a frame.
type Ack byte

// UART ACK values
const (
	AckOK                Ack = 0x00
	AckHeaderIncorrect   Ack = 0x51
	AckChecksumIncorrect Ack = 0x52
	AckPacketSizeZero    Ack = 0x53
	AckPacketSizeExceeds Ack = 0x54
	AckUnknownError      Ack = 0x55
	AckUnknownBaudRate   Ack = 0x56
)

// OK reports whether the frame was accepted.
func (a Ack) OK() bool {
	return a == AckOK
}

// Known reports whether a is one of the documented ACK values.
func (a Ack) Known() bool {
	switch a {
	case AckOK, AckHeaderIncorrect, AckChecksumIncorrect, AckPacketSizeZero,
		AckPacketSizeExceeds, AckUnknownError, AckUnknownBaudRate:
		return true
	}
	return false
}

func (a Ack) String() string {
	switch a {
	case AckOK:
		return "ack"
	case AckHeaderIncorrect:
		return "header-incorrect"
	case AckChecksumIncorrect:
		return "checksum-incorrect"
	case AckPacketSizeZero:
		return "packet-size-zero"
	case AckPacketSizeExceeds:
		return "packet-size-exceeds"
	case AckUnknownError:
		return "unknown-error"
	case AckUnknownBaudRate:
		return "unknown-baud-rate"
	default:
		return fmt.Sprintf("unsupported-ack(0x%02X)", byte(a))
	}
}

// Reason returns the documented meaning of the ACK value.
func (a Ack) Reason() string {
	switch a {
	case AckOK:
		return "command correctly received"
	case AckHeaderIncorrect:
		return "header incorrect, the packet did not begin with 0x80"
	case AckChecksumIncorrect:
		return "checksum incorrect, the packet did not have the correct checksum value"
	case AckPacketSizeZero:
		return "packet size zero, the size for the BSL core command was given as 0"
	case AckPacketSizeExceeds:
		return "packet size exceeds buffer, the packet size given is too big for the RX buffer"
	case AckUnknownError:
		return "unknown error"
	case AckUnknownBaudRate:
		return "unknown baud rate, the supplied data for baud rate change is not a known value"
	default:
		return fmt.Sprintf("unsupported ACK value 0x%02X", byte(a))
	}
}
