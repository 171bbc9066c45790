package protocol

import "fmt"

// Status is the code carried by a message response.
type Status byte

// BSL message codes
const (
	StatusSuccess               Status = 0x00
	StatusFlashWriteCheckFailed Status = 0x01
	StatusFlashFailBitSet       Status = 0x02
	StatusVoltageChanged        Status = 0x03
	StatusBSLLocked             Status = 0x04
	StatusBadPassword           Status = 0x05
	StatusByteWriteForbidden    Status = 0x06
	StatusUnknownCommand        Status = 0x07
	StatusPacketTooLarge        Status = 0x08
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFlashWriteCheckFailed:
		return "flash-write-check-failed"
	case StatusFlashFailBitSet:
		return "flash-fail-bit-set"
	case StatusVoltageChanged:
		return "voltage-changed"
	case StatusBSLLocked:
		return "bsl-locked"
	case StatusBadPassword:
		return "bad-password"
	case StatusByteWriteForbidden:
		return "byte-write-forbidden"
	case StatusUnknownCommand:
		return "unknown-command"
	case StatusPacketTooLarge:
		return "packet-too-large"
	default:
		return fmt.Sprintf("status(0x%02X)", byte(s))
	}
}

// Reason returns the documented meaning of the status code.
func (s Status) Reason() string {
	switch s {
	case StatusSuccess:
		return "operation successful"
	case StatusFlashWriteCheckFailed:
		return "flash write check failed, the CRC run after programming did not match"
	case StatusFlashFailBitSet:
		return "flash fail bit set by an operation in the flash controller"
	case StatusVoltageChanged:
		return "voltage change during program, VPE was set during the write"
	case StatusBSLLocked:
		return "BSL locked, the correct password has not yet been supplied"
	case StatusBadPassword:
		return "BSL password error, an incorrect password was supplied"
	case StatusByteWriteForbidden:
		return "byte write forbidden in a flash area"
	case StatusUnknownCommand:
		return "unknown command"
	case StatusPacketTooLarge:
		return "packet length exceeds the BSL receive buffer size"
	default:
		return "unknown status"
	}
}
