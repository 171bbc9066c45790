package frame

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/bigbag/msp430-flasher/internal/crc"
)

const (
	Header     = 0x80
	HeaderSize = 3 // header byte + 2 length bytes
	CRCSize    = 2
	Overhead   = HeaderSize + CRCSize

	// MaxPayloadSize is the largest payload the 2-byte length field can describe.
	MaxPayloadSize = 0xFFFF
)

// ErrPayloadTooLarge is returned by Build when the payload does not fit the length field.
var ErrPayloadTooLarge = errors.New("payload too large")

// Frame is one BSL peripheral interface packet.
type Frame struct {
	Header  byte
	Length  uint16
	Payload []byte
	CRC     uint16
}

// Build wraps payload in a frame: header, LE length, payload, LE CRC16 of payload.
func Build(payload []byte) (*Frame, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}

	return &Frame{
		Header:  Header,
		Length:  uint16(len(payload)),
		Payload: append([]byte(nil), payload...),
		CRC:     crc.CRC16(payload),
	}, nil
}

// Bytes serializes the frame for the wire.
func (f *Frame) Bytes() []byte {
	// Format:
	// 0: header (0x80)
	// 1-2: payload length (little-endian)
	// 3..n: payload
	// n+1..n+2: CRC16 of payload (little-endian)
	out := make([]byte, 0, Overhead+len(f.Payload))
	out = append(out, f.Header)
	out = binary.LittleEndian.AppendUint16(out, f.Length)
	out = append(out, f.Payload...)
	out = binary.LittleEndian.AppendUint16(out, f.CRC)
	return out
}

// Validate checks the header sentinel, the length field and the CRC.
func (f *Frame) Validate() error {
	if f.Header != Header {
		return &ProtocolError{
			Err:    ErrHeaderMismatch,
			Detail: fmt.Sprintf("got 0x%02X, want 0x%02X", f.Header, Header),
		}
	}
	if int(f.Length) != len(f.Payload) {
		return &ProtocolError{
			Err:    ErrLengthMismatch,
			Detail: fmt.Sprintf("length field %d, payload %d bytes", f.Length, len(f.Payload)),
		}
	}
	if sum := crc.CRC16(f.Payload); sum != f.CRC {
		return &ProtocolError{
			Err:    ErrCRCMismatch,
			Detail: fmt.Sprintf("got 0x%04X, computed 0x%04X", f.CRC, sum),
		}
	}
	return nil
}

// Encode builds a frame around payload and returns its wire bytes.
func Encode(payload []byte) ([]byte, error) {
	f, err := Build(payload)
	if err != nil {
		return nil, err
	}
	return f.Bytes(), nil
}
