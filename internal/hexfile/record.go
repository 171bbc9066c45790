package hexfile

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/bigbag/msp430-flasher/internal/crc"
)

// RecordType is the TT field of a record.
type RecordType byte

// Intel HEX record types
const (
	TypeData                RecordType = 0x00
	TypeEOF                 RecordType = 0x01
	TypeExtSegmentAddress   RecordType = 0x02
	TypeStartSegmentAddress RecordType = 0x03
	TypeExtLinearAddress    RecordType = 0x04
	TypeStartLinearAddress  RecordType = 0x05
)

func (t RecordType) String() string {
	switch t {
	case TypeData:
		return "data"
	case TypeEOF:
		return "eof"
	case TypeExtSegmentAddress:
		return "ext-segment-address"
	case TypeStartSegmentAddress:
		return "start-segment-address"
	case TypeExtLinearAddress:
		return "ext-linear-address"
	case TypeStartLinearAddress:
		return "start-linear-address"
	default:
		return fmt.Sprintf("type(0x%02X)", byte(t))
	}
}

// Marker starts every record line.
const Marker = ':'

// minRecordSize is byte count, 2 address bytes, type and checksum.
const minRecordSize = 5

// Record is one line of an image.
type Record struct {
	ByteCount byte
	Address   uint16
	Type      RecordType
	Data      []byte
	Checksum  byte

	// Base is the address set by the last extended address record before this one.
	Base uint32
	// Line is the 1-based source line, 0 for synthesized records.
	Line int
}

// ParseRecord decodes a single record line. It checks structure only; see ChecksumOK.
func ParseRecord(line string) (*Record, error) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] != Marker {
		return nil, errors.Wrap(ErrMalformedRecord, "missing ':' record marker")
	}

	raw, err := hex.DecodeString(line[1:])
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedRecord, "bad hex: %v", err)
	}
	if len(raw) < minRecordSize {
		return nil, errors.Wrapf(ErrMalformedRecord, "%d bytes, need at least %d", len(raw), minRecordSize)
	}

	// Format:
	// 0: byte count
	// 1-2: address (big-endian)
	// 3: record type
	// 4..n: data
	// n+1: checksum
	count := int(raw[0])
	if len(raw) != minRecordSize+count {
		return nil, errors.Wrapf(ErrMalformedRecord, "byte count %d, record carries %d data bytes", count, len(raw)-minRecordSize)
	}

	return &Record{
		ByteCount: raw[0],
		Address:   uint16(raw[1])<<8 | uint16(raw[2]),
		Type:      RecordType(raw[3]),
		Data:      append([]byte(nil), raw[4:4+count]...),
		Checksum:  raw[len(raw)-1],
	}, nil
}

// NewRecord synthesizes a record, computing byte count and checksum.
func NewRecord(typ RecordType, address uint16, data []byte) *Record {
	r := &Record{
		ByteCount: byte(len(data)),
		Address:   address,
		Type:      typ,
		Data:      append([]byte(nil), data...),
	}
	r.Checksum = crc.CRC8(r.header())
	return r
}

// NewDataRecord synthesizes a data record.
func NewDataRecord(address uint16, data []byte) *Record {
	return NewRecord(TypeData, address, data)
}

// EOFRecord returns the end-of-file terminator, :00000001FF.
func EOFRecord() *Record {
	return NewRecord(TypeEOF, 0, nil)
}

// header returns every record byte except the checksum.
func (r *Record) header() []byte {
	b := make([]byte, 0, minRecordSize-1+len(r.Data))
	b = append(b, r.ByteCount, byte(r.Address>>8), byte(r.Address), byte(r.Type))
	return append(b, r.Data...)
}

// Bytes returns the decoded record including the checksum.
func (r *Record) Bytes() []byte {
	return append(r.header(), r.Checksum)
}

// ChecksumOK reports whether the checksum matches the other record bytes.
func (r *Record) ChecksumOK() bool {
	return crc.CRC8(r.header()) == r.Checksum
}

// AbsAddress is the record address with the extended base applied.
func (r *Record) AbsAddress() uint32 {
	return r.Base + uint32(r.Address)
}

// EndAddress is the first address after the record data.
func (r *Record) EndAddress() uint32 {
	return r.AbsAddress() + uint32(r.ByteCount)
}

// ContiguousWith reports whether r starts exactly where prev ends.
func (r *Record) ContiguousWith(prev *Record) bool {
	return prev.EndAddress() == r.AbsAddress()
}

// extendedBase returns the base address set by an extended address record.
func (r *Record) extendedBase() (uint32, bool) {
	if len(r.Data) != 2 {
		return 0, false
	}
	v := uint32(r.Data[0])<<8 | uint32(r.Data[1])
	switch r.Type {
	case TypeExtSegmentAddress:
		return v << 4, true
	case TypeExtLinearAddress:
		return v << 16, true
	}
	return 0, false
}

func (r *Record) String() string {
	return string(Marker) + strings.ToUpper(hex.EncodeToString(r.Bytes()))
}
