package frame

import (
	"encoding/binary"
	"fmt"
)

// State is the field the parser is waiting for.
type State int

// Parser states, in wire order
const (
	StateHeader State = iota
	StateLength
	StatePayload
	StateCRC
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateHeader:
		return "header"
	case StateLength:
		return "length"
	case StatePayload:
		return "payload"
	case StateCRC:
		return "crc"
	case StateComplete:
		return "complete"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Parser accumulates one inbound frame from arbitrarily sized chunks.
// Each field is extracted once, as soon as enough bytes are buffered.
type Parser struct {
	state State
	buf   []byte
	frame Frame
}

// NewParser returns a parser waiting for a header byte.
func NewParser() *Parser {
	return &Parser{}
}

// Push feeds bytes into the parser. It returns the bytes left over after the
// frame completed, which belong to whatever follows on the wire.
func (p *Parser) Push(data []byte) []byte {
	if p.state == StateComplete {
		return data
	}
	p.buf = append(p.buf, data...)

	for p.state != StateComplete {
		size := p.fieldSize()
		if len(p.buf) < size {
			return nil
		}
		field := p.buf[:size]

		switch p.state {
		case StateHeader:
			p.frame.Header = field[0]
			p.state = StateLength
		case StateLength:
			p.frame.Length = binary.LittleEndian.Uint16(field)
			p.frame.Payload = make([]byte, 0, p.frame.Length)
			p.state = StatePayload
		case StatePayload:
			p.frame.Payload = append(p.frame.Payload, field...)
			p.state = StateCRC
		case StateCRC:
			p.frame.CRC = binary.LittleEndian.Uint16(field)
			p.state = StateComplete
		}
		p.buf = p.buf[size:]
	}

	rest := p.buf
	p.buf = nil
	if len(rest) == 0 {
		return nil
	}
	return rest
}

func (p *Parser) fieldSize() int {
	switch p.state {
	case StateHeader:
		return 1
	case StateLength:
		return HeaderSize - 1
	case StatePayload:
		return int(p.frame.Length)
	case StateCRC:
		return CRCSize
	default:
		return 0
	}
}

// Remaining returns how many more bytes the current field needs.
func (p *Parser) Remaining() int {
	if n := p.fieldSize() - len(p.buf); n > 0 {
		return n
	}
	return 0
}

// State returns the field the parser is waiting for.
func (p *Parser) State() State {
	return p.state
}

// Complete reports whether header, length, payload and CRC are all present.
func (p *Parser) Complete() bool {
	return p.state == StateComplete
}

// Frame returns the accumulated frame, or nil while incomplete.
func (p *Parser) Frame() *Frame {
	if !p.Complete() {
		return nil
	}
	f := p.frame
	return &f
}

// Validate checks the completed frame.
func (p *Parser) Validate() error {
	if !p.Complete() {
		return &ProtocolError{Err: ErrIncomplete, Detail: fmt.Sprintf("waiting for %s", p.state)}
	}
	return p.frame.Validate()
}

// Reset discards any buffered state.
func (p *Parser) Reset() {
	*p = Parser{}
}
