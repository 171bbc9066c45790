package protocol

import (
	"encoding/binary"
	"fmt"
)

// CommandName identifies a BSL core command.
type CommandName uint8

// BSL core commands
const (
	CmdRxDataBlock CommandName = iota + 1
	CmdRxPassword
	CmdEraseSegment
	CmdLockUnlockInfo
	CmdMassErase
	CmdCRCCheck
	CmdLoadPC
	CmdTxDataBlock
	CmdTxBSLVersion
	CmdTxBufferSize
	CmdRxDataBlockFast
	CmdChangeBaudRate
)

// AddressSize is the number of address bytes carried by a command.
const AddressSize = 3

// MaxAddress is the highest address encodable in a command.
const MaxAddress = 1<<(8*AddressSize) - 1

// ResponseShape describes the frame a command expects after its ACK.
type ResponseShape struct {
	// Kind is KindNone when the BSL only sends the ACK.
	Kind ResponseKind
	// Size is the exact data size, 0 when not declared.
	Size int
	// MinSize is the minimum data size, 0 when not declared.
	MinSize int
}

// Entry is the static description of a command.
type Entry struct {
	Name            string
	Opcode          byte
	RequiresAddress bool
	RequiresData    bool
	Response        ResponseShape
}

var (
	messageResponse = ResponseShape{Kind: KindMessage, Size: 1}
	noResponse      = ResponseShape{Kind: KindNone}
)

// Entry returns the catalog entry of the command.
func (n CommandName) Entry() (Entry, bool) {
	switch n {
	case CmdRxDataBlock:
		return Entry{"rx_data_block", 0x10, true, true, messageResponse}, true
	case CmdRxPassword:
		return Entry{"rx_password", 0x11, false, true, messageResponse}, true
	case CmdEraseSegment:
		return Entry{"erase_segment", 0x12, true, false, messageResponse}, true
	case CmdLockUnlockInfo:
		return Entry{"lock_unlock_info", 0x13, false, false, messageResponse}, true
	case CmdMassErase:
		return Entry{"mass_erase", 0x15, false, false, messageResponse}, true
	case CmdCRCCheck:
		return Entry{"crc_check", 0x16, true, true, ResponseShape{Kind: KindData, Size: 2}}, true
	case CmdLoadPC:
		return Entry{"load_pc", 0x17, true, false, messageResponse}, true
	case CmdTxDataBlock:
		return Entry{"tx_data_block", 0x18, true, true, ResponseShape{Kind: KindData, MinSize: 1}}, true
	case CmdTxBSLVersion:
		return Entry{"tx_bsl_version", 0x19, false, false, ResponseShape{Kind: KindData, Size: 4}}, true
	case CmdTxBufferSize:
		return Entry{"tx_buffer_size", 0x1A, false, false, ResponseShape{Kind: KindData, Size: 2}}, true
	case CmdRxDataBlockFast:
		return Entry{"rx_data_block_fast", 0x1B, true, true, noResponse}, true
	case CmdChangeBaudRate:
		return Entry{"change_baud_rate", 0x52, false, true, noResponse}, true
	}
	return Entry{}, false
}

func (n CommandName) String() string {
	if e, ok := n.Entry(); ok {
		return e.Name
	}
	return fmt.Sprintf("CommandName(%d)", uint8(n))
}

// Commands returns every supported command.
func Commands() []CommandName {
	return []CommandName{
		CmdRxDataBlock, CmdRxPassword, CmdEraseSegment, CmdLockUnlockInfo,
		CmdMassErase, CmdCRCCheck, CmdLoadPC, CmdTxDataBlock, CmdTxBSLVersion,
		CmdTxBufferSize, CmdRxDataBlockFast, CmdChangeBaudRate,
	}
}

// ParseCommandName resolves a snake_case command name.
func ParseCommandName(s string) (CommandName, error) {
	for _, n := range Commands() {
		if n.String() == s {
			return n, nil
		}
	}
	return 0, &CommandError{Name: s, Err: ErrUnsupportedCommand}
}

// Command is a single BSL command invocation.
type Command struct {
	name       CommandName
	entry      Entry
	address    uint32
	hasAddress bool
	data       []byte
	hasData    bool
}

// Arg sets an optional command field.
type Arg func(*Command)

// WithAddress sets the target address.
func WithAddress(addr uint32) Arg {
	return func(c *Command) {
		c.address = addr
		c.hasAddress = true
	}
}

// WithData sets the command data.
func WithData(data []byte) Arg {
	return func(c *Command) {
		c.data = append([]byte(nil), data...)
		c.hasData = true
	}
}

// NewCommand builds a command, checking it against the catalog.
func NewCommand(name CommandName, args ...Arg) (*Command, error) {
	entry, ok := name.Entry()
	if !ok {
		return nil, &CommandError{Name: name.String(), Err: ErrUnsupportedCommand}
	}

	c := &Command{name: name, entry: entry}
	for _, arg := range args {
		arg(c)
	}

	if entry.RequiresAddress && !c.hasAddress {
		return nil, &CommandError{Name: entry.Name, Err: ErrMissingAddress}
	}
	if entry.RequiresData && !c.hasData {
		return nil, &CommandError{Name: entry.Name, Err: ErrMissingData}
	}
	if c.hasAddress && c.address > MaxAddress {
		return nil, &CommandError{Name: entry.Name, Err: fmt.Errorf("%w: 0x%X", ErrAddressRange, c.address)}
	}

	return c, nil
}

// Name returns the command name.
func (c *Command) Name() CommandName {
	return c.name
}

// Entry returns the catalog entry of the command.
func (c *Command) Entry() Entry {
	return c.entry
}

// Address returns the command address and whether one was given.
func (c *Command) Address() (uint32, bool) {
	return c.address, c.hasAddress
}

// Data returns the command data.
func (c *Command) Data() []byte {
	return c.data
}

// Payload serializes the command as opcode, optional address, optional data.
func (c *Command) Payload() []byte {
	// Format:
	// 0: opcode
	// 1-3: address (little-endian, only when given)
	// 4+: data
	payload := make([]byte, 0, 1+AddressSize+len(c.data))
	payload = append(payload, c.entry.Opcode)
	if c.hasAddress {
		var addr [4]byte
		binary.LittleEndian.PutUint32(addr[:], c.address)
		payload = append(payload, addr[:AddressSize]...)
	}
	return append(payload, c.data...)
}
