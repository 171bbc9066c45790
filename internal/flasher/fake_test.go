package flasher

import (
	"encoding/binary"
	"time"

	"github.com/bigbag/msp430-flasher/internal/crc"
	"github.com/bigbag/msp430-flasher/internal/frame"
	"github.com/bigbag/msp430-flasher/internal/protocol"
	"github.com/bigbag/msp430-flasher/internal/serial"
)

// sentCommand is a command the fake device decoded from a written frame.
type sentCommand struct {
	name    protocol.CommandName
	address uint32
	data    []byte
}

type lineState struct {
	reset bool
	test  bool
}

// fakeDevice is a Transport backed by a simulated BSL with a flat memory.
type fakeDevice struct {
	mem        map[uint32]byte
	bufferSize int
	version    []byte

	// chunk splits replies into reads of at most chunk bytes, 0 for whole.
	chunk int
	// reply, when set, replaces the simulated reply for a command.
	reply func(cmd sentCommand) ([]byte, bool)
	// badCRCs makes the next n crc_check replies wrong.
	badCRCs int

	pending  []byte
	writes   [][]byte
	commands []sentCommand
	lines    []lineState
	params   []serial.LineParams
	flushIn  int
	flushOut int
	closed   bool
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		mem:        make(map[uint32]byte),
		bufferSize: protocol.DefaultBufferSize,
		version:    []byte{0x00, 0x05, 0x04, 0x06},
	}
}

func (d *fakeDevice) Write(data []byte) (int, error) {
	d.writes = append(d.writes, append([]byte(nil), data...))

	p := frame.NewParser()
	p.Push(data)
	if p.Validate() != nil {
		d.pending = append(d.pending, byte(protocol.AckChecksumIncorrect))
		return len(data), nil
	}

	cmd := decodeCommand(p.Frame().Payload)
	d.commands = append(d.commands, cmd)

	if d.reply != nil {
		if raw, ok := d.reply(cmd); ok {
			d.pending = append(d.pending, raw...)
			return len(data), nil
		}
	}
	d.pending = append(d.pending, d.simulate(cmd)...)
	return len(data), nil
}

func decodeCommand(payload []byte) sentCommand {
	for _, name := range protocol.Commands() {
		entry, _ := name.Entry()
		if entry.Opcode != payload[0] {
			continue
		}
		cmd := sentCommand{name: name}
		rest := payload[1:]
		if entry.RequiresAddress {
			cmd.address = uint32(rest[0]) | uint32(rest[1])<<8 | uint32(rest[2])<<16
			rest = rest[3:]
		}
		cmd.data = append([]byte(nil), rest...)
		return cmd
	}
	return sentCommand{}
}

func (d *fakeDevice) read(addr uint32, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		b, ok := d.mem[addr+uint32(i)]
		if !ok {
			b = 0xFF
		}
		out[i] = b
	}
	return out
}

func (d *fakeDevice) simulate(cmd sentCommand) []byte {
	switch cmd.name {
	case protocol.CmdRxDataBlock:
		for i, b := range cmd.data {
			d.mem[cmd.address+uint32(i)] = b
		}
		return ackMessage(protocol.StatusSuccess)
	case protocol.CmdMassErase:
		d.mem = make(map[uint32]byte)
		return ackMessage(protocol.StatusSuccess)
	case protocol.CmdCRCCheck:
		sum := crc.CRC16(d.read(cmd.address, int(binary.LittleEndian.Uint16(cmd.data))))
		if d.badCRCs > 0 {
			d.badCRCs--
			sum ^= 0xFFFF
		}
		return ackData(binary.LittleEndian.AppendUint16(nil, sum))
	case protocol.CmdTxDataBlock:
		return ackData(d.read(cmd.address, int(binary.LittleEndian.Uint16(cmd.data))))
	case protocol.CmdTxBSLVersion:
		return ackData(d.version)
	case protocol.CmdTxBufferSize:
		return ackData(binary.LittleEndian.AppendUint16(nil, uint16(d.bufferSize)))
	case protocol.CmdChangeBaudRate, protocol.CmdRxDataBlockFast:
		return []byte{byte(protocol.AckOK)}
	default:
		return ackMessage(protocol.StatusSuccess)
	}
}

func ackMessage(status protocol.Status) []byte {
	return ackFrame([]byte{byte(protocol.KindMessage), byte(status)})
}

func ackData(data []byte) []byte {
	return ackFrame(append([]byte{byte(protocol.KindData)}, data...))
}

func ackFrame(payload []byte) []byte {
	out, err := frame.Encode(payload)
	if err != nil {
		panic(err)
	}
	return append([]byte{byte(protocol.AckOK)}, out...)
}

func (d *fakeDevice) ReadAvailable() ([]byte, error) {
	if len(d.pending) == 0 {
		time.Sleep(time.Millisecond)
		return nil, nil
	}
	n := len(d.pending)
	if d.chunk > 0 && n > d.chunk {
		n = d.chunk
	}
	out := d.pending[:n]
	d.pending = d.pending[n:]
	return out, nil
}

func (d *fakeDevice) FlushInput() error {
	d.flushIn++
	return nil
}

func (d *fakeDevice) FlushOutput() error {
	d.flushOut++
	return nil
}

func (d *fakeDevice) SetLineParams(params serial.LineParams) error {
	d.params = append(d.params, params)
	return nil
}

func (d *fakeDevice) SetControlLines(reset, test bool) error {
	d.lines = append(d.lines, lineState{reset: reset, test: test})
	return nil
}

func (d *fakeDevice) Close() error {
	d.closed = true
	return nil
}

func (d *fakeDevice) commandNames() []protocol.CommandName {
	names := make([]protocol.CommandName, 0, len(d.commands))
	for _, c := range d.commands {
		names = append(names, c.name)
	}
	return names
}

// sleepRecorder collects the delays of control line sequences.
type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(d time.Duration) {
	s.delays = append(s.delays, d)
}
