package flasher

import (
	"context"
	"encoding/binary"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/bigbag/msp430-flasher/internal/protocol"
)

// Unlock sends the BSL password. A nil password selects the one of an
// erased device, 32 bytes of 0xFF.
func (c *Connection) Unlock(password []byte) error {
	if password == nil {
		password = protocol.DefaultPassword()
	}
	if len(password) != protocol.PasswordSize {
		return errors.Errorf("password must be %d bytes, got %d", protocol.PasswordSize, len(password))
	}

	glog.Infof("Unlocking BSL password protected commands")
	_, err := c.SendCommand(protocol.CmdRxPassword, protocol.WithData(password))
	return err
}

// MassErase erases all main flash.
func (c *Connection) MassErase() error {
	glog.Infof("Mass erasing flash")
	_, err := c.SendCommand(protocol.CmdMassErase)
	return err
}

// EraseSegment erases the flash segment holding addr.
func (c *Connection) EraseSegment(addr uint32) error {
	_, err := c.SendCommand(protocol.CmdEraseSegment, protocol.WithAddress(addr))
	return err
}

// ToggleInfoLock toggles the lock on info segment A.
func (c *Connection) ToggleInfoLock() error {
	_, err := c.SendCommand(protocol.CmdLockUnlockInfo)
	return err
}

// LoadPC starts execution at addr and waits for the message response.
// Application code that never returns to the BSL sends only the ACK, so a
// TimeoutError wrapping ErrResponseTimeout is expected in that case.
func (c *Connection) LoadPC(addr uint32) error {
	_, err := c.SendCommand(protocol.CmdLoadPC, protocol.WithAddress(addr))
	return err
}

// BSLVersion returns the four version bytes: vendor, interpreter, API and
// peripheral interface.
func (c *Connection) BSLVersion() ([]byte, error) {
	resp, err := c.SendCommand(protocol.CmdTxBSLVersion)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// BufferSize returns the BSL receive buffer size.
func (c *Connection) BufferSize() (int, error) {
	resp, err := c.SendCommand(protocol.CmdTxBufferSize)
	if err != nil {
		return 0, err
	}
	return int(resp.Uint16()), nil
}

// CRCCheck returns the CRC16 the BSL computes over length bytes at addr.
func (c *Connection) CRCCheck(addr uint32, length int) (uint16, error) {
	var data [2]byte
	binary.LittleEndian.PutUint16(data[:], uint16(length))

	resp, err := c.SendCommand(protocol.CmdCRCCheck, protocol.WithAddress(addr), protocol.WithData(data[:]))
	if err != nil {
		return 0, err
	}
	return resp.Uint16(), nil
}

// bufferSize returns the configured override or asks the BSL.
func (c *Connection) bufferSize() (int, error) {
	if c.cfg.bufferSize > 0 {
		return c.cfg.bufferSize, nil
	}
	n, err := c.BufferSize()
	if err != nil {
		return 0, errors.Wrap(err, "query buffer size")
	}
	glog.V(1).Infof("BSL buffer size %d bytes", n)
	return n, nil
}

// ReadMemory reads the inclusive range [start, end] with tx_data_block,
// in chunks that fit the BSL buffer. ctx is checked between chunks.
func (c *Connection) ReadMemory(ctx context.Context, start, end uint32) ([]byte, error) {
	if end < start {
		return nil, errors.Errorf("end address 0x%X before start 0x%X", end, start)
	}
	if end > protocol.MaxAddress {
		return nil, errors.Errorf("end address 0x%X out of range", end)
	}

	size, err := c.bufferSize()
	if err != nil {
		return nil, err
	}
	// the response carries a kind byte before the data
	chunk := size - 1
	if chunk < 1 {
		return nil, errors.Errorf("buffer size %d too small", size)
	}

	total := int(end-start) + 1
	out := make([]byte, 0, total)
	glog.Infof("Reading %d bytes from 0x%06X", total, start)

	for addr := start; len(out) < total; {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		n := total - len(out)
		if n > chunk {
			n = chunk
		}
		var length [2]byte
		binary.LittleEndian.PutUint16(length[:], uint16(n))

		resp, err := c.SendCommand(protocol.CmdTxDataBlock, protocol.WithAddress(addr), protocol.WithData(length[:]))
		if err != nil {
			return out, errors.Wrapf(err, "read 0x%06X", addr)
		}
		if len(resp.Data) != n {
			return out, errors.Errorf("read 0x%06X: got %d bytes, want %d", addr, len(resp.Data), n)
		}

		out = append(out, resp.Data...)
		addr += uint32(n)
		c.reportProgress(len(out), total)
	}

	return out, nil
}
