package flasher

import (
	"context"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/bigbag/msp430-flasher/internal/crc"
	"github.com/bigbag/msp430-flasher/internal/hexfile"
	"github.com/bigbag/msp430-flasher/internal/protocol"
)

// packetOverhead is the rx_data_block opcode and address.
const packetOverhead = 1 + protocol.AddressSize

// Packet is one rx_data_block write.
type Packet struct {
	Address uint32
	Data    []byte
}

// PackRecords greedily packs contiguous records into packets whose command
// payload stays within bufferSize. Records are never split; a record that
// does not fit on its own still gets a packet of its own.
func PackRecords(group []*hexfile.Record, bufferSize int) []Packet {
	var packets []Packet
	var current Packet
	size := 0

	for i := 0; i < len(group); {
		rec := group[i]

		if size == 0 {
			if packetOverhead+len(rec.Data) > bufferSize {
				glog.Warningf("Record at 0x%06X (%d bytes) exceeds buffer size %d", rec.AbsAddress(), len(rec.Data), bufferSize)
			}
			current = Packet{Address: rec.AbsAddress(), Data: append([]byte(nil), rec.Data...)}
			size = packetOverhead + len(rec.Data)
			i++
			continue
		}

		if size+len(rec.Data) <= bufferSize {
			current.Data = append(current.Data, rec.Data...)
			size += len(rec.Data)
			i++
			continue
		}

		// full: flush and retry the same record in a fresh packet
		packets = append(packets, current)
		current = Packet{}
		size = 0
	}

	if size > 0 {
		packets = append(packets, current)
	}
	return packets
}

// UploadStats summarizes an upload.
type UploadStats struct {
	Packets int
	Bytes   int
	Retries int
}

// Upload writes every data record of img, packing contiguous records up to
// the BSL buffer size. With verify on, each packet is followed by a
// crc_check and rewritten on mismatch up to the configured attempt count.
// ctx is only checked between packets.
func (c *Connection) Upload(ctx context.Context, img *hexfile.Image) (*UploadStats, error) {
	bufferSize, err := c.bufferSize()
	if err != nil {
		return nil, err
	}
	if bufferSize < minBufferSize {
		return nil, errors.Errorf("buffer size %d too small", bufferSize)
	}

	stats := &UploadStats{}
	total := img.DataSize()
	groups := img.Groups()
	glog.Infof("Writing %d bytes in %d contiguous groups, buffer size %d", total, len(groups), bufferSize)

	for _, group := range groups {
		for _, p := range PackRecords(group, bufferSize) {
			if err := ctx.Err(); err != nil {
				return stats, err
			}

			retries, err := c.writePacket(p)
			stats.Retries += retries
			if err != nil {
				return stats, err
			}

			stats.Packets++
			stats.Bytes += len(p.Data)
			c.reportProgress(stats.Bytes, total)
		}
	}

	glog.Infof("Upload done: %d packets, %d bytes, %d retries", stats.Packets, stats.Bytes, stats.Retries)
	return stats, nil
}

// writePacket writes p and verifies it, returning the number of rewrites.
func (c *Connection) writePacket(p Packet) (int, error) {
	if p.Address > protocol.MaxAddress {
		return 0, errors.Wrapf(protocol.ErrAddressRange, "packet at 0x%X", p.Address)
	}

	want := crc.CRC16(p.Data)
	var got uint16

	for attempt := 1; ; attempt++ {
		_, err := c.SendCommand(protocol.CmdRxDataBlock, protocol.WithAddress(p.Address), protocol.WithData(p.Data))
		if err != nil {
			return attempt - 1, errors.Wrapf(err, "write 0x%06X", p.Address)
		}
		if !c.cfg.verify {
			return attempt - 1, nil
		}

		got, err = c.CRCCheck(p.Address, len(p.Data))
		if err != nil {
			return attempt - 1, errors.Wrapf(err, "verify 0x%06X", p.Address)
		}
		if got == want {
			return attempt - 1, nil
		}

		glog.Errorf("CRC mismatch at 0x%06X: local 0x%04X, device 0x%04X (attempt %d of %d)",
			p.Address, want, got, attempt, c.cfg.maxWriteAttempts)
		if attempt >= c.cfg.maxWriteAttempts {
			return attempt - 1, &WriteVerifyError{
				Address:  p.Address,
				Length:   len(p.Data),
				Attempts: attempt,
				Expected: want,
				Actual:   got,
			}
		}
	}
}
