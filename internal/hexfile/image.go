package hexfile

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// RecordDataSize is the data length of records written by AppendData.
const RecordDataSize = 0x10

// CRCPolicy decides what happens to a record whose checksum does not match.
type CRCPolicy int

const (
	// CRCAbort reports the record as an error.
	CRCAbort CRCPolicy = iota
	// CRCWarn logs a warning and keeps the record.
	CRCWarn
)

func (p CRCPolicy) String() string {
	if p == CRCWarn {
		return "warn"
	}
	return "abort"
}

// ParseCRCPolicy resolves "abort" or "warn".
func ParseCRCPolicy(s string) (CRCPolicy, error) {
	switch s {
	case "abort":
		return CRCAbort, nil
	case "warn":
		return CRCWarn, nil
	}
	return CRCAbort, errors.Errorf("unknown crc policy %q, want abort or warn", s)
}

type config struct {
	crcPolicy CRCPolicy
	collect   bool
}

// Option configures Parse.
type Option func(*config)

// WithCRCPolicy sets the record checksum policy. Default is CRCAbort.
func WithCRCPolicy(p CRCPolicy) Option {
	return func(c *config) {
		c.crcPolicy = p
	}
}

// WithCollectErrors makes Parse keep going past bad records and report them
// all in a *ParseError. Default is to stop at the first one.
func WithCollectErrors(collect bool) Option {
	return func(c *config) {
		c.collect = collect
	}
}

// Image is an ordered list of records.
type Image struct {
	records []*Record
	base    uint32

	groups  [][]*Record
	grouped bool
}

// New returns an empty image.
func New() *Image {
	return &Image{}
}

// ParseFile loads an image from path.
func ParseFile(path string, opts ...Option) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open image %s", path)
	}
	defer f.Close()

	img, err := Parse(f, opts...)
	if err != nil {
		return img, errors.Wrapf(err, "parse image %s", path)
	}
	return img, nil
}

// Parse reads records line by line until EOF or an end-of-file record.
// With collect enabled the image of good records is returned along with a
// *ParseError listing the bad ones.
func Parse(r io.Reader, opts ...Option) (*Image, error) {
	cfg := config{crcPolicy: CRCAbort}
	for _, opt := range opts {
		opt(&cfg)
	}

	img := New()
	var bad []*RecordError

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		rec, err := ParseRecord(text)
		if err == nil && !rec.ChecksumOK() {
			if cfg.crcPolicy == CRCWarn {
				glog.Warningf("image line %d: checksum 0x%02X does not match, keeping record", line, rec.Checksum)
			} else {
				err = errors.Wrapf(ErrRecordCRCMismatch, "checksum 0x%02X", rec.Checksum)
			}
		}
		if err != nil {
			recErr := &RecordError{Line: line, Err: err}
			if !cfg.collect {
				return nil, recErr
			}
			bad = append(bad, recErr)
			continue
		}

		rec.Line = line
		img.Append(rec)
		if rec.Type == TypeEOF {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read image")
	}

	if len(bad) > 0 {
		return img, &ParseError{Records: bad}
	}
	return img, nil
}

// Records returns the records in insertion order.
func (img *Image) Records() []*Record {
	return img.records
}

// Append adds a record. Extended address records move the base applied to
// the data records that follow.
func (img *Image) Append(rec *Record) {
	if base, ok := rec.extendedBase(); ok {
		img.base = base
	}
	if rec.Type == TypeData {
		rec.Base = img.base
	}
	img.records = append(img.records, rec)
	img.groups, img.grouped = nil, false
}

// AppendData adds data starting at start as 16-byte data records. An
// extended linear address record is emitted whenever the data enters a new
// 64 KiB page.
func (img *Image) AppendData(start uint32, data []byte) {
	addr := start
	for len(data) > 0 {
		if page := addr &^ 0xFFFF; page != img.base {
			img.Append(NewRecord(TypeExtLinearAddress, 0, []byte{byte(addr >> 24), byte(addr >> 16)}))
		}

		n := RecordDataSize
		if n > len(data) {
			n = len(data)
		}
		// records never cross a page
		if left := 0x10000 - int(addr&0xFFFF); n > left {
			n = left
		}

		img.Append(NewDataRecord(uint16(addr), data[:n]))
		addr += uint32(n)
		data = data[n:]
	}
}

// DataSize returns the number of data bytes in the image.
func (img *Image) DataSize() int {
	n := 0
	for _, rec := range img.records {
		if rec.Type == TypeData {
			n += len(rec.Data)
		}
	}
	return n
}

// Bytes returns n bytes of image data from start. Addresses no data record
// covers read as fill.
func (img *Image) Bytes(start uint32, n int, fill byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = fill
	}
	end := start + uint32(n)
	for _, rec := range img.records {
		if rec.Type != TypeData || rec.EndAddress() <= start || rec.AbsAddress() >= end {
			continue
		}
		for i, b := range rec.Data {
			if addr := rec.AbsAddress() + uint32(i); addr >= start && addr < end {
				out[addr-start] = b
			}
		}
	}
	return out
}

// Groups returns the data records split into maximal runs where each record
// starts at the end address of the one before. Non-data records are skipped
// and only neighbours in insertion order are compared. The result is cached.
func (img *Image) Groups() [][]*Record {
	if img.grouped {
		return img.groups
	}

	var groups [][]*Record
	var current []*Record
	var prev *Record
	for _, rec := range img.records {
		if rec.Type != TypeData {
			continue
		}
		if prev == nil || !rec.ContiguousWith(prev) {
			if len(current) > 0 {
				groups = append(groups, current)
			}
			current = nil
		}
		current = append(current, rec)
		prev = rec
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}

	img.groups, img.grouped = groups, true
	return groups
}

// WriteTo writes one record per line.
func (img *Image) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var total int64
	for _, rec := range img.records {
		n, err := bw.WriteString(rec.String() + "\n")
		total += int64(n)
		if err != nil {
			return total, errors.Wrap(err, "write image")
		}
	}
	if err := bw.Flush(); err != nil {
		return total, errors.Wrap(err, "write image")
	}
	return total, nil
}
