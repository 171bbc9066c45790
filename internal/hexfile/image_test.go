package hexfile

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/bigbag/msp430-flasher/internal/crc"
)

const (
	line8000 = ":10800000000102030405060708090A0B0C0D0E0FF8"
	line8010 = ":10801000101112131415161718191A1B1C1D1E1FE8"
	line9000 = ":10900000202122232425262728292A2B2C2D2E2FE8"
	lineEOF  = ":00000001FF"
)

func parseString(t *testing.T, s string, opts ...Option) *Image {
	t.Helper()
	img, err := Parse(strings.NewReader(s), opts...)
	require.NoError(t, err)
	return img
}

func TestParseRecord(t *testing.T) {
	rec, err := ParseRecord("  " + line8010 + "\r\n")
	require.NoError(t, err)

	require.Equal(t, byte(0x10), rec.ByteCount)
	require.Equal(t, uint16(0x8010), rec.Address)
	require.Equal(t, TypeData, rec.Type)
	require.Len(t, rec.Data, 16)
	require.Equal(t, byte(0x10), rec.Data[0])
	require.Equal(t, byte(0xE8), rec.Checksum)
	require.True(t, rec.ChecksumOK())
	require.Equal(t, uint32(0x8020), rec.EndAddress())
	require.Equal(t, line8010, rec.String())
}

func TestParseRecord_Malformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"no marker", "10800000000102030405060708090A0B0C0D0E0FF8"},
		{"odd hex length", ":1080000000010"},
		{"not hex", ":ZZ800000"},
		{"too short", ":00000001"},
		{"count larger than data", ":10800000000102FF"},
		{"count smaller than data", ":01800000000102FF"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseRecord(tc.line)
			require.ErrorIs(t, err, ErrMalformedRecord)
		})
	}
}

func TestRecord_CRC8RoundTrip(t *testing.T) {
	for _, line := range []string{line8000, line8010, line9000, lineEOF, ":020000040001F9", ":020000021000EC"} {
		rec, err := ParseRecord(line)
		require.NoError(t, err)

		raw := rec.Bytes()
		require.Equal(t, rec.Checksum, crc.CRC8(raw[:len(raw)-1]), line)
	}
}

func TestNewRecord(t *testing.T) {
	data := make([]byte, 16)
	for i := range data {
		data[i] = byte(i)
	}

	rec := NewDataRecord(0x8000, data)
	require.Equal(t, line8000, rec.String())
	require.True(t, rec.ChecksumOK())
	require.Zero(t, rec.Line)

	data[0] = 0xFF
	require.Equal(t, byte(0x00), rec.Data[0], "record must own its data")

	require.Equal(t, lineEOF, EOFRecord().String())
}

func TestParse_Grouping(t *testing.T) {
	img := parseString(t, strings.Join([]string{line8000, line8010, line9000, lineEOF}, "\n"))

	groups := img.Groups()
	require.Len(t, groups, 2)
	require.Len(t, groups[0], 2)
	require.Equal(t, uint32(0x8000), groups[0][0].AbsAddress())
	require.Equal(t, uint32(0x8010), groups[0][1].AbsAddress())
	require.Len(t, groups[1], 1)
	require.Equal(t, uint32(0x9000), groups[1][0].AbsAddress())
}

func TestGroups_EndAddressEquality(t *testing.T) {
	img := New()
	img.Append(NewDataRecord(0x8000, make([]byte, 16)))
	// starts inside the previous record
	img.Append(NewDataRecord(0x8008, make([]byte, 16)))
	// lower address after a higher one is never merged
	img.Append(NewDataRecord(0x7FF0, make([]byte, 16)))
	img.Append(NewDataRecord(0x8000, make([]byte, 16)))

	groups := img.Groups()
	require.Len(t, groups, 3)
	require.Len(t, groups[0], 1)
	require.Len(t, groups[1], 1)
	require.Len(t, groups[2], 2)
}

func TestGroups_SkipsNonData(t *testing.T) {
	img := parseString(t, strings.Join([]string{
		line8000,
		":020000040000FA",
		line8010,
		lineEOF,
	}, "\n"))

	groups := img.Groups()
	require.Len(t, groups, 1)
	require.Len(t, groups[0], 2)
}

func TestGroups_Cached(t *testing.T) {
	img := parseString(t, line8000+"\n"+line8010+"\n")

	first := img.Groups()
	second := img.Groups()
	require.True(t, &first[0] == &second[0], "Groups() should return the cached slice")

	img.Append(NewDataRecord(0x9000, []byte{0x01}))
	require.Len(t, img.Groups(), 2)
}

func TestGroups_Empty(t *testing.T) {
	img := parseString(t, lineEOF+"\n")
	require.Empty(t, img.Groups())
}

func TestParse_ExtendedAddress(t *testing.T) {
	img := parseString(t, strings.Join([]string{
		":020000040001F9",
		":02000000AABB99",
		":020000021000EC",
		":02000000AABB99",
		lineEOF,
	}, "\n"))

	recs := img.Records()
	require.Len(t, recs, 5)
	require.Equal(t, uint32(0x10000), recs[1].AbsAddress())
	require.Equal(t, uint32(0x10000), recs[3].AbsAddress())
}

func TestParse_BlankLinesAndLineNumbers(t *testing.T) {
	img := parseString(t, "\n"+line8000+"\n\n   \n"+line8010+"\n")

	recs := img.Records()
	require.Len(t, recs, 2)
	require.Equal(t, 2, recs[0].Line)
	require.Equal(t, 5, recs[1].Line)
}

func TestParse_StopsAtEOFRecord(t *testing.T) {
	img := parseString(t, line8000+"\n"+lineEOF+"\n"+line9000+"\n")
	require.Len(t, img.Records(), 2)
	require.Equal(t, 16, img.DataSize())
}

func TestParse_CRCPolicy(t *testing.T) {
	badCRC := ":10801000101112131415161718191A1B1C1D1E1F00"
	input := line8000 + "\n" + badCRC + "\n" + line9000 + "\n"

	t.Run("abort", func(t *testing.T) {
		_, err := Parse(strings.NewReader(input))
		require.ErrorIs(t, err, ErrRecordCRCMismatch)

		var recErr *RecordError
		require.True(t, errors.As(err, &recErr))
		require.Equal(t, 2, recErr.Line)
	})

	t.Run("warn", func(t *testing.T) {
		img := parseString(t, input, WithCRCPolicy(CRCWarn))
		require.Len(t, img.Records(), 3)
		require.False(t, img.Records()[1].ChecksumOK())
		require.Len(t, img.Groups(), 2)
	})
}

func TestParse_CollectErrors(t *testing.T) {
	input := strings.Join([]string{
		line8000,
		":1080100010111213",
		line8010,
		":10900000202122232425262728292A2B2C2D2E2F00",
		lineEOF,
	}, "\n")

	t.Run("fail fast", func(t *testing.T) {
		img, err := Parse(strings.NewReader(input))
		require.Nil(t, img)
		require.ErrorIs(t, err, ErrMalformedRecord)
		require.NotErrorIs(t, err, ErrRecordCRCMismatch)
	})

	t.Run("collect", func(t *testing.T) {
		img, err := Parse(strings.NewReader(input), WithCollectErrors(true))
		require.NotNil(t, img)
		require.Len(t, img.Records(), 3)

		var parseErr *ParseError
		require.True(t, errors.As(err, &parseErr))
		require.Len(t, parseErr.Records, 2)
		require.Equal(t, 2, parseErr.Records[0].Line)
		require.Equal(t, 4, parseErr.Records[1].Line)
		require.ErrorIs(t, err, ErrMalformedRecord)
		require.ErrorIs(t, err, ErrRecordCRCMismatch)
	})
}

func TestParseCRCPolicy(t *testing.T) {
	p, err := ParseCRCPolicy("warn")
	require.NoError(t, err)
	require.Equal(t, CRCWarn, p)

	p, err = ParseCRCPolicy("abort")
	require.NoError(t, err)
	require.Equal(t, CRCAbort, p)

	_, err = ParseCRCPolicy("ignore")
	require.Error(t, err)
}

func TestAppendData(t *testing.T) {
	data := make([]byte, 40)
	for i := range data {
		data[i] = byte(i)
	}

	img := New()
	img.AppendData(0x8000, data)

	recs := img.Records()
	require.Len(t, recs, 3)
	require.Equal(t, line8000, recs[0].String())
	require.Equal(t, line8010, recs[1].String())
	require.Equal(t, uint16(0x8020), recs[2].Address)
	require.Len(t, recs[2].Data, 8)
	require.Len(t, img.Groups(), 1)
	require.Equal(t, 40, img.DataSize())
}

func TestAppendData_CrossesPage(t *testing.T) {
	img := New()
	img.AppendData(0xFFFE, []byte{0x01, 0x02, 0x03, 0x04})

	var lines []string
	for _, rec := range img.Records() {
		lines = append(lines, rec.String())
	}
	require.Equal(t, []string{":02FFFE000102FE", ":020000040001F9", ":020000000304F7"}, lines)

	groups := img.Groups()
	require.Len(t, groups, 1)
	require.Equal(t, uint32(0x10000), groups[0][1].AbsAddress())
}

func TestWriteTo_RoundTrip(t *testing.T) {
	img := New()
	img.AppendData(0x8000, bytes.Repeat([]byte{0x3C}, 20))
	img.Append(EOFRecord())

	var buf bytes.Buffer
	n, err := img.WriteTo(&buf)
	require.NoError(t, err)
	require.Equal(t, int64(buf.Len()), n)
	require.True(t, strings.HasSuffix(buf.String(), lineEOF+"\n"))

	parsed := parseString(t, buf.String())
	require.Len(t, parsed.Records(), 3)
	for i, rec := range parsed.Records() {
		require.Equal(t, img.Records()[i].String(), rec.String())
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fw.hex")
	require.NoError(t, os.WriteFile(path, []byte(line8000+"\n"+lineEOF+"\n"), 0o644))

	img, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, img.Records(), 2)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.hex"))
	require.Error(t, err)
	require.True(t, os.IsNotExist(errors.Cause(err)))
}

func TestBytes(t *testing.T) {
	img := parseString(t, line8000+"\n"+line8010+"\n")

	require.Equal(t, []byte{0x0E, 0x0F, 0x10, 0x11}, img.Bytes(0x800E, 4, 0xFF))
	require.Equal(t, []byte{0x1F, 0xFF, 0xFF}, img.Bytes(0x801F, 3, 0xFF))
	require.Equal(t, bytes.Repeat([]byte{0xFF}, 32), img.Bytes(0xFFE0, 32, 0xFF))
}
