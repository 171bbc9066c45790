package frame

import (
	"bytes"
	"errors"
	"testing"
)

func pattern(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*7 + 3)
	}
	return data
}

func TestBuild_Golden(t *testing.T) {
	tests := []struct {
		name     string
		payload  []byte
		expected []byte
	}{
		{"tx_bsl_version", []byte{0x19}, []byte{0x80, 0x01, 0x00, 0x19, 0xE8, 0x62}},
		{"mass_erase", []byte{0x15}, []byte{0x80, 0x01, 0x00, 0x15, 0x64, 0xA3}},
		{"tx_buffer_size", []byte{0x1A}, []byte{0x80, 0x01, 0x00, 0x1A, 0x8B, 0x52}},
		{"empty", nil, []byte{0x80, 0x00, 0x00, 0xFF, 0xFF}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Encode(tc.payload)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if !bytes.Equal(got, tc.expected) {
				t.Errorf("Encode(% X) = % X, want % X", tc.payload, got, tc.expected)
			}
		})
	}
}

func TestBuild_TooLarge(t *testing.T) {
	_, err := Build(make([]byte, MaxPayloadSize+1))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("Build(65536 bytes) error = %v, want ErrPayloadTooLarge", err)
	}
}

func TestBuild_CopiesPayload(t *testing.T) {
	payload := []byte{0x01, 0x02}
	f, err := Build(payload)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	payload[0] = 0xFF
	if f.Payload[0] != 0x01 {
		t.Errorf("Frame payload changed with caller slice")
	}
}

func TestParser_RoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 255, 256, 4096, MaxPayloadSize} {
		payload := pattern(n)
		wire, err := Encode(payload)
		if err != nil {
			t.Fatalf("Encode(%d bytes) error = %v", n, err)
		}

		p := NewParser()
		if rest := p.Push(wire); rest != nil {
			t.Errorf("len %d: Push() left % X", n, rest)
		}
		if !p.Complete() {
			t.Fatalf("len %d: parser not complete, state %s", n, p.State())
		}
		if err := p.Validate(); err != nil {
			t.Fatalf("len %d: Validate() error = %v", n, err)
		}
		if got := p.Frame().Payload; !bytes.Equal(got, payload) {
			t.Errorf("len %d: payload mismatch", n)
		}
	}
}

func TestParser_FragmentationInvariance(t *testing.T) {
	payload := pattern(300)
	wire, err := Encode(payload)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	whole := NewParser()
	whole.Push(wire)
	want := whole.Frame()

	for _, chunk := range []int{1, 2, 3, 5, 64, 299, len(wire)} {
		p := NewParser()
		for i := 0; i < len(wire); i += chunk {
			end := i + chunk
			if end > len(wire) {
				end = len(wire)
			}
			if p.Complete() {
				t.Fatalf("chunk %d: complete before all bytes were pushed", chunk)
			}
			p.Push(wire[i:end])
		}

		got := p.Frame()
		if got == nil {
			t.Fatalf("chunk %d: parser not complete, state %s", chunk, p.State())
		}
		if got.Header != want.Header || got.Length != want.Length || got.CRC != want.CRC ||
			!bytes.Equal(got.Payload, want.Payload) {
			t.Errorf("chunk %d: frame = %+v, want %+v", chunk, got, want)
		}
		if err := p.Validate(); err != nil {
			t.Errorf("chunk %d: Validate() error = %v", chunk, err)
		}
	}
}

func TestParser_Remaining(t *testing.T) {
	p := NewParser()
	steps := []struct {
		push      []byte
		state     State
		remaining int
	}{
		{nil, StateHeader, 1},
		{[]byte{0x80}, StateLength, 2},
		{[]byte{0x03}, StateLength, 1},
		{[]byte{0x00}, StatePayload, 3},
		{[]byte{0x3A, 0x01}, StatePayload, 1},
		{[]byte{0x02}, StateCRC, 2},
	}

	for i, s := range steps {
		p.Push(s.push)
		if p.State() != s.state {
			t.Errorf("step %d: State() = %s, want %s", i, p.State(), s.state)
		}
		if p.Remaining() != s.remaining {
			t.Errorf("step %d: Remaining() = %d, want %d", i, p.Remaining(), s.remaining)
		}
	}
}

func TestParser_LeftoverBytes(t *testing.T) {
	wire, _ := Encode([]byte{0x3B, 0x00})
	extra := []byte{0x80, 0x01}

	p := NewParser()
	rest := p.Push(append(append([]byte(nil), wire...), extra...))
	if !p.Complete() {
		t.Fatalf("parser not complete")
	}
	if !bytes.Equal(rest, extra) {
		t.Errorf("Push() rest = % X, want % X", rest, extra)
	}

	if rest := p.Push([]byte{0x55}); !bytes.Equal(rest, []byte{0x55}) {
		t.Errorf("Push() on complete parser = % X, want 55", rest)
	}
}

func TestParser_Incomplete(t *testing.T) {
	p := NewParser()
	p.Push([]byte{0x80, 0x05, 0x00, 0x01})

	if p.Frame() != nil {
		t.Errorf("Frame() on incomplete parser should be nil")
	}
	err := p.Validate()
	if !errors.Is(err, ErrIncomplete) {
		t.Errorf("Validate() error = %v, want ErrIncomplete", err)
	}
}

func TestParser_HeaderMismatch(t *testing.T) {
	wire, _ := Encode([]byte{0x3B, 0x00})
	wire[0] = 0x81

	p := NewParser()
	p.Push(wire)
	err := p.Validate()
	if !errors.Is(err, ErrHeaderMismatch) {
		t.Errorf("Validate() error = %v, want ErrHeaderMismatch", err)
	}

	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Errorf("error type = %T, want *ProtocolError", err)
	}
}

func TestParser_CRCMismatch(t *testing.T) {
	wire, _ := Encode([]byte{0x3A, 0x10, 0x20})
	wire[len(wire)-1] ^= 0xFF

	p := NewParser()
	p.Push(wire)
	if err := p.Validate(); !errors.Is(err, ErrCRCMismatch) {
		t.Errorf("Validate() error = %v, want ErrCRCMismatch", err)
	}
}

func TestFrame_LengthMismatch(t *testing.T) {
	f, _ := Build([]byte{0x01, 0x02, 0x03})
	f.Length = 2

	if err := f.Validate(); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("Validate() error = %v, want ErrLengthMismatch", err)
	}
}

func TestParser_Reset(t *testing.T) {
	p := NewParser()
	p.Push([]byte{0x80, 0x02})
	p.Reset()

	if p.State() != StateHeader || p.Remaining() != 1 {
		t.Errorf("after Reset() state = %s remaining = %d, want header 1", p.State(), p.Remaining())
	}

	wire, _ := Encode([]byte{0x3B, 0x00})
	p.Push(wire)
	if err := p.Validate(); err != nil {
		t.Errorf("Validate() after Reset() error = %v", err)
	}
}
