package hexfile

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Image errors
var (
	ErrMalformedRecord   = errors.New("malformed record")
	ErrRecordCRCMismatch = errors.New("record checksum mismatch")
)

// RecordError reports a bad record with its source line.
type RecordError struct {
	Line int
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// ParseError collects every bad record of an image.
type ParseError struct {
	Records []*RecordError
}

func (e *ParseError) Error() string {
	msgs := make([]string, 0, len(e.Records))
	for _, r := range e.Records {
		msgs = append(msgs, r.Error())
	}
	return fmt.Sprintf("%d bad records: %s", len(e.Records), strings.Join(msgs, "; "))
}

func (e *ParseError) Unwrap() []error {
	errs := make([]error, 0, len(e.Records))
	for _, r := range e.Records {
		errs = append(errs, r)
	}
	return errs
}
