package flasher

import (
	"time"

	"github.com/pkg/errors"
)

// Step is one control line state held for Delay. Reset and Test are the
// logical levels of the RST and TEST pins.
type Step struct {
	Reset bool
	Test  bool
	Delay time.Duration
}

// Level names used in the tables below.
const (
	low  = false
	high = true
)

// Entry sequence from SLAU319 figure 1-1. TEST pulses twice while RST is
// held low, then RST rises with TEST high to start the BSL.
var entrySequence = []Step{
	{Reset: low, Test: low, Delay: 5 * time.Millisecond},
	{Reset: low, Test: high, Delay: time.Millisecond},
	{Reset: low, Test: low, Delay: time.Millisecond},
	{Reset: low, Test: high, Delay: time.Millisecond},
	{Reset: low, Test: low, Delay: time.Millisecond},
	{Reset: low, Test: high, Delay: time.Millisecond},
	{Reset: high, Test: high, Delay: time.Millisecond},
	// give the target time to start the BSL
	{Reset: high, Test: low, Delay: 50 * time.Millisecond},
}

// Reset sequence: RST pulse with TEST low, the target boots its application.
var resetSequence = []Step{
	{Reset: low, Test: low, Delay: 5 * time.Millisecond},
	{Reset: high, Test: low, Delay: 5 * time.Millisecond},
}

// EntrySequence returns a copy of the BSL entry sequence.
func EntrySequence() []Step {
	return append([]Step(nil), entrySequence...)
}

// ResetSequence returns a copy of the application reset sequence.
func ResetSequence() []Step {
	return append([]Step(nil), resetSequence...)
}

// runSequence drives the control lines through steps in order.
func (c *Connection) runSequence(steps []Step) error {
	for i, s := range steps {
		if err := c.transport.SetControlLines(s.Reset, s.Test); err != nil {
			return errors.Wrapf(err, "control lines step %d", i+1)
		}
		c.cfg.sleep(s.Delay)
	}
	return nil
}
