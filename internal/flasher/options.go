package flasher

import (
	"time"

	"github.com/bigbag/msp430-flasher/internal/protocol"
)

// Defaults
const (
	DefaultAckTimeout       = time.Second
	DefaultResponseTimeout  = time.Second
	DefaultMaxWriteAttempts = 3
)

// ProgressCallback is called to report progress in bytes.
type ProgressCallback func(current, total int)

type config struct {
	ackTimeout       time.Duration
	responseTimeout  time.Duration
	maxWriteAttempts int
	verify           bool
	bufferSize       int
	progress         ProgressCallback
	sleep            func(time.Duration)
}

func defaultConfig() config {
	return config{
		ackTimeout:       DefaultAckTimeout,
		responseTimeout:  DefaultResponseTimeout,
		maxWriteAttempts: DefaultMaxWriteAttempts,
		verify:           true,
		sleep:            time.Sleep,
	}
}

// Option configures a Connection.
type Option func(*config)

// WithAckTimeout sets how long to wait for the ACK byte.
func WithAckTimeout(d time.Duration) Option {
	return func(c *config) {
		c.ackTimeout = d
	}
}

// WithResponseTimeout sets how long to wait for a complete response frame.
func WithResponseTimeout(d time.Duration) Option {
	return func(c *config) {
		c.responseTimeout = d
	}
}

// WithMaxWriteAttempts sets how many times a packet is written before the
// upload gives up on a CRC mismatch.
func WithMaxWriteAttempts(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxWriteAttempts = n
		}
	}
}

// WithVerify enables the crc_check after every written packet.
func WithVerify(verify bool) Option {
	return func(c *config) {
		c.verify = verify
	}
}

// WithBufferSize overrides the receive buffer size reported by the BSL.
func WithBufferSize(n int) Option {
	return func(c *config) {
		c.bufferSize = n
	}
}

// WithProgressCallback sets the progress callback.
func WithProgressCallback(cb ProgressCallback) Option {
	return func(c *config) {
		c.progress = cb
	}
}

// WithSleep replaces the delay function used by control line sequences.
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *config) {
		c.sleep = sleep
	}
}

// minBufferSize fits a command with address and one data byte.
const minBufferSize = 1 + protocol.AddressSize + 1
