package protocol

import "sort"

// Serial link rates
const (
	HandshakeBaudRate = 9600
	DefaultBaudRate   = 115200
)

// Main flash range of the F5xx/F6xx parts
const (
	MainFlashStart = 0x8000
	MainFlashEnd   = 0xFFFF
)

// DefaultBufferSize is the BSL core command buffer of the F5xx/F6xx UART BSL.
const DefaultBufferSize = 260

// The rx_password data is the interrupt vector table.
const (
	PasswordAddress = 0xFFE0
	PasswordSize    = 32
)

// change_baud_rate data byte per rate
var baudRateCodes = map[int]byte{
	9600:   0x02,
	19200:  0x03,
	38400:  0x04,
	57600:  0x05,
	115200: 0x06,
}

// DefaultPassword returns the password of an erased device: 32 bytes of 0xFF.
func DefaultPassword() []byte {
	password := make([]byte, PasswordSize)
	for i := range password {
		password[i] = 0xFF
	}
	return password
}

// BaudRates returns the supported rates in ascending order.
func BaudRates() []int {
	rates := make([]int, 0, len(baudRateCodes))
	for rate := range baudRateCodes {
		rates = append(rates, rate)
	}
	sort.Ints(rates)
	return rates
}

// BaudRateCode returns the change_baud_rate data byte for baud.
func BaudRateCode(baud int) (byte, error) {
	code, ok := baudRateCodes[baud]
	if !ok {
		return 0, &BaudError{Baud: baud}
	}
	return code, nil
}
