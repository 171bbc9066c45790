package crc

// CRC16Init is the accumulator seed for CRC16. It is also the checksum of an
// empty input.
const CRC16Init = 0xFFFF

// CRC16 computes the BSL frame checksum over data.
//
// The BSL expects this exact byte-wise shift/xor sequence (seed 0xFFFF, no
// final xor). It must not be swapped for a generic table implementation.
func CRC16(data []byte) uint16 {
	crc := uint16(CRC16Init)
	for _, b := range data {
		crc = update16(crc, b)
	}
	return crc
}

// Update16 folds data into a running CRC16 accumulator.
func Update16(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc = update16(crc, b)
	}
	return crc
}

func update16(crc uint16, b byte) uint16 {
	x := byte(crc>>8) ^ b
	x ^= x >> 4
	return (crc << 8) ^ (uint16(x) << 12) ^ (uint16(x) << 5) ^ uint16(x)
}

// CRC8 computes the image record checksum: the two's complement of the byte
// sum of data.
func CRC8(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return -sum
}
