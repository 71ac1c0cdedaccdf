package bitcell

// CRCIBM3740Initial is the seed used for the CRC-16/IBM-3740 polynomial as
// specified by the IBM System 34 track format: poly 0x1021, init 0xFFFF,
// no final XOR, computed MSB-first over each input byte.
const CRCIBM3740Initial uint16 = 0xFFFF

// crc16Table is precomputed for polynomial 0x1021 (CRC-CCITT), MSB first.
var crc16Table [256]uint16

func init() {
	const poly = 0x1021
	for i := 0; i < 256; i++ {
		crc := uint16(i) << 8
		for b := 0; b < 8; b++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		crc16Table[i] = crc
	}
}

// CRC16CCITTByte folds a single byte into a running CRC-16/CCITT value.
func CRC16CCITTByte(crc uint16, b byte) uint16 {
	return (crc << 8) ^ crc16Table[byte(crc>>8)^b]
}

// CRC16CCITT folds a byte slice into a running CRC-16/CCITT value.
func CRC16CCITT(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc = CRC16CCITTByte(crc, b)
	}
	return crc
}

// CRCIBM3740 computes the CRC-IBM-3740 checksum of data: polynomial
// 0x1021, initial value 0xFFFF, no final XOR.
func CRCIBM3740(data []byte) uint16 {
	return CRC16CCITT(CRCIBM3740Initial, data)
}

// reverseByteTable maps a byte to its bit-reversed value, so ReverseByte
// and ReverseBytes can flip between MSB-first and LSB-first bit order
// without a per-call loop. No other package of this module calls them.
var reverseByteTable [256]byte

func init() {
	for i := 0; i < 256; i++ {
		var r byte
		v := byte(i)
		for b := 0; b < 8; b++ {
			r <<= 1
			r |= v & 1
			v >>= 1
		}
		reverseByteTable[i] = r
	}
}

// ReverseByte reverses the bit order of a single byte.
func ReverseByte(b byte) byte {
	return reverseByteTable[b]
}

// ReverseBytes reverses the bit order of every byte in data, in place,
// and returns data for convenience.
func ReverseBytes(data []byte) []byte {
	for i := range data {
		data[i] = reverseByteTable[data[i]]
	}
	return data
}
