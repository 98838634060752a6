// Package checksum implements the CRC-32 variant of the POSIX cksum
// utility. This is NOT the zlib/IEEE CRC-32 from hash/crc32: cksum uses the
// unreflected 0x04C11DB7 polynomial, a zero initial value, appends the data
// length to the message and complements the result. The two variants are
// easy to confuse and produce entirely different values, so integrity checks
// on both sides of the wire must use this package.
package checksum

// Unreflected CRC-32 table for polynomial 0x04C11DB7.
var table = makeTable()

func makeTable() [256]uint32 {
	var t [256]uint32
	for i := range t {
		crc := uint32(i) << 24
		for bit := 0; bit < 8; bit++ {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ 0x04C11DB7
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return t
}

func update(crc uint32, data []byte) uint32 {
	for _, b := range data {
		crc = crc<<8 ^ table[byte(crc>>24)^b]
	}
	return crc
}

// finalize folds in the message length (low byte first, until exhausted)
// and complements, per the cksum definition. Empty input therefore yields
// 0xFFFFFFFF.
func finalize(crc uint32, length uint64) uint32 {
	for length > 0 {
		crc = crc<<8 ^ table[byte(crc>>24)^byte(length)]
		length >>= 8
	}
	return ^crc
}

// Sum returns the cksum-compatible CRC-32 of data
func Sum(data []byte) uint32 {
	return finalize(update(0, data), uint64(len(data)))
}

// Digest computes the checksum incrementally for streamed data
type Digest struct {
	crc uint32
	len uint64
}

// Write folds more data into the digest
func (d *Digest) Write(data []byte) (int, error) {
	d.crc = update(d.crc, data)
	d.len += uint64(len(data))
	return len(data), nil
}

// Sum32 returns the checksum of everything written so far. The digest stays
// usable for further writes.
func (d *Digest) Sum32() uint32 {
	return finalize(d.crc, d.len)
}

// Reset returns the digest to its initial state
func (d *Digest) Reset() {
	d.crc = 0
	d.len = 0
}
