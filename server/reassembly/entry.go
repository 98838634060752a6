package reassembly

import "time"

// entry accumulates the packets of one in-flight file transfer
type entry struct {
	totalPackets uint16
	originalSize uint32
	chunks       map[uint16][]byte
	lastSeen     time.Time
}

// complete reports whether every distinct packet index has arrived
func (e *entry) complete() bool {
	return len(e.chunks) == int(e.totalPackets)
}

// assemble concatenates chunks in packet index order, never arrival order
func (e *entry) assemble() []byte {
	size := 0
	for _, chunk := range e.chunks {
		size += len(chunk)
	}
	blob := make([]byte, 0, size)
	for i := uint16(0); i < e.totalPackets; i++ {
		blob = append(blob, e.chunks[i]...)
	}
	return blob
}
