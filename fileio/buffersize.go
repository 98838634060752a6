package fileio

// Buffer size tiers in bytes.
const (
	KiB = 1024
	MiB = 1024 * KiB
)

// BufferSizeFor maps a file's total size to its transfer buffer size. The
// result is computed once per transfer and held fixed for the transfer's
// whole lifetime; recomputing per packet would let the tier drift mid-file.
func BufferSizeFor(fileSize int64) int {
	switch {
	case fileSize <= 1*KiB:
		return 1 * KiB
	case fileSize <= 4*KiB:
		return 2 * KiB
	case fileSize <= 16*KiB:
		return 4 * KiB
	case fileSize <= 64*KiB:
		return 8 * KiB
	case fileSize <= 512*KiB:
		return 16 * KiB
	case fileSize <= 10*MiB:
		return 32 * KiB
	default:
		return 64 * KiB
	}
}
