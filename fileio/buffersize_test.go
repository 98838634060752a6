package fileio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferSizeTiers(t *testing.T) {
	cases := []struct {
		fileSize int64
		expected int
	}{
		{0, 1 * KiB},
		{1, 1 * KiB},
		{1 * KiB, 1 * KiB},
		{1*KiB + 1, 2 * KiB},
		{4 * KiB, 2 * KiB},
		{4*KiB + 1, 4 * KiB},
		{16 * KiB, 4 * KiB},
		{16*KiB + 1, 8 * KiB},
		{64 * KiB, 8 * KiB},
		{64*KiB + 1, 16 * KiB},
		{512 * KiB, 16 * KiB},
		{512*KiB + 1, 32 * KiB},
		{10 * MiB, 32 * KiB},
		{10*MiB + 1, 64 * KiB},
		{3 << 30, 64 * KiB},
	}
	for _, c := range cases {
		require.Equal(t, c.expected, BufferSizeFor(c.fileSize), "file size %d", c.fileSize)
	}
}

// The mapping is a total order: buffer sizes never shrink as files grow.
func TestBufferSizeMonotonic(t *testing.T) {
	previous := 0
	for size := int64(0); size <= 11*MiB; size += 777 {
		current := BufferSizeFor(size)
		require.GreaterOrEqual(t, current, previous)
		previous = current
	}
}
