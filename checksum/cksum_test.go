package checksum

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Reference values produced by the cksum(1) utility.
func TestKnownVectors(t *testing.T) {
	require.Equal(t, uint32(0xB75D6A42), Sum([]byte("test")))
	require.Equal(t, uint32(0x377A6011), Sum([]byte("123456789")))
}

// Empty input runs the length postfix over zero bytes, leaving only the
// final complement.
func TestEmptyInput(t *testing.T) {
	require.Equal(t, uint32(0xFFFFFFFF), Sum(nil))
	require.Equal(t, uint32(0xFFFFFFFF), Sum([]byte{}))
}

func TestDeterminism(t *testing.T) {
	data := make([]byte, 70000)
	for i := range data {
		data[i] = byte(i * 31)
	}
	require.Equal(t, Sum(data), Sum(data))
}

// The cksum variant must not degenerate into the zlib CRC-32.
func TestDistinctFromIEEE(t *testing.T) {
	// zlib crc32("123456789") is the well-known 0xCBF43926.
	require.NotEqual(t, uint32(0xCBF43926), Sum([]byte("123456789")))
}

func TestDigestMatchesSum(t *testing.T) {
	data := []byte("some longer message that gets streamed in pieces")
	digest := new(Digest)
	for i := 0; i < len(data); i += 7 {
		end := i + 7
		if end > len(data) {
			end = len(data)
		}
		n, err := digest.Write(data[i:end])
		require.NoError(t, err)
		require.Equal(t, end-i, n)
	}
	require.Equal(t, Sum(data), digest.Sum32())

	digest.Reset()
	require.Equal(t, Sum(nil), digest.Sum32())
}
