package reassembly

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TomShtern/client-server-encrypted-backup-framework-clean-sub002/networking"
)

func testPackets(t *testing.T, filename string, chunkSize, total int) ([]*networking.FilePacket, []byte) {
	t.Helper()
	field, err := networking.PadName(filename)
	require.NoError(t, err)

	blob := make([]byte, 0, chunkSize*total)
	packets := make([]*networking.FilePacket, 0, total)
	for i := 0; i < total; i++ {
		chunk := make([]byte, chunkSize)
		for j := range chunk {
			chunk[j] = byte(i*7 + j)
		}
		blob = append(blob, chunk...)
		packets = append(packets, &networking.FilePacket{
			FilePacketHeader: networking.FilePacketHeader{
				EncryptedChunkSize: uint32(chunkSize),
				OriginalTotalSize:  uint32(chunkSize * total),
				PacketIndex:        uint16(i),
				TotalPackets:       uint16(total),
				Filename:           field,
			},
			Chunk: chunk,
		})
	}
	return packets, blob
}

func clientID(b byte) [networking.ClientIDSize]byte {
	var id [networking.ClientIDSize]byte
	id[0] = b
	return id
}

func TestSinglePacketTransfer(t *testing.T) {
	table := NewTable()
	packets, blob := testPackets(t, "one.bin", 512, 1)

	assembled, done, err := table.Add(clientID(1), 0, packets[0])
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, blob, assembled)
	require.Zero(t, table.Len())
}

// Any arrival order yields the same assembled blob: reassembly follows
// packet index, never insertion order.
func TestOrderIndependence(t *testing.T) {
	packets, blob := testPackets(t, "shuffled.bin", 256, 9)

	for seed := int64(0); seed < 6; seed++ {
		table := NewTable()
		order := rand.New(rand.NewSource(seed)).Perm(len(packets))

		var assembled []byte
		for i, idx := range order {
			out, done, err := table.Add(clientID(2), 0, packets[idx])
			require.NoError(t, err)
			require.Equal(t, i == len(order)-1, done, "seed %d", seed)
			if done {
				assembled = out
			}
		}
		require.Equal(t, blob, assembled, "seed %d", seed)
	}
}

// Re-sending a packet with identical bytes before completion changes
// nothing: the chunk overwrites its own slot.
func TestDuplicatePacketIsIdempotent(t *testing.T) {
	table := NewTable()
	packets, blob := testPackets(t, "dup.bin", 128, 3)

	_, done, err := table.Add(clientID(3), 0, packets[1])
	require.NoError(t, err)
	require.False(t, done)

	_, done, err = table.Add(clientID(3), 0, packets[1])
	require.NoError(t, err)
	require.False(t, done)

	_, done, err = table.Add(clientID(3), 0, packets[0])
	require.NoError(t, err)
	require.False(t, done)

	assembled, done, err := table.Add(clientID(3), 0, packets[2])
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, blob, assembled)
}

func TestChunkSizeMismatchRejected(t *testing.T) {
	table := NewTable()
	packets, _ := testPackets(t, "bad.bin", 128, 2)
	packets[0].EncryptedChunkSize = 999

	_, _, err := table.Add(clientID(4), 0, packets[0])
	require.ErrorIs(t, err, networking.ErrPacketSizeMismatch)
}

// A packet disagreeing with the totals the transfer was opened with kills
// that transfer only.
func TestConflictingTotalsRejected(t *testing.T) {
	table := NewTable()
	packets, _ := testPackets(t, "conflict.bin", 128, 3)
	others, _ := testPackets(t, "healthy.bin", 64, 2)

	_, _, err := table.Add(clientID(5), 0, packets[0])
	require.NoError(t, err)
	_, _, err = table.Add(clientID(5), 0, others[0])
	require.NoError(t, err)

	conflicting := *packets[1]
	conflicting.TotalPackets = 7
	_, _, err = table.Add(clientID(5), 0, &conflicting)
	require.ErrorIs(t, err, networking.ErrPacketSizeMismatch)

	// The unrelated transfer is unaffected and still completes.
	assembled, done, err := table.Add(clientID(5), 0, others[1])
	require.NoError(t, err)
	require.True(t, done)
	require.Len(t, assembled, 128)
}

func TestInvalidPacketMetadata(t *testing.T) {
	table := NewTable()
	packets, _ := testPackets(t, "meta.bin", 128, 2)

	zero := *packets[0]
	zero.TotalPackets = 0
	_, _, err := table.Add(clientID(6), 0, &zero)
	require.ErrorIs(t, err, networking.ErrFraming)

	outside := *packets[0]
	outside.PacketIndex = 2
	_, _, err = table.Add(clientID(6), 0, &outside)
	require.ErrorIs(t, err, networking.ErrFraming)
}

// Same filename from different clients never collides.
func TestKeysAreClientScoped(t *testing.T) {
	table := NewTable()
	packets, blob := testPackets(t, "shared-name.bin", 64, 2)

	_, done, err := table.Add(clientID(7), 0, packets[0])
	require.NoError(t, err)
	require.False(t, done)

	// The second client starts its own entry under the same filename.
	_, done, err = table.Add(clientID(8), 0, packets[0])
	require.NoError(t, err)
	require.False(t, done)
	require.Equal(t, 2, table.Len())

	assembled, done, err := table.Add(clientID(7), 0, packets[1])
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, blob, assembled)
	require.Equal(t, 1, table.Len())
}

// With session keying enabled, concurrent same-named transfers from one
// client stop colliding.
func TestSessionKeying(t *testing.T) {
	table := NewTable(WithSessionKeying())
	packets, _ := testPackets(t, "same.bin", 64, 2)

	_, _, err := table.Add(clientID(9), 100, packets[0])
	require.NoError(t, err)
	_, _, err = table.Add(clientID(9), 200, packets[0])
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())
}

func TestAbort(t *testing.T) {
	table := NewTable()
	packets, _ := testPackets(t, "gone.bin", 64, 2)

	_, _, err := table.Add(clientID(10), 0, packets[0])
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())

	table.Abort(clientID(10), 0, "gone.bin")
	require.Zero(t, table.Len())
}

func TestReapDropsIdleEntries(t *testing.T) {
	table := NewTable()
	stale, _ := testPackets(t, "stale.bin", 64, 2)
	fresh, _ := testPackets(t, "fresh.bin", 64, 2)

	_, _, err := table.Add(clientID(11), 0, stale[0])
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	_, _, err = table.Add(clientID(12), 0, fresh[0])
	require.NoError(t, err)

	require.Equal(t, 1, table.Reap(20*time.Millisecond))
	require.Equal(t, 1, table.Len())

	// The fresh transfer still completes after the sweep.
	_, done, err := table.Add(clientID(12), 0, fresh[1])
	require.NoError(t, err)
	require.True(t, done)
}

func TestEntryLimit(t *testing.T) {
	table := NewTable(WithMaxEntries(2))
	packets, _ := testPackets(t, "limited.bin", 64, 2)

	_, _, err := table.Add(clientID(13), 0, packets[0])
	require.NoError(t, err)
	_, _, err = table.Add(clientID(14), 0, packets[0])
	require.NoError(t, err)

	_, _, err = table.Add(clientID(15), 0, packets[0])
	require.ErrorIs(t, err, networking.ErrResourceLimit)
}
