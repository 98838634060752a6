// Package reassembly accumulates encrypted file packets arriving in any
// order into complete blobs, one entry per in-flight transfer.
package reassembly

import (
	"fmt"
	"sync"
	"time"

	"github.com/TomShtern/client-server-encrypted-backup-framework-clean-sub002/constants"
	"github.com/TomShtern/client-server-encrypted-backup-framework-clean-sub002/networking"
)

// transferKey identifies one in-flight transfer. The protocol keys on
// (client id, filename) only; two concurrent transfers of the same filename
// from the same client collide on one entry. WithSessionKeying mixes the
// session tag into the key to disambiguate, at the cost of entries from a
// dropped connection never being resumed by a new one.
type transferKey struct {
	clientID [networking.ClientIDSize]byte
	filename string
	session  uint64
}

// Table is the shared reassembly state mutated by all connection workers.
// The lock covers map access only; decrypt and checksum work on assembled
// blobs happens in the caller, outside the lock.
type Table struct {
	mu            sync.Mutex
	entries       map[transferKey]*entry
	maxEntries    int
	sessionKeying bool
}

// Option configures a Table
type Option func(*Table)

// WithSessionKeying includes the per-connection session tag in the transfer
// key, so same-named concurrent transfers from one client no longer collide.
// Off by default to preserve the original protocol's behavior.
func WithSessionKeying() Option {
	return func(t *Table) {
		t.sessionKeying = true
	}
}

// WithMaxEntries overrides the in-flight transfer cap
func WithMaxEntries(limit int) Option {
	return func(t *Table) {
		t.maxEntries = limit
	}
}

// NewTable returns an empty reassembly table
func NewTable(options ...Option) *Table {
	t := &Table{
		entries:    make(map[transferKey]*entry),
		maxEntries: constants.MAX_TABLE_ENTRIES,
	}
	for _, option := range options {
		option(t)
	}
	return t
}

// Add stores one packet. When the packet completes its transfer, the
// assembled encrypted blob is returned with done set and the entry is
// released. A duplicate packet index overwrites the stored chunk; packets
// whose declared sizes disagree with the first packet seen for the key fail
// that transfer without touching others.
func (t *Table) Add(clientID [networking.ClientIDSize]byte, session uint64, packet *networking.FilePacket) ([]byte, bool, error) {
	if packet.TotalPackets == 0 {
		return nil, false, fmt.Errorf("%w: total packet count of zero", networking.ErrFraming)
	}
	if packet.PacketIndex >= packet.TotalPackets {
		return nil, false, fmt.Errorf("%w: packet index %d outside %d declared packets",
			networking.ErrFraming, packet.PacketIndex, packet.TotalPackets)
	}
	if int(packet.EncryptedChunkSize) != len(packet.Chunk) {
		return nil, false, fmt.Errorf("%w: declared %d bytes, packet carries %d",
			networking.ErrPacketSizeMismatch, packet.EncryptedChunkSize, len(packet.Chunk))
	}

	key := transferKey{clientID: clientID, filename: networking.NameString(packet.Filename)}
	if t.sessionKeying {
		key.session = session
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	current, exists := t.entries[key]
	if !exists {
		if len(t.entries) >= t.maxEntries {
			return nil, false, fmt.Errorf("%w: %d transfers already in flight",
				networking.ErrResourceLimit, len(t.entries))
		}
		if int(packet.TotalPackets) > constants.MAX_TOTAL_PACKETS {
			return nil, false, fmt.Errorf("%w: %d packets exceeds transfer cap",
				networking.ErrResourceLimit, packet.TotalPackets)
		}
		current = &entry{
			totalPackets: packet.TotalPackets,
			originalSize: packet.OriginalTotalSize,
			chunks:       make(map[uint16][]byte),
		}
		t.entries[key] = current
	} else if current.totalPackets != packet.TotalPackets || current.originalSize != packet.OriginalTotalSize {
		delete(t.entries, key)
		return nil, false, fmt.Errorf("%w: packet declares %d/%d against transfer opened with %d/%d",
			networking.ErrPacketSizeMismatch, packet.TotalPackets, packet.OriginalTotalSize,
			current.totalPackets, current.originalSize)
	}

	current.chunks[packet.PacketIndex] = packet.Chunk
	current.lastSeen = time.Now()

	if !current.complete() {
		return nil, false, nil
	}
	delete(t.entries, key)
	return current.assemble(), true, nil
}

// Abort drops the entry for one transfer, if present
func (t *Table) Abort(clientID [networking.ClientIDSize]byte, session uint64, filename string) {
	key := transferKey{clientID: clientID, filename: filename}
	if t.sessionKeying {
		key.session = session
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key)
}

// Reap releases entries idle for longer than the given window and returns
// how many were dropped. Keeps abandoned transfers from growing the table
// without bound while still tolerating brief network interruptions.
func (t *Table) Reap(olderThan time.Duration) int {
	deadline := time.Now().Add(-olderThan)
	t.mu.Lock()
	defer t.mu.Unlock()
	reaped := 0
	for key, current := range t.entries {
		if current.lastSeen.Before(deadline) {
			delete(t.entries, key)
			reaped++
		}
	}
	return reaped
}

// Len reports the number of in-flight transfers
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
