// Package storage holds the narrow bookkeeping interface the transfer core
// writes through. The core only records; it never queries or renders.
package storage

import "sync"

// FileRecord is one completed (or attempted) transfer.
type FileRecord struct {
	ClientID [16]byte
	Filename string
	Size     int64
	Crc      uint32
	Verified bool
}

// RecordStore is implemented by whatever persistence backs the server.
type RecordStore interface {
	RecordClient(clientID [16]byte, name string) error
	RecordFile(clientID [16]byte, filename string, size int64, crc uint32, verified bool) error
}

// MemoryStore is the in-process RecordStore used by default and in tests.
type MemoryStore struct {
	mu      sync.Mutex
	clients map[[16]byte]string
	files   []FileRecord
}

// NewMemoryStore returns an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{clients: make(map[[16]byte]string)}
}

// RecordClient registers or refreshes a client name
func (m *MemoryStore) RecordClient(clientID [16]byte, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[clientID] = name
	return nil
}

// RecordFile appends a transfer record
func (m *MemoryStore) RecordFile(clientID [16]byte, filename string, size int64, crc uint32, verified bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = append(m.files, FileRecord{
		ClientID: clientID,
		Filename: filename,
		Size:     size,
		Crc:      crc,
		Verified: verified,
	})
	return nil
}

// ClientName returns the recorded name for a client id
func (m *MemoryStore) ClientName(clientID [16]byte) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.clients[clientID]
	return name, ok
}

// Files returns a copy of all transfer records
func (m *MemoryStore) Files() []FileRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]FileRecord, len(m.files))
	copy(out, m.files)
	return out
}
