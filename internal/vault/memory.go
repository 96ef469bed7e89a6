package vault

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"lcb-go/internal/lcb"
)

// MemoryVault keeps metadata items in memory. It is meant for tests and is
// safe for concurrent use.
type MemoryVault struct {
	name     string
	mu       sync.RWMutex
	items    map[string][]byte // "hostID/name" -> item
	versions map[string]int64  // "hostID/name" -> version
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:     name,
		items:    make(map[string][]byte),
		versions: make(map[string]int64),
	}
}

func itemKey(hostID, name string) string {
	return hostID + "/" + name
}

// PutMetadata stores a named metadata item for a specific host.
func (m *MemoryVault) PutMetadata(hostID string, name string, r io.Reader, size int64, version int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := itemKey(hostID, name)
	m.items[key] = data
	m.versions[key] = version
	return nil
}

// GetMetadataVersion returns 0 if the item was never stored.
func (m *MemoryVault) GetMetadataVersion(hostID string, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.versions[itemKey(hostID, name)], nil
}

// GetMetadata retrieves a named metadata item for a specific host.
func (m *MemoryVault) GetMetadata(hostID string, name string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.items[itemKey(hostID, name)]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s for host %s", lcb.ErrMetadataNotFound, name, hostID)
	}
	if _, err := w.Write(bytes.Clone(data)); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup() error {
	return nil
}

var _ lcb.Vault = (*MemoryVault)(nil)
