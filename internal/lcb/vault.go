package lcb

import (
	"errors"
	"io"
)

// Names of the metadata items the app keeps in a vault.
const (
	MetadataJournal = "journal"
	MetadataMapping = "mapping"
)

// ErrMetadataNotFound is returned by GetMetadata for an item that was never stored.
var ErrMetadataNotFound = errors.New("metadata not found")

// Vault stores the tool's own metadata (journal snapshots and the mapping
// table) off the machine. Chat media never goes to a vault.
// Items are keyed by host and name; each put carries a version so a host
// can tell whether its local copy is behind.
type Vault interface {
	// PutMetadata stores a named metadata item for a host.
	// size is the number of bytes that will be read from r.
	PutMetadata(hostID string, name string, r io.Reader, size int64, version int64) error

	// GetMetadata writes the named metadata item of a host to w.
	GetMetadata(hostID string, name string, w io.Writer) error

	// GetMetadataVersion returns the stored version of an item, or 0 if it was never stored.
	GetMetadataVersion(hostID string, name string) (int64, error)

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup() error
}
