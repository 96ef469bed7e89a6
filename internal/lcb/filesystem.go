package lcb

import "time"

// DirEntry is a single entry returned by FilesystemManager.ReadDir.
type DirEntry struct {
	Name    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// FilesystemManager provides the point operations the service needs.
// It abstracts file access to enable testing without touching the real filesystem.
// None of the mutating operations may replace an existing entry: when the
// target already exists they fail with an error wrapping fs.ErrExist.
type FilesystemManager interface {
	// Resolve validates a raw path and returns a Path object.
	// It resolves the path to an absolute path, stats it, and validates
	// it's a regular file or directory (not a symlink, device, etc.).
	Resolve(rawPath string) (*Path, error)

	// ReadDir lists the direct children of dir, sorted by name.
	// Ignored names are omitted.
	ReadDir(dir string) ([]DirEntry, error)

	// Exists reports whether anything exists at path.
	Exists(path string) (bool, error)

	// ReadHead returns up to n leading bytes of the file at path.
	ReadHead(path string, n int) ([]byte, error)

	// MkdirAll creates dir and any missing parents. Existing directories are fine.
	MkdirAll(dir string) error

	// Rename moves oldPath to newPath.
	Rename(oldPath, newPath string) error

	// CopyFile copies src to dst, preserving the modification time.
	CopyFile(src, dst string) error
}
