package fs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"lcb-go/internal/lcb"
)

// OSFilesystemManager is the real filesystem implementation of FilesystemManager.
// Names matching its ignore patterns are invisible to ReadDir.
type OSFilesystemManager struct {
	mu      sync.RWMutex
	ignores *IgnoreMatcher
	raw     []string
}

// NewOSFilesystemManager creates a filesystem manager that operates on the
// real filesystem. ignorePatterns are added to the default patterns.
func NewOSFilesystemManager(ignorePatterns []string) *OSFilesystemManager {
	raw := append(append([]string{}, defaultIgnorePatterns...), ignorePatterns...)
	return &OSFilesystemManager{ignores: NewIgnoreMatcher(raw), raw: raw}
}

// AddIgnorePatterns extends the ignore patterns, e.g. with the contents of
// an ignore file found in a chats directory.
func (m *OSFilesystemManager) AddIgnorePatterns(patterns []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw = append(m.raw, patterns...)
	m.ignores = NewIgnoreMatcher(m.raw)
}

// Resolve validates a raw path and returns a Path object.
func (m *OSFilesystemManager) Resolve(rawPath string) (*lcb.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	mode := info.Mode()
	if mode&os.ModeDevice != 0 {
		return nil, fmt.Errorf("device files not supported: %s", absPath)
	}
	if mode&os.ModeNamedPipe != 0 {
		return nil, fmt.Errorf("named pipes not supported: %s", absPath)
	}
	if mode&os.ModeSocket != 0 {
		return nil, fmt.Errorf("sockets not supported: %s", absPath)
	}

	return lcb.NewPath(absPath, info.IsDir(), info), nil
}

// ReadDir lists the regular files and directories directly inside dir.
// Symlinks and special files are skipped.
func (m *OSFilesystemManager) ReadDir(dir string) ([]lcb.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	m.mu.RLock()
	ignores := m.ignores
	m.mu.RUnlock()

	out := make([]lcb.DirEntry, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && !entry.Type().IsRegular() {
			continue
		}
		full := filepath.Join(dir, entry.Name())
		if ignores.Match(full) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		out = append(out, lcb.DirEntry{
			Name:    entry.Name(),
			IsDir:   entry.IsDir(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return out, nil
}

func (m *OSFilesystemManager) Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// ReadHead returns up to n leading bytes of a file. Shorter files return
// their whole content.
func (m *OSFilesystemManager) ReadHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	return buf[:read], nil
}

func (m *OSFilesystemManager) MkdirAll(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// Rename moves oldPath to newPath, failing with fs.ErrExist when newPath exists.
func (m *OSFilesystemManager) Rename(oldPath, newPath string) error {
	return renameNoReplace(oldPath, newPath)
}

// CopyFile copies src to a new file dst and gives it src's modification time.
// A partially written dst is removed.
func (m *OSFilesystemManager) CopyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", src)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(dst)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if err = out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", dst, err)
	}
	if err = os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("setting times on %s: %w", dst, err)
	}
	return nil
}

// renameChecked refuses an existing target, then renames.
func renameChecked(oldPath, newPath string) error {
	if _, err := os.Lstat(newPath); err == nil {
		return &fs.PathError{Op: "rename", Path: newPath, Err: fs.ErrExist}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.Rename(oldPath, newPath)
}

// Compile-time check that OSFilesystemManager implements lcb.FilesystemManager interface
var _ lcb.FilesystemManager = (*OSFilesystemManager)(nil)
