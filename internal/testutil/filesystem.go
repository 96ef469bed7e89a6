package testutil

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"lcb-go/internal/lcb"
)

// MockFile represents a file or directory in the mock filesystem.
type MockFile struct {
	Content     []byte
	Permissions fs.FileMode
	ModTime     time.Time
	IsDirectory bool
}

// MockFilesystemManager is an in-memory filesystem for testing.
// Paths are absolute; adding an entry creates its missing parents.
type MockFilesystemManager struct {
	mu      sync.RWMutex
	files   map[string]*MockFile
	modTime time.Time
	// ReadErrors makes ReadHead fail for the listed paths.
	ReadErrors map[string]error
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files:      map[string]*MockFile{"/": {Permissions: 0755, IsDirectory: true}},
		modTime:    time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		ReadErrors: make(map[string]error),
	}
}

// AddFile adds a file to the mock filesystem.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	m.AddFileWithModTime(path, content, m.modTime)
}

// AddFileWithModTime adds a file with a specific modification time.
func (m *MockFilesystemManager) AddFileWithModTime(path string, content []byte, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	m.addParents(path)
	m.files[path] = &MockFile{
		Content:     append([]byte(nil), content...),
		Permissions: 0644,
		ModTime:     modTime,
	}
}

// AddDirectory adds a directory to the mock filesystem.
func (m *MockFilesystemManager) AddDirectory(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	m.addParents(path)
	m.files[path] = &MockFile{Permissions: 0755, ModTime: m.modTime, IsDirectory: true}
}

// File returns the entry at path, or nil.
func (m *MockFilesystemManager) File(path string) *MockFile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.files[filepath.Clean(path)]
}

// List returns every path under root (excluding root), sorted.
func (m *MockFilesystemManager) List(root string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	root = filepath.Clean(root)
	var out []string
	for p := range m.files {
		if isUnder(p, root) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func (m *MockFilesystemManager) addParents(path string) {
	for dir := filepath.Dir(path); ; dir = filepath.Dir(dir) {
		if _, ok := m.files[dir]; !ok {
			m.files[dir] = &MockFile{Permissions: 0755, ModTime: m.modTime, IsDirectory: true}
		}
		if dir == filepath.Dir(dir) {
			return
		}
	}
}

func isUnder(path, root string) bool {
	if root == "/" {
		return path != "/"
	}
	return strings.HasPrefix(path, root+"/")
}

func (m *MockFilesystemManager) Resolve(rawPath string) (*lcb.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	file, ok := m.files[absPath]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("file not found: %s", absPath)
	}

	info := &mockFileInfo{
		name:    filepath.Base(absPath),
		size:    int64(len(file.Content)),
		mode:    file.Permissions,
		modTime: file.ModTime,
		isDir:   file.IsDirectory,
	}
	return lcb.NewPath(absPath, file.IsDirectory, info), nil
}

func (m *MockFilesystemManager) ReadDir(dir string) ([]lcb.DirEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	dir = filepath.Clean(dir)
	d, ok := m.files[dir]
	if !ok {
		return nil, &fs.PathError{Op: "readdir", Path: dir, Err: fs.ErrNotExist}
	}
	if !d.IsDirectory {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	var entries []lcb.DirEntry
	for p, f := range m.files {
		if p == dir || filepath.Dir(p) != dir {
			continue
		}
		entries = append(entries, lcb.DirEntry{
			Name:    filepath.Base(p),
			IsDir:   f.IsDirectory,
			Size:    int64(len(f.Content)),
			ModTime: f.ModTime,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (m *MockFilesystemManager) Exists(path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[filepath.Clean(path)]
	return ok, nil
}

func (m *MockFilesystemManager) ReadHead(path string, n int) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	path = filepath.Clean(path)
	if err, ok := m.ReadErrors[path]; ok {
		return nil, err
	}
	f, ok := m.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	if f.IsDirectory {
		return nil, fmt.Errorf("cannot read directory: %s", path)
	}
	if len(f.Content) < n {
		n = len(f.Content)
	}
	return append([]byte(nil), f.Content[:n]...), nil
}

func (m *MockFilesystemManager) MkdirAll(dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	dir = filepath.Clean(dir)
	for p := dir; ; p = filepath.Dir(p) {
		if f, ok := m.files[p]; ok && !f.IsDirectory {
			return fmt.Errorf("not a directory: %s", p)
		}
		if p == filepath.Dir(p) {
			break
		}
	}
	m.addParents(dir)
	if _, ok := m.files[dir]; !ok {
		m.files[dir] = &MockFile{Permissions: 0755, ModTime: m.modTime, IsDirectory: true}
	}
	return nil
}

func (m *MockFilesystemManager) Rename(oldPath, newPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	oldPath, newPath = filepath.Clean(oldPath), filepath.Clean(newPath)
	src, ok := m.files[oldPath]
	if !ok {
		return &fs.PathError{Op: "rename", Path: oldPath, Err: fs.ErrNotExist}
	}
	if err := m.checkTarget("rename", newPath); err != nil {
		return err
	}

	if src.IsDirectory {
		for p, f := range m.files {
			if isUnder(p, oldPath) {
				delete(m.files, p)
				m.files[newPath+strings.TrimPrefix(p, oldPath)] = f
			}
		}
	}
	delete(m.files, oldPath)
	m.files[newPath] = src
	return nil
}

func (m *MockFilesystemManager) CopyFile(src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, dst = filepath.Clean(src), filepath.Clean(dst)
	f, ok := m.files[src]
	if !ok {
		return &fs.PathError{Op: "open", Path: src, Err: fs.ErrNotExist}
	}
	if f.IsDirectory {
		return fmt.Errorf("cannot copy directory: %s", src)
	}
	if err := m.checkTarget("copy", dst); err != nil {
		return err
	}
	m.files[dst] = &MockFile{
		Content:     append([]byte(nil), f.Content...),
		Permissions: f.Permissions,
		ModTime:     f.ModTime,
	}
	return nil
}

// checkTarget requires path to be absent and its parent to be a directory.
func (m *MockFilesystemManager) checkTarget(op, path string) error {
	if _, ok := m.files[path]; ok {
		return &fs.PathError{Op: op, Path: path, Err: fs.ErrExist}
	}
	parent, ok := m.files[filepath.Dir(path)]
	if !ok || !parent.IsDirectory {
		return &fs.PathError{Op: op, Path: filepath.Dir(path), Err: fs.ErrNotExist}
	}
	return nil
}

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return nil }

// Compile-time check
var _ lcb.FilesystemManager = (*MockFilesystemManager)(nil)
