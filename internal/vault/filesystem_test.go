package vault

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lcb-go/internal/lcb"
)

func TestNewFileSystemVault(t *testing.T) {
	root := filepath.Join(t.TempDir(), "vault")

	v, err := NewFileSystemVault("test", root)
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "metadata")); err != nil {
		t.Errorf("metadata directory not created: %v", err)
	}
	if v.name != "test" {
		t.Errorf("name = %q, want %q", v.name, "test")
	}
}

func TestFileSystemVault_Layout(t *testing.T) {
	root := t.TempDir()
	v, err := NewFileSystemVault("test", root)
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	data := "ID,Name,Status\n"
	if err := v.PutMetadata("host-123", lcb.MetadataMapping, strings.NewReader(data), int64(len(data)), 42); err != nil {
		t.Fatalf("PutMetadata() error = %v", err)
	}

	hostDir := filepath.Join(root, "metadata", "host-123")
	content, err := os.ReadFile(filepath.Join(hostDir, "mapping"))
	if err != nil {
		t.Fatalf("reading item: %v", err)
	}
	if string(content) != data {
		t.Errorf("item = %q, want %q", content, data)
	}
	version, err := os.ReadFile(filepath.Join(hostDir, "mapping.version"))
	if err != nil {
		t.Fatalf("reading version: %v", err)
	}
	if string(version) != "42" {
		t.Errorf("version file = %q, want 42", version)
	}

	entries, _ := os.ReadDir(hostDir)
	if len(entries) != 2 {
		t.Errorf("host dir has %d entries, want 2 (no temp files)", len(entries))
	}
}

func TestFileSystemVault_ValidateSetup_MissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "vault")
	v, err := NewFileSystemVault("test", root)
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}
	if err := os.RemoveAll(root); err != nil {
		t.Fatal(err)
	}

	if err := v.ValidateSetup(); err == nil {
		t.Error("ValidateSetup() expected error for removed root")
	}
}
