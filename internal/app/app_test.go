package app

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lcb-go/internal/config"
	"lcb-go/internal/lcb"
	"lcb-go/internal/vault"
)

const (
	testHost = "host-1"
	roomA    = "c7acf23b06ad3e4c029dc5ef6d6e88444"
	roomB    = "u111f36cae69bfd641933b23eee717b54"
)

var (
	jpegHead = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
	gifHead  = []byte("GIF89a\x01\x00\x01\x00")
)

// newTestConfig returns a config rooted in a temp dir with a sqlite journal,
// a filesystem vault and the test encryptor.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.NewConfig(testHost, base)
	cfg.LogLevel = "error"
	cfg.Encryption.Type = "test"
	cfg.Vaults = []config.VaultConfig{{Type: "filesystem", Name: "local", FSVaultRoot: filepath.Join(base, "vault")}}
	return cfg
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func openApp(t *testing.T, cfg *config.Config, operation string) *LCBApp {
	t.Helper()
	a, err := NewLCBApp(cfg, operation)
	if err != nil {
		t.Fatalf("NewLCBApp() error = %v", err)
	}
	return a
}

func closeApp(t *testing.T, a *LCBApp) {
	t.Helper()
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func openVault(t *testing.T, cfg *config.Config) *vault.FileSystemVault {
	t.Helper()
	v, err := vault.NewFileSystemVault("local", cfg.Vaults[0].FSVaultRoot)
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}
	return v
}

func history(t *testing.T, cfg *config.Config) []*lcb.Operation {
	t.Helper()
	a := openApp(t, cfg, "GetHistory")
	defer closeApp(t, a)
	ops, err := a.GetHistory(10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	return ops
}

func TestLCBApp_ClassifyJournalsAndUploads(t *testing.T) {
	cfg := newTestConfig(t)
	chats := filepath.Join(t.TempDir(), "chats")
	msgDir := filepath.Join(chats, roomA, lcb.MessagesDirName)
	writeFile(t, filepath.Join(msgDir, "8552"), jpegHead)
	writeFile(t, filepath.Join(msgDir, "8552.original"), gifHead)
	writeFile(t, filepath.Join(msgDir, "8552.thumb"), jpegHead)

	a := openApp(t, cfg, "Classify")
	report, err := a.Classify(chats)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if len(report.Rooms) != 1 || report.Rooms[0].Moved != 3 {
		t.Fatalf("report = %+v, want one room with 3 moves", report.Rooms)
	}
	closeApp(t, a)

	for _, rel := range []string{"images/8552.jpg", "original_images/8552.original.gif", "thumbnails/8552.thumb.jpg"} {
		if _, err := os.Stat(filepath.Join(msgDir, rel)); err != nil {
			t.Errorf("%s missing: %v", rel, err)
		}
	}

	ops := history(t, cfg)
	if len(ops) != 1 {
		t.Fatalf("history has %d operations, want 1", len(ops))
	}
	if ops[0].Operation != "Classify" || ops[0].Status != StatusSuccess || ops[0].FinishedAt == nil {
		t.Errorf("operation = %+v, want finished successful Classify", ops[0])
	}

	a = openApp(t, cfg, "GetOperation")
	detail, err := a.GetOperation(ops[0].ID)
	closeApp(t, a)
	if err != nil {
		t.Fatalf("GetOperation() error = %v", err)
	}
	// 3 bucket creations + 3 moves.
	if len(detail.Actions) != 6 {
		t.Errorf("operation has %d actions, want 6", len(detail.Actions))
	}

	v := openVault(t, cfg)
	version, err := v.GetMetadataVersion(testHost, lcb.MetadataJournal)
	if err != nil {
		t.Fatalf("GetMetadataVersion() error = %v", err)
	}
	if version != ops[0].ID {
		t.Errorf("journal version = %d, want %d", version, ops[0].ID)
	}
	var snapshot bytes.Buffer
	if err := v.GetMetadata(testHost, lcb.MetadataJournal, &snapshot); err != nil {
		t.Fatalf("GetMetadata() error = %v", err)
	}
	if !bytes.HasPrefix(snapshot.Bytes(), []byte("LCBENC")) {
		t.Error("journal snapshot was uploaded unencrypted")
	}
}

func TestLCBApp_ExtractAndRestoreMapping(t *testing.T) {
	cfg := newTestConfig(t)
	chats := filepath.Join(t.TempDir(), "chats")
	if err := os.MkdirAll(filepath.Join(chats, "Stella-"+roomA), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(chats, roomB), 0755); err != nil {
		t.Fatal(err)
	}

	a := openApp(t, cfg, "ExtractMapping")
	report, err := a.ExtractMapping(chats, "")
	if err != nil {
		t.Fatalf("ExtractMapping() error = %v", err)
	}
	if len(report.Added) != 2 {
		t.Errorf("added = %v, want 2 rooms", report.Added)
	}
	closeApp(t, a)

	saved, err := os.ReadFile(cfg.Chats.MappingPath)
	if err != nil {
		t.Fatalf("mapping table not written: %v", err)
	}
	if !strings.Contains(string(saved), roomA+",Stella,1") {
		t.Errorf("mapping table = %q, want Stella row", saved)
	}

	v := openVault(t, cfg)
	if version, _ := v.GetMetadataVersion(testHost, lcb.MetadataMapping); version != 1 {
		t.Errorf("mapping version = %d, want 1", version)
	}

	out := filepath.Join(t.TempDir(), "restored.csv")
	a = openApp(t, cfg, OpRestoreMapping)
	n, err := a.RestoreMapping("secret", out)
	closeApp(t, a)
	if err != nil {
		t.Fatalf("RestoreMapping() error = %v", err)
	}
	if n != 2 {
		t.Errorf("restored %d records, want 2", n)
	}
	restored, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("restored table missing: %v", err)
	}
	if !bytes.Equal(restored, saved) {
		t.Errorf("restored table =\n%s\nwant:\n%s", restored, saved)
	}
}

func TestLCBApp_PrefixRooms(t *testing.T) {
	cfg := newTestConfig(t)
	chats := filepath.Join(t.TempDir(), "chats")
	if err := os.MkdirAll(filepath.Join(chats, roomA), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, cfg.Chats.MappingPath, []byte("ID,Name,Status\n"+roomA+",Stella,1\n"))

	a := openApp(t, cfg, "PrefixRooms")
	report, err := a.PrefixRooms(chats, "")
	closeApp(t, a)
	if err != nil {
		t.Fatalf("PrefixRooms() error = %v", err)
	}
	if len(report.Renamed) != 1 || report.Renamed[0].To != "Stella-"+roomA {
		t.Fatalf("renamed = %+v, want Stella-%s", report.Renamed, roomA)
	}
	if _, err := os.Stat(filepath.Join(chats, "Stella-"+roomA)); err != nil {
		t.Errorf("renamed folder missing: %v", err)
	}
}

func TestLCBApp_ReadOnlyCommandsAreNotJournaled(t *testing.T) {
	cfg := newTestConfig(t)
	root := t.TempDir()
	current := filepath.Join(root, "current")
	old := filepath.Join(root, "old")
	for _, dir := range []string{filepath.Join(current, roomA), filepath.Join(current, roomB), filepath.Join(old, roomA)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
	}

	a := openApp(t, cfg, "CompareRooms")
	report, err := a.CompareRooms(current, old)
	if err != nil {
		t.Fatalf("CompareRooms() error = %v", err)
	}
	if len(report.NewRooms) != 1 || report.NewRooms[0].ID != roomB {
		t.Errorf("new rooms = %+v, want %s", report.NewRooms, roomB)
	}
	closeApp(t, a)

	a = openApp(t, cfg, "Sync")
	if _, err := a.Sync(current, old, lcb.SyncOptions{DryRun: true}); err != nil {
		t.Fatalf("Sync() dry run error = %v", err)
	}
	closeApp(t, a)

	if ops := history(t, cfg); len(ops) != 0 {
		t.Errorf("history has %d operations, want 0", len(ops))
	}
	if version, _ := openVault(t, cfg).GetMetadataVersion(testHost, lcb.MetadataJournal); version != 0 {
		t.Errorf("journal version = %d, want 0", version)
	}
}

func TestLCBApp_FailedOperationIsRecorded(t *testing.T) {
	cfg := newTestConfig(t)

	a := openApp(t, cfg, "Classify")
	if _, err := a.Classify(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("Classify() on a missing directory succeeded")
	}
	closeApp(t, a)

	ops := history(t, cfg)
	if len(ops) != 1 || ops[0].Status != StatusError {
		t.Fatalf("history = %+v, want one failed operation", ops)
	}
}

func TestLCBApp_IgnoreFileHidesRooms(t *testing.T) {
	cfg := newTestConfig(t)
	chats := filepath.Join(t.TempDir(), "chats")
	writeFile(t, filepath.Join(chats, roomA, lcb.MessagesDirName, "8552"), jpegHead)
	writeFile(t, filepath.Join(chats, roomB, lcb.MessagesDirName, "9000"), jpegHead)
	writeFile(t, filepath.Join(chats, ".lcbignore"), []byte("# skip the big one\n"+roomB+"\n"))

	a := openApp(t, cfg, "Classify")
	report, err := a.Classify(chats)
	closeApp(t, a)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if len(report.Rooms) != 1 || report.Rooms[0].Room != roomA {
		t.Errorf("classified rooms = %+v, want only %s", report.Rooms, roomA)
	}
	if _, err := os.Stat(filepath.Join(chats, roomB, lcb.MessagesDirName, "9000")); err != nil {
		t.Errorf("ignored room was touched: %v", err)
	}
}

func TestNewLCBApp_JournalBehindVault(t *testing.T) {
	cfg := newTestConfig(t)
	chats := filepath.Join(t.TempDir(), "chats")
	writeFile(t, filepath.Join(chats, roomA, lcb.MessagesDirName, "8552"), jpegHead)

	a := openApp(t, cfg, "Classify")
	if _, err := a.Classify(chats); err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	closeApp(t, a)

	// Same host and vault, empty local journal.
	fresh := *cfg
	fresh.Database.DataDir = filepath.Join(t.TempDir(), "db")
	_, err := NewLCBApp(&fresh, "Classify")
	if err == nil || !strings.Contains(err.Error(), "behind") {
		t.Fatalf("NewLCBApp() error = %v, want journal-behind error", err)
	}
}

func TestNewLCBApp_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{name: "missing host", mutate: func(c *config.Config) { c.HostID = "" }},
		{name: "bad log level", mutate: func(c *config.Config) { c.LogLevel = "loud" }},
		{name: "bad vault", mutate: func(c *config.Config) { c.Vaults[0].Type = "tape" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig(t)
			tt.mutate(cfg)
			if _, err := NewLCBApp(cfg, "Classify"); err == nil {
				t.Error("NewLCBApp() succeeded, want error")
			}
		})
	}
}

func TestLCBApp_WithoutVault(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Vaults = nil
	cfg.Encryption.Type = "none"
	chats := filepath.Join(t.TempDir(), "chats")
	if err := os.MkdirAll(filepath.Join(chats, "Stella-"+roomA), 0755); err != nil {
		t.Fatal(err)
	}

	a := openApp(t, cfg, "ExtractMapping")
	if _, err := a.ExtractMapping(chats, ""); err != nil {
		t.Fatalf("ExtractMapping() error = %v", err)
	}
	if _, err := a.RestoreMapping("", ""); err == nil {
		t.Error("RestoreMapping() without a vault succeeded")
	}
	closeApp(t, a)
}

func TestSetupEncryption(t *testing.T) {
	dir := t.TempDir()
	cfg := config.EncryptionConfig{
		Type:           "age",
		PublicKeyPath:  filepath.Join(dir, "lcb.pub"),
		PrivateKeyPath: filepath.Join(dir, "lcb.key"),
	}

	if err := SetupEncryption(cfg, "secret"); err != nil {
		t.Fatalf("SetupEncryption() error = %v", err)
	}
	for _, p := range []string{cfg.PublicKeyPath, cfg.PrivateKeyPath} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("key file missing: %v", err)
		}
	}
	if err := SetupEncryption(cfg, "secret"); err == nil {
		t.Error("second SetupEncryption() succeeded, want existing-keys error")
	}
	if err := SetupEncryption(config.EncryptionConfig{Type: "none"}, "secret"); err == nil {
		t.Error("SetupEncryption() with encryption disabled succeeded")
	}
}

func TestParams(t *testing.T) {
	got := params("dir", "/chats", "mapping", "", "src", "/phone")
	if want := "dir=/chats src=/phone"; got != want {
		t.Errorf("params() = %q, want %q", got, want)
	}
}

func TestLCBApp_RestoreMappingOnBehindHost(t *testing.T) {
	cfg := newTestConfig(t)
	chats := filepath.Join(t.TempDir(), "chats")
	if err := os.MkdirAll(filepath.Join(chats, "Stella-"+roomA), 0755); err != nil {
		t.Fatal(err)
	}

	a := openApp(t, cfg, "ExtractMapping")
	if _, err := a.ExtractMapping(chats, ""); err != nil {
		t.Fatalf("ExtractMapping() error = %v", err)
	}
	closeApp(t, a)

	// A new machine with the same host ID and an empty journal.
	fresh := *cfg
	fresh.Database.DataDir = filepath.Join(t.TempDir(), "db")
	fresh.Chats.MappingPath = filepath.Join(t.TempDir(), "mapping.csv")

	a = openApp(t, &fresh, OpRestoreMapping)
	n, err := a.RestoreMapping("secret", "")
	closeApp(t, a)
	if err != nil {
		t.Fatalf("RestoreMapping() error = %v", err)
	}
	if n != 1 {
		t.Errorf("restored %d records, want 1", n)
	}
	if _, err := os.Stat(fresh.Chats.MappingPath); err != nil {
		t.Errorf("restored table missing: %v", err)
	}
	if version, _ := openVault(t, cfg).GetMetadataVersion(testHost, lcb.MetadataJournal); version != 1 {
		t.Errorf("journal version = %d after restore, want 1", version)
	}
}

func TestLCBApp_RunUsesConfiguredMapping(t *testing.T) {
	cfg := newTestConfig(t)
	root := t.TempDir()
	chats := filepath.Join(root, "chats")
	src := filepath.Join(root, "phone")
	writeFile(t, filepath.Join(src, roomA, lcb.MessagesDirName, "8552"), jpegHead)
	writeFile(t, filepath.Join(src, roomA, lcb.MessagesDirName, "8553.thumb"), jpegHead)
	if err := os.MkdirAll(filepath.Join(chats, roomA, lcb.MessagesDirName), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, cfg.Chats.MappingPath, []byte("ID,Name,Status\n"+roomA+",Stella,1\n"))

	a := openApp(t, cfg, "Run")
	report, err := a.Run(chats, RunOptions{Source: src, MessageIDs: true})
	closeApp(t, a)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Prefix == nil || len(report.Prefix.Renamed) != 1 {
		t.Fatalf("prefix = %+v, want one rename from the configured table", report.Prefix)
	}

	msgDir := filepath.Join(chats, "Stella-"+roomA, lcb.MessagesDirName)
	for _, p := range []string{
		filepath.Join(msgDir, "images", "8552.jpg"),
		filepath.Join(msgDir, "thumbnails", "8553.thumb.jpg"),
		filepath.Join(root, lcb.MessageIDsDirName, "Stella-"+roomA, "8553.thumb.jpg"),
	} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s missing: %v", p, err)
		}
	}

	ops := history(t, cfg)
	if len(ops) != 1 || ops[0].Operation != "Run" || ops[0].Status != StatusSuccess {
		t.Errorf("history = %+v, want one successful Run", ops)
	}
}
