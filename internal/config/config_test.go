package config

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		HostID:   "test-host-abc",
		BaseDir:  "/home/user/.local/share/lcb",
		LogDir:   "/home/user/.local/share/lcb/log",
		LogLevel: "debug",
		Chats: ChatsConfig{
			MappingPath:        "/home/user/line/mapping.csv",
			ExplicitExtensions: []string{"aac", "m4a", "opus"},
			Ignore:             []string{"*.bak", "cache/tmp"},
		},
		Vaults: []VaultConfig{
			{Type: "filesystem", Name: "local", FSVaultRoot: "/backup/vault"},
			{Type: "s3", Name: "offsite", S3Bucket: "chats", S3Region: "eu-west-1"},
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  "/home/user/.local/share/lcb/keys/lcb.pub",
			PrivateKeyPath: "/home/user/.local/share/lcb/keys/lcb.key",
		},
		Database: DatabaseConfig{Type: "sqlite", DataDir: "/home/user/.local/share/lcb/db"},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if !reflect.DeepEqual(got, original) {
		t.Errorf("Read() = %+v, want %+v", got, original)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("host-1", "/data/lcb")

	tests := []struct {
		name, got, want string
	}{
		{"HostID", cfg.HostID, "host-1"},
		{"BaseDir", cfg.BaseDir, "/data/lcb"},
		{"LogDir", cfg.LogDir, "/data/lcb/log"},
		{"LogLevel", cfg.LogLevel, "info"},
		{"Chats.MappingPath", cfg.Chats.MappingPath, "/data/lcb/mapping.csv"},
		{"Database.Type", cfg.Database.Type, "sqlite"},
		{"Database.DataDir", cfg.Database.DataDir, "/data/lcb/db"},
		{"Encryption.Type", cfg.Encryption.Type, "none"},
		{"Encryption.PublicKeyPath", cfg.Encryption.PublicKeyPath, "/data/lcb/keys/lcb.pub"},
		{"Encryption.PrivateKeyPath", cfg.Encryption.PrivateKeyPath, "/data/lcb/keys/lcb.key"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
	if !reflect.DeepEqual(cfg.Chats.ExplicitExtensions, []string{"aac", "m4a"}) {
		t.Errorf("Chats.ExplicitExtensions = %v", cfg.Chats.ExplicitExtensions)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing host", func(c *Config) { c.HostID = "" }, "host_id"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"bad database", func(c *Config) { c.Database.Type = "postgres" }, "database type"},
		{"bad encryption", func(c *Config) { c.Encryption.Type = "rot13" }, "encryption type"},
		{"bad vault", func(c *Config) { c.Vaults = []VaultConfig{{Type: "ftp", Name: "x"}} }, "unknown type"},
		{"duplicate vault", func(c *Config) {
			c.Vaults = []VaultConfig{{Type: "memory", Name: "x"}, {Type: "memory", Name: "x"}}
		}, "duplicate name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("h1", "/data/lcb")
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "lcb.toml")
		cfg := NewConfig("h1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "lcb.toml")
		cfg := NewConfig("h1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		if err := Init(path, cfg); err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "lcb.toml")
		cfg := NewConfig("read-test", dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.HostID != "read-test" {
			t.Errorf("HostID = %q, want %q", got.HostID, "read-test")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		if _, err := ReadFromFile("/nonexistent/path/lcb.toml"); err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}

func TestReadOrDefault(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		defaults := NewConfig("h1", "/data/lcb")
		got, err := ReadOrDefault(filepath.Join(t.TempDir(), "absent.toml"), defaults)
		if err != nil {
			t.Fatalf("ReadOrDefault() error = %v", err)
		}
		if !reflect.DeepEqual(got, defaults) {
			t.Errorf("ReadOrDefault() = %+v, want defaults", got)
		}
	})

	t.Run("file overrides only the keys it sets", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lcb.toml")
		content := "log_level = \"debug\"\n\n[chats]\nignore = [\"*.bak\"]\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		got, err := ReadOrDefault(path, NewConfig("h1", "/data/lcb"))
		if err != nil {
			t.Fatalf("ReadOrDefault() error = %v", err)
		}
		if got.LogLevel != "debug" {
			t.Errorf("LogLevel = %q, want debug", got.LogLevel)
		}
		if !reflect.DeepEqual(got.Chats.Ignore, []string{"*.bak"}) {
			t.Errorf("Chats.Ignore = %v", got.Chats.Ignore)
		}
		if got.Chats.MappingPath != "/data/lcb/mapping.csv" || got.HostID != "h1" {
			t.Errorf("defaults lost: %+v", got)
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lcb.toml")
		if err := os.WriteFile(path, []byte("host_id = "), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := ReadOrDefault(path, NewConfig("h1", "/data/lcb")); err == nil {
			t.Error("ReadOrDefault() expected decode error")
		}
	})
}
