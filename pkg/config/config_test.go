package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFile_MissingWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "prism.yaml")

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.DatabasePath != "data/prism.db" {
		t.Errorf("DatabasePath = %q, want default", cfg.DatabasePath)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("default config not written: %v", err)
	}
}

func TestLoadFromFile_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prism.yaml")
	content := "database_path: /tmp/other.db\nthreads: 4\ndashboard:\n  port: \"9090\"\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.DatabasePath != "/tmp/other.db" {
		t.Errorf("DatabasePath = %q, want override", cfg.DatabasePath)
	}
	if cfg.Threads != 4 {
		t.Errorf("Threads = %d, want 4", cfg.Threads)
	}
	if cfg.Dashboard.Port != "9090" {
		t.Errorf("Dashboard.Port = %q, want 9090", cfg.Dashboard.Port)
	}
	// Untouched fields keep defaults
	if cfg.Feeds.KEVURL == "" {
		t.Error("Feeds.KEVURL lost its default on partial config")
	}
}

func TestLoadFromFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prism.yaml")
	if err := os.WriteFile(path, []byte("{not yaml: ["), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFromFile(path); err == nil {
		t.Error("LoadFromFile() on malformed YAML: error = nil, want error")
	}
}

func TestWriteToFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := DefaultConfig()
	cfg.Threads = 7

	if err := WriteToFile(cfg, path); err != nil {
		t.Fatalf("WriteToFile() error = %v", err)
	}
	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if loaded.Threads != 7 {
		t.Errorf("Threads after round trip = %d, want 7", loaded.Threads)
	}
}
