package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "writer.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeFile(t, "listen_addr: 0.0.0.0:9000\ndb_path: /tmp/writer.db\nverbose: true\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.ListenAddr != "0.0.0.0:9000" || cfg.DBPath != "/tmp/writer.db" || !cfg.Verbose {
		t.Errorf("got %+v", cfg)
	}
}

func TestLoad_FillsDefaults(t *testing.T) {
	path := writeFile(t, "verbose: true\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	def := Default()
	if cfg.ListenAddr != def.ListenAddr || cfg.DBPath != def.DBPath {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeFile(t, "listen_addr: [not\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}
