package client

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gofugue.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
worlds:
  - name: moo
    host: moo.example.org
    port: 8888
    user: arvid
    tls: true
  - name: mush
    host: mush.example.org
    port: 4201
default_world: moo
scripts:
  - triggers.tf
  - /abs/common.tf
history_size: 100
web_enabled: true
web_port: 9100
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Worlds) != 2 || cfg.Worlds[0].Name != "moo" || !cfg.Worlds[0].TLS {
		t.Errorf("worlds = %+v", cfg.Worlds)
	}
	if cfg.DefaultWorld != "moo" {
		t.Errorf("default world = %q", cfg.DefaultWorld)
	}
	if cfg.HistorySize != 100 {
		t.Errorf("history size = %d", cfg.HistorySize)
	}
	if !cfg.WebEnabled || cfg.WebPort != 9100 {
		t.Errorf("web = %v %d", cfg.WebEnabled, cfg.WebPort)
	}

	// Relative script paths resolve against the config directory.
	wantRel := filepath.Join(filepath.Dir(path), "triggers.tf")
	if cfg.Scripts[0] != wantRel {
		t.Errorf("scripts[0] = %q, want %q", cfg.Scripts[0], wantRel)
	}
	if cfg.Scripts[1] != "/abs/common.tf" {
		t.Errorf("scripts[1] = %q", cfg.Scripts[1])
	}

	// Unset fields keep their defaults.
	if cfg.ScrollbackRetention != 7*86400 {
		t.Errorf("retention = %d", cfg.ScrollbackRetention)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"bad yaml", "worlds: [\n"},
		{"empty world name", "worlds:\n  - host: h\n    port: 1\n"},
		{"bad port", "worlds:\n  - name: w\n    host: h\n    port: 99999\n"},
		{"duplicate world", "worlds:\n  - {name: w, host: h, port: 1}\n  - {name: w, host: h, port: 2}\n"},
		{"unknown default", "default_world: nope\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.body)
			if _, err := LoadConfig(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error")
	}
}
