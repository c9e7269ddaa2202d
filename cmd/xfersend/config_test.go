package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/edgexfer/internal/testutil/testlog"
)

func TestLoadServiceConfigDefaultsAndOverrides(t *testing.T) {
	testlog.Start(t)
	cfg, err := loadServiceConfig("ex.config.toml")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Listen != "127.0.0.1:7070" {
		t.Fatalf("unexpected listen: %q", cfg.Listen)
	}
	if cfg.ManifestPath != "ex.manifest.toml" {
		t.Fatalf("unexpected manifest: %q", cfg.ManifestPath)
	}
	if cfg.Sender.ChunkSize != 4096 || !cfg.Sender.TerminateStreams {
		t.Fatalf("unexpected sender config: %+v", cfg.Sender)
	}
	if cfg.Session.HandshakeTimeout != 3*time.Second || cfg.Session.WriteTimeout != 20*time.Second {
		t.Fatalf("unexpected session timeouts: %+v", cfg.Session)
	}
	if cfg.Sender.Limits != defaultServiceConfig().Sender.Limits {
		t.Fatalf("undefined limit should keep default: %+v", cfg.Sender.Limits)
	}
}

func TestLoadServiceConfigBadDuration(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "c.toml")
	if err := os.WriteFile(path, []byte("write_timeout = \"later\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loadServiceConfig(path); err == nil {
		t.Fatalf("expected duration parse error")
	}
}

func TestCollectEntriesMergesManifestAndArgs(t *testing.T) {
	testlog.Start(t)
	entries, err := collectEntries("ex.manifest.toml", []string{"data/extra.bin", "-"})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if entries[2].Name != "extra.bin" || entries[2].Stream {
		t.Fatalf("file arg entry: %+v", entries[2])
	}
	if entries[3].Path != "-" || !entries[3].Stream {
		t.Fatalf("stdin entry: %+v", entries[3])
	}
	if _, err := collectEntries("", nil); err == nil {
		t.Fatalf("expected error with nothing to send")
	}
}
