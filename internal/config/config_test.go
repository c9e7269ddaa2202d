package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/edgexfer/internal/testutil/testlog"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestTemplatesValidate(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	for _, kind := range []string{"send", "recv", "manifest"} {
		path := filepath.Join(dir, kind+".toml")
		if err := WriteTemplate(path, kind, false); err != nil {
			t.Fatalf("write %s template: %v", kind, err)
		}
		if err := Validate(path, kind); err != nil {
			t.Fatalf("validate %s template: %v", kind, err)
		}
		if err := WriteTemplate(path, kind, false); err == nil {
			t.Fatalf("expected %s overwrite refusal", kind)
		}
	}
	if _, err := Template("ghost"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestLoadRecvFileRejectsUnknownKeys(t *testing.T) {
	testlog.Start(t)
	path := writeFile(t, t.TempDir(), "recv.toml", "address = \"h:1\"\noutput_dri = \"x\"\n")
	if _, err := LoadRecvFile(path); err == nil {
		t.Fatalf("expected unknown key error")
	}
}

func TestValidateRecvFile(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name string
		cfg  RecvFile
		ok   bool
	}{
		{"minimal", RecvFile{Address: "h:1"}, true},
		{"missing address", RecvFile{}, false},
		{"bad policy", RecvFile{Address: "h:1", UnknownFiles: "ignore"}, false},
		{"bad duration", RecvFile{Address: "h:1", FrameDeadline: "soon"}, false},
		{"negative duration", RecvFile{Address: "h:1", BackoffMax: "-1s"}, false},
		{"negative keep", RecvFile{Address: "h:1", KeepCompleted: -1}, false},
	}
	for _, tc := range cases {
		err := ValidateRecvFile(tc.cfg)
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", tc.name, err)
		}
	}
}

func TestValidateSendFileChunkBounds(t *testing.T) {
	testlog.Start(t)
	if err := ValidateSendFile(SendFile{Listen: ":1", ChunkSize: 10, MaxChunkBytes: 5}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected chunk bound error, got %v", err)
	}
	if err := ValidateSendFile(SendFile{Listen: ":1", ChunkSize: 5, MaxChunkBytes: 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadManifestResolvesPathsAndNames(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "m.toml", `
[[files]]
path = "data/a.csv"

[[files]]
name = "logs/live.log"
path = "-"
stream = true

[[files]]
name = "abs.bin"
path = "/srv/abs.bin"
`)
	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(m.Files) != 3 {
		t.Fatalf("unexpected files: %+v", m.Files)
	}
	if m.Files[0].Name != "a.csv" || m.Files[0].Path != filepath.Join(dir, "data", "a.csv") {
		t.Fatalf("relative entry: %+v", m.Files[0])
	}
	if m.Files[1].Path != "-" || !m.Files[1].Stream {
		t.Fatalf("stdin entry: %+v", m.Files[1])
	}
	if m.Files[2].Path != "/srv/abs.bin" {
		t.Fatalf("absolute entry: %+v", m.Files[2])
	}
}

func TestValidateManifest(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name string
		m    Manifest
	}{
		{"empty", Manifest{}},
		{"missing path", Manifest{Files: []FileEntry{{Name: "a"}}}},
		{"stdin definite", Manifest{Files: []FileEntry{{Name: "a", Path: "-"}}}},
		{"missing name", Manifest{Files: []FileEntry{{Path: "-", Stream: true}}}},
		{"long name", Manifest{Files: []FileEntry{{Name: strings.Repeat("n", 256), Path: "x"}}}},
		{"duplicate", Manifest{Files: []FileEntry{{Name: "a", Path: "x"}, {Name: "a", Path: "y"}}}},
	}
	for _, tc := range cases {
		if err := ValidateManifest(tc.m); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", tc.name, err)
		}
	}
}
