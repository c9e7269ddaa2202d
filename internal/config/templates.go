package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "send":
		return sendTemplate, nil
	case "recv":
		return recvTemplate, nil
	case "manifest":
		return manifestTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

// Validate loads path as kind and reports the first problem.
func Validate(path, kind string) error {
	var err error
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "send":
		_, err = LoadSendFile(path)
	case "recv":
		_, err = LoadRecvFile(path)
	case "manifest":
		_, err = LoadManifest(path)
	default:
		err = fmt.Errorf("unknown config kind: %s", kind)
	}
	return err
}

const sendTemplate = `listen = "127.0.0.1:7070"
manifest = "manifest.toml"
chunk_size = 65536
terminate_streams = false
handshake_timeout = "5s"
write_timeout = "15s"
max_chunk_bytes = 8388608
`

const recvTemplate = `address = "127.0.0.1:7070"
output_dir = "received"
frame_deadline = "10s"
max_chunk_bytes = 8388608
max_file_bytes = 1073741824
unknown_files = "abort"
connect_timeout = "5s"
max_connect_attempts = 0
backoff_initial = "250ms"
backoff_max = "5s"
queue_depth = 64
admin_addr = "127.0.0.1:7071"
cors_origins = ["http://localhost:3000"]
keep_completed = 64
`

const manifestTemplate = `[[files]]
name = "reports/daily.csv"
path = "data/daily.csv"

[[files]]
name = "logs/app.log"
path = "-"
stream = true
`
