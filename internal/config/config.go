package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

var ErrInvalidConfig = errors.New("config: invalid")

// SendFile is the on-disk shape of the xfersend config.
type SendFile struct {
	Listen           string `toml:"listen"`
	Manifest         string `toml:"manifest"`
	ChunkSize        int    `toml:"chunk_size"`
	TerminateStreams bool   `toml:"terminate_streams"`
	HandshakeTimeout string `toml:"handshake_timeout"`
	WriteTimeout     string `toml:"write_timeout"`
	MaxChunkBytes    uint32 `toml:"max_chunk_bytes"`
}

// RecvFile is the on-disk shape of the xferrecv config.
type RecvFile struct {
	Address            string   `toml:"address"`
	OutputDir          string   `toml:"output_dir"`
	FrameDeadline      string   `toml:"frame_deadline"`
	MaxChunkBytes      uint32   `toml:"max_chunk_bytes"`
	MaxFileBytes       uint32   `toml:"max_file_bytes"`
	UnknownFiles       string   `toml:"unknown_files"`
	ConnectTimeout     string   `toml:"connect_timeout"`
	MaxConnectAttempts int      `toml:"max_connect_attempts"`
	BackoffInitial     string   `toml:"backoff_initial"`
	BackoffMax         string   `toml:"backoff_max"`
	QueueDepth         int      `toml:"queue_depth"`
	AdminAddr          string   `toml:"admin_addr"`
	CorsOrigins        []string `toml:"cors_origins"`
	KeepCompleted      int      `toml:"keep_completed"`
}

func LoadSendFile(path string) (SendFile, error) {
	var cfg SendFile
	if err := loadToml(path, &cfg); err != nil {
		return SendFile{}, err
	}
	if err := ValidateSendFile(cfg); err != nil {
		return SendFile{}, err
	}
	return cfg, nil
}

func LoadRecvFile(path string) (RecvFile, error) {
	var cfg RecvFile
	if err := loadToml(path, &cfg); err != nil {
		return RecvFile{}, err
	}
	if err := ValidateRecvFile(cfg); err != nil {
		return RecvFile{}, err
	}
	return cfg, nil
}

// loadToml rejects keys the target does not declare so typos surface at
// validation time.
func loadToml(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	defer f.Close()
	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateSendFile(cfg SendFile) error {
	if strings.TrimSpace(cfg.Listen) == "" {
		return fmt.Errorf("%w: send config missing listen", ErrInvalidConfig)
	}
	if cfg.ChunkSize < 0 {
		return fmt.Errorf("%w: chunk_size must be >= 0", ErrInvalidConfig)
	}
	if cfg.MaxChunkBytes > 0 && cfg.ChunkSize > int(cfg.MaxChunkBytes) {
		return fmt.Errorf("%w: chunk_size %d exceeds max_chunk_bytes %d", ErrInvalidConfig, cfg.ChunkSize, cfg.MaxChunkBytes)
	}
	return validateDurations(map[string]string{
		"handshake_timeout": cfg.HandshakeTimeout,
		"write_timeout":     cfg.WriteTimeout,
	})
}

func ValidateRecvFile(cfg RecvFile) error {
	if strings.TrimSpace(cfg.Address) == "" {
		return fmt.Errorf("%w: recv config missing address", ErrInvalidConfig)
	}
	switch strings.TrimSpace(cfg.UnknownFiles) {
	case "", "abort", "drop":
	default:
		return fmt.Errorf("%w: unknown_files must be abort or drop, got %q", ErrInvalidConfig, cfg.UnknownFiles)
	}
	if cfg.KeepCompleted < 0 || cfg.QueueDepth < 0 {
		return fmt.Errorf("%w: keep_completed and queue_depth must be >= 0", ErrInvalidConfig)
	}
	return validateDurations(map[string]string{
		"frame_deadline":  cfg.FrameDeadline,
		"connect_timeout": cfg.ConnectTimeout,
		"backoff_initial": cfg.BackoffInitial,
		"backoff_max":     cfg.BackoffMax,
	})
}

func validateDurations(fields map[string]string) error {
	for key, raw := range fields {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if _, err := ParseDuration(key, raw); err != nil {
			return err
		}
	}
	return nil
}

// ParseDuration parses a config duration string, naming key in the error.
func ParseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s must be >= 0", ErrInvalidConfig, key)
	}
	return d, nil
}
