package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/edgexfer/internal/config"
	"github.com/danmuck/edgexfer/internal/protocol/frame"
	"github.com/danmuck/edgexfer/internal/protocol/session"
	"github.com/danmuck/edgexfer/internal/transfer"
)

type serviceConfig struct {
	Address       string
	AdminAddr     string
	CorsOrigins   []string
	KeepCompleted int
	Session       session.Config
	Receiver      transfer.ReceiverConfig
}

func defaultServiceConfig() serviceConfig {
	return serviceConfig{
		Address:       "127.0.0.1:7070",
		KeepCompleted: 64,
		Session:       session.DefaultConfig(),
		Receiver:      transfer.DefaultReceiverConfig(),
	}
}

func loadServiceConfig(path string) (serviceConfig, error) {
	cfg := defaultServiceConfig()

	var raw config.RecvFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serviceConfig{}, fmt.Errorf("load xferrecv config: %w", err)
	}

	if meta.IsDefined("address") {
		if v := strings.TrimSpace(raw.Address); v != "" {
			cfg.Address = v
		}
	}

	if meta.IsDefined("output_dir") {
		cfg.Receiver.OutputDir = strings.TrimSpace(raw.OutputDir)
	}

	if meta.IsDefined("unknown_files") {
		policy := transfer.UnknownFilePolicy(strings.TrimSpace(raw.UnknownFiles))
		switch policy {
		case transfer.UnknownFileAbort, transfer.UnknownFileDrop:
			cfg.Receiver.UnknownFiles = policy
		default:
			return serviceConfig{}, fmt.Errorf("unknown_files must be abort or drop, got %q", raw.UnknownFiles)
		}
	}

	if meta.IsDefined("max_chunk_bytes") {
		cfg.Receiver.Limits = frame.Limits{MaxPayloadBytes: raw.MaxChunkBytes}
	}

	if meta.IsDefined("max_file_bytes") {
		cfg.Receiver.MaxFileBytes = raw.MaxFileBytes
	}

	if meta.IsDefined("max_connect_attempts") {
		cfg.Session.MaxConnectAttempts = raw.MaxConnectAttempts
	}

	if meta.IsDefined("queue_depth") {
		cfg.Session.QueueDepth = raw.QueueDepth
	}

	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}

	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeOrigins(raw.CorsOrigins)
	}

	if meta.IsDefined("keep_completed") {
		cfg.KeepCompleted = raw.KeepCompleted
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"frame_deadline", raw.FrameDeadline, &cfg.Receiver.FrameDeadline},
		{"connect_timeout", raw.ConnectTimeout, &cfg.Session.ConnectTimeout},
		{"backoff_initial", raw.BackoffInitial, &cfg.Session.Backoff.InitialDelay},
		{"backoff_max", raw.BackoffMax, &cfg.Session.Backoff.MaxDelay},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := config.ParseDuration(d.key, d.raw)
		if err != nil {
			return serviceConfig{}, err
		}
		*d.dst = v
	}

	return cfg, nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
