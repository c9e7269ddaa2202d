package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/edgexfer/internal/config"
	"github.com/danmuck/edgexfer/internal/protocol/frame"
	"github.com/danmuck/edgexfer/internal/protocol/session"
	"github.com/danmuck/edgexfer/internal/transfer"
)

type serviceConfig struct {
	Listen       string
	ManifestPath string
	Session      session.Config
	Sender       transfer.SenderConfig
}

func defaultServiceConfig() serviceConfig {
	return serviceConfig{
		Listen:  "127.0.0.1:7070",
		Session: session.DefaultConfig(),
		Sender:  transfer.DefaultSenderConfig(),
	}
}

func loadServiceConfig(path string) (serviceConfig, error) {
	cfg := defaultServiceConfig()

	var raw config.SendFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serviceConfig{}, fmt.Errorf("load xfersend config: %w", err)
	}

	if meta.IsDefined("listen") {
		if v := strings.TrimSpace(raw.Listen); v != "" {
			cfg.Listen = v
		}
	}

	if meta.IsDefined("manifest") {
		cfg.ManifestPath = strings.TrimSpace(raw.Manifest)
		if cfg.ManifestPath != "" && !filepath.IsAbs(cfg.ManifestPath) {
			cfg.ManifestPath = filepath.Join(filepath.Dir(path), cfg.ManifestPath)
		}
	}

	if meta.IsDefined("chunk_size") {
		cfg.Sender.ChunkSize = raw.ChunkSize
	}

	if meta.IsDefined("terminate_streams") {
		cfg.Sender.TerminateStreams = raw.TerminateStreams
	}

	if meta.IsDefined("max_chunk_bytes") {
		cfg.Sender.Limits = frame.Limits{MaxPayloadBytes: raw.MaxChunkBytes}
	}

	if meta.IsDefined("handshake_timeout") {
		d, err := config.ParseDuration("handshake_timeout", raw.HandshakeTimeout)
		if err != nil {
			return serviceConfig{}, err
		}
		cfg.Session.HandshakeTimeout = d
	}

	if meta.IsDefined("write_timeout") {
		d, err := config.ParseDuration("write_timeout", raw.WriteTimeout)
		if err != nil {
			return serviceConfig{}, err
		}
		cfg.Session.WriteTimeout = d
	}

	return cfg, nil
}
