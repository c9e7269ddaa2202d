package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/danmuck/edgexfer/internal/config"
	"github.com/danmuck/edgexfer/internal/observability"
	"github.com/danmuck/edgexfer/internal/protocol/session"
	"github.com/danmuck/edgexfer/internal/transfer"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "path to xfersend TOML config")
	listen := flag.String("listen", "", "listen address (overrides config)")
	manifestPath := flag.String("manifest", "", "send manifest path (overrides config)")
	chunk := flag.Int("chunk", 0, "chunk size in bytes (overrides config)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: xfersend [flags] [file ...]\n\nA file argument of - streams stdin as stdin.log.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	observability.InitLogger("xfersend")
	if err := run(*configPath, *listen, *manifestPath, *chunk, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "xfersend: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, listen, manifestPath string, chunk int, args []string) error {
	cfg := defaultServiceConfig()
	if configPath != "" {
		loaded, err := loadServiceConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if listen != "" {
		cfg.Listen = listen
	}
	if manifestPath != "" {
		cfg.ManifestPath = manifestPath
	}
	if chunk > 0 {
		cfg.Sender.ChunkSize = chunk
	}

	entries, err := collectEntries(cfg.ManifestPath, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := session.Listen(cfg.Listen, cfg.Session)
	if err != nil {
		return err
	}
	defer a.Close()
	log.Info().Msgf("xfersend listening addr=%q files=%d", a.Addr().String(), len(entries))

	return a.Serve(ctx, cfg.Sender, func(ctx context.Context, s *transfer.Sender) error {
		for _, e := range entries {
			if err := sendEntry(ctx, s, e); err != nil {
				return fmt.Errorf("send %q: %w", e.Name, err)
			}
		}
		return nil
	})
}

// collectEntries merges the manifest with file arguments.
func collectEntries(manifestPath string, args []string) ([]config.FileEntry, error) {
	var m config.Manifest
	if manifestPath != "" {
		loaded, err := config.LoadManifest(manifestPath)
		if err != nil {
			return nil, err
		}
		m = loaded
	}
	for _, arg := range args {
		if arg == "-" {
			m.Files = append(m.Files, config.FileEntry{Name: "stdin.log", Path: "-", Stream: true})
			continue
		}
		m.Files = append(m.Files, config.FileEntry{Name: filepath.Base(arg), Path: arg})
	}
	m = m.Normalize()
	if err := config.ValidateManifest(m); err != nil {
		return nil, err
	}
	return m.Files, nil
}

func sendEntry(ctx context.Context, s *transfer.Sender, e config.FileEntry) error {
	if !e.Stream {
		id, err := s.SendFile(ctx, e.Name, e.Path)
		if err == nil {
			log.Info().Msgf("xfersend sent id=%d name=%q", id, e.Name)
		}
		return err
	}
	src := os.Stdin
	if e.Path != "-" {
		f, err := os.Open(e.Path)
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
	}
	id, err := s.SendStream(ctx, e.Name, src)
	if err == nil {
		log.Info().Msgf("xfersend streamed id=%d name=%q", id, e.Name)
	}
	return err
}
