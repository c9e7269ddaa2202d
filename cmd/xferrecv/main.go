package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/edgexfer/internal/admin"
	"github.com/danmuck/edgexfer/internal/observability"
	"github.com/danmuck/edgexfer/internal/protocol/session"
	"github.com/danmuck/edgexfer/internal/transfer"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "path to xferrecv TOML config")
	addr := flag.String("addr", "", "sender address to dial (overrides config)")
	out := flag.String("out", "", "output directory (overrides config)")
	adminAddr := flag.String("admin", "", "admin HTTP listen address (overrides config)")
	flag.Parse()

	observability.InitLogger("xferrecv")
	if err := run(*configPath, *addr, *out, *adminAddr); err != nil {
		fmt.Fprintf(os.Stderr, "xferrecv: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, addr, out, adminAddr string) error {
	cfg := defaultServiceConfig()
	if configPath != "" {
		loaded, err := loadServiceConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if addr != "" {
		cfg.Address = addr
	}
	if out != "" {
		cfg.Receiver.OutputDir = out
	}
	if adminAddr != "" {
		cfg.AdminAddr = adminAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	board := transfer.NewStatusBoard(cfg.KeepCompleted)
	cfg.Receiver.Status = board

	adminErr := make(chan error, 1)
	adminCtx, stopAdmin := context.WithCancel(ctx)
	defer stopAdmin()
	if cfg.AdminAddr != "" {
		srv := admin.New("xferrecv", board, cfg.CorsOrigins)
		go func() { adminErr <- srv.Serve(adminCtx, cfg.AdminAddr) }()
	} else {
		adminErr <- nil
	}

	err := session.DialAndReceive(ctx, cfg.Address, cfg.Session, cfg.Receiver)
	snap := board.Snapshot()
	log.Info().Msgf("xferrecv session=%s ended=%v frames=%d closed=%d", snap.SessionID, snap.Ended, snap.Frames, len(snap.Completed))
	stopAdmin()
	return errors.Join(err, <-adminErr)
}
