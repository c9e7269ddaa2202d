package session

import (
	"context"
	"errors"
	"net"

	"github.com/danmuck/edgexfer/internal/protocol/stream"
	"github.com/danmuck/edgexfer/internal/transfer"
	"github.com/rs/zerolog/log"
)

// Receive runs one receiving session over conn. A reader goroutine owns the
// connection and forwards raw batches; this goroutine parses and applies
// them. conn is closed before Receive returns.
func Receive(ctx context.Context, conn net.Conn, cfg Config, rcfg transfer.ReceiverConfig) error {
	cfg = cfg.WithDefaults()
	queue := make(chan []byte, cfg.QueueDepth)
	rcv := transfer.NewReceiver(stream.NewAccumulator(queue), rcfg)

	pumpCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	pumpErr := make(chan error, 1)
	go func() {
		pumpErr <- stream.Pump(pumpCtx, conn, queue, cfg.BatchSize)
	}()

	runErr := rcv.Run(ctx)
	cancel()
	_ = conn.Close()
	perr := <-pumpErr
	if rcv.Ended() || errors.Is(perr, net.ErrClosed) || errors.Is(perr, context.Canceled) {
		perr = nil
	}
	if perr != nil {
		log.Warn().Err(perr).Str("session", rcv.SessionID()).Msg("session.Receive reader stopped")
	}
	return errors.Join(runErr, perr)
}

// DialAndReceive connects to addr and runs Receive on the resulting connection.
func DialAndReceive(ctx context.Context, addr string, cfg Config, rcfg transfer.ReceiverConfig) error {
	conn, err := Dial(ctx, addr, cfg)
	if err != nil {
		return err
	}
	return Receive(ctx, conn, cfg, rcfg)
}
