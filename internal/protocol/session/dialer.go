package session

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrAddressRequired = errors.New("session: address required")

// Dial connects to the acceptor at addr and writes the handshake. Failed
// attempts back off per cfg.Backoff until MaxConnectAttempts or ctx ends.
func Dial(ctx context.Context, addr string, cfg Config) (net.Conn, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, ErrAddressRequired
	}
	cfg = cfg.WithDefaults()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var attempt int
	for {
		attempt++
		conn, err := dialOnce(ctx, addr, cfg)
		if err == nil {
			log.Info().Msgf("session.Dial connected addr=%q attempt=%d", addr, attempt)
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn().Msgf("session.Dial attempt=%d addr=%q err=%v", attempt, addr, err)
		if !shouldRetry(cfg.MaxConnectAttempts, attempt) {
			return nil, err
		}
		if err := sleepBackoff(ctx, cfg.Backoff, attempt, rng); err != nil {
			return nil, err
		}
	}
}

func dialOnce(ctx context.Context, addr string, cfg Config) (net.Conn, error) {
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(cfg.HandshakeTimeout))
	if err := WriteHandshake(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetWriteDeadline(time.Time{})
	return conn, nil
}
