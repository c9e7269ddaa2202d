package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/danmuck/edgexfer/internal/testutil/testlog"
)

func TestNextBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       false,
	}
	if got := NextBackoffDelay(cfg, 1, nil); got != 250*time.Millisecond {
		t.Fatalf("attempt1 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 2, nil); got != 500*time.Millisecond {
		t.Fatalf("attempt2 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 3, nil); got != time.Second {
		t.Fatalf("attempt3 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 6, nil); got != 5*time.Second {
		t.Fatalf("attempt6 got=%v", got)
	}
}

func TestShouldRetry(t *testing.T) {
	testlog.Start(t)
	if !shouldRetry(0, 100) {
		t.Fatalf("unbounded attempts should retry")
	}
	if shouldRetry(3, 3) || !shouldRetry(3, 2) {
		t.Fatalf("bounded attempts mismatch")
	}
}

func TestConfigWithDefaults(t *testing.T) {
	testlog.Start(t)
	got := Config{WriteTimeout: -1}.WithDefaults()
	def := DefaultConfig()
	if got.ConnectTimeout != def.ConnectTimeout || got.QueueDepth != def.QueueDepth || got.BatchSize != def.BatchSize {
		t.Fatalf("defaults not applied: %+v", got)
	}
	if got.WriteTimeout != 0 {
		t.Fatalf("negative write timeout should disable, got=%v", got.WriteTimeout)
	}
	if got.Backoff != def.Backoff {
		t.Fatalf("backoff defaults not applied: %+v", got.Backoff)
	}
}

func TestReadHandshake(t *testing.T) {
	testlog.Start(t)
	if err := ReadHandshake(bytes.NewReader([]byte("ACK"))); err != nil {
		t.Fatalf("valid handshake: %v", err)
	}
	if err := ReadHandshake(bytes.NewReader([]byte("NAK"))); !errors.Is(err, ErrHandshakeMismatch) {
		t.Fatalf("expected ErrHandshakeMismatch, got %v", err)
	}
	if err := ReadHandshake(bytes.NewReader([]byte("AC"))); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected short read, got %v", err)
	}
}

func TestAcceptorDropsBadHandshakeAndKeepsListening(t *testing.T) {
	testlog.Start(t)
	a, err := Listen("127.0.0.1:0", Config{HandshakeTimeout: time.Second})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer a.Close()

	accepted := make(chan net.Conn, 1)
	acceptErr := make(chan error, 1)
	go func() {
		conn, err := a.Accept(context.Background())
		if err != nil {
			acceptErr <- err
			return
		}
		accepted <- conn
	}()

	bad, err := net.Dial("tcp", a.Addr().String())
	if err != nil {
		t.Fatalf("dial bad: %v", err)
	}
	defer bad.Close()
	if _, err := bad.Write([]byte("NOP")); err != nil {
		t.Fatalf("write bad: %v", err)
	}
	_ = bad.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := bad.Read(make([]byte, 1)); err == nil {
		t.Fatalf("expected bad peer to be closed")
	}

	good, err := Dial(context.Background(), a.Addr().String(), Config{MaxConnectAttempts: 1})
	if err != nil {
		t.Fatalf("dial good: %v", err)
	}
	defer good.Close()

	select {
	case conn := <-accepted:
		_ = conn.Close()
	case err := <-acceptErr:
		t.Fatalf("accept: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatalf("accept did not return")
	}
}

func TestAcceptorContextCancel(t *testing.T) {
	testlog.Start(t)
	a, err := Listen("127.0.0.1:0", Config{})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := a.Accept(ctx)
		done <- err
	}()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("accept ignored cancel")
	}
}

func TestDialGivesUpAfterMaxAttempts(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	cfg := Config{
		MaxConnectAttempts: 2,
		Backoff:            BackoffConfig{InitialDelay: time.Millisecond, Multiplier: 1, MaxDelay: time.Millisecond},
	}
	if _, err := Dial(context.Background(), addr, cfg); err == nil {
		t.Fatalf("expected dial failure")
	}
	if _, err := Dial(context.Background(), " ", cfg); !errors.Is(err, ErrAddressRequired) {
		t.Fatalf("expected ErrAddressRequired, got %v", err)
	}
}

func TestDialHonorsContextDuringBackoff(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	cfg := Config{Backoff: BackoffConfig{InitialDelay: time.Hour, Multiplier: 1}}
	if _, err := Dial(ctx, addr, cfg); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
