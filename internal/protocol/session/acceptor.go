package session

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/danmuck/edgexfer/internal/transfer"
	"github.com/rs/zerolog/log"
)

// Acceptor is the sending side listener. It hands out one connection at a
// time, and only after the peer has presented the handshake.
type Acceptor struct {
	ln  net.Listener
	cfg Config
}

func Listen(addr string, cfg Config) (*Acceptor, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewAcceptor(ln, cfg), nil
}

func NewAcceptor(ln net.Listener, cfg Config) *Acceptor {
	return &Acceptor{ln: ln, cfg: cfg.WithDefaults()}
}

func (a *Acceptor) Addr() net.Addr {
	return a.ln.Addr()
}

func (a *Acceptor) Close() error {
	return a.ln.Close()
}

// Accept blocks until a peer completes the handshake. Peers that send
// anything else, or nothing within HandshakeTimeout, are dropped and the
// acceptor keeps listening. Cancelling ctx closes the listener.
func (a *Acceptor) Accept(ctx context.Context) (net.Conn, error) {
	stop := context.AfterFunc(ctx, func() { _ = a.ln.Close() })
	defer stop()
	for {
		conn, err := a.ln.Accept()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, err
		}
		remote := conn.RemoteAddr().String()
		_ = conn.SetReadDeadline(time.Now().Add(a.cfg.HandshakeTimeout))
		if err := ReadHandshake(conn); err != nil {
			log.Warn().Msgf("session.Acceptor handshake remote=%q err=%v", remote, err)
			_ = conn.Close()
			continue
		}
		_ = conn.SetReadDeadline(time.Time{})
		log.Info().Msgf("session.Acceptor accepted remote=%q", remote)
		return conn, nil
	}
}

// SendFunc frames one session's files. Serve emits TransmissionEnd after it
// returns nil.
type SendFunc func(ctx context.Context, s *transfer.Sender) error

// Serve accepts one gated connection, runs fn against it, and closes it.
func (a *Acceptor) Serve(ctx context.Context, scfg transfer.SenderConfig, fn SendFunc) error {
	conn, err := a.Accept(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	s := transfer.NewSender(&deadlineWriter{conn: conn, timeout: a.cfg.WriteTimeout}, scfg)
	if err := fn(ctx, s); err != nil {
		log.Error().Err(err).Msg("session.Acceptor send aborted")
		return err
	}
	if err := s.Finish(); err != nil {
		return err
	}
	log.Info().Msgf("session.Acceptor transmission end remote=%q", conn.RemoteAddr().String())
	return nil
}

// deadlineWriter refreshes the write deadline before every write.
type deadlineWriter struct {
	conn    net.Conn
	timeout time.Duration
}

func (w *deadlineWriter) Write(p []byte) (int, error) {
	if w.timeout > 0 {
		if err := w.conn.SetWriteDeadline(time.Now().Add(w.timeout)); err != nil && !errors.Is(err, net.ErrClosed) {
			return 0, err
		}
	}
	return w.conn.Write(p)
}
