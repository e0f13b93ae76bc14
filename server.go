package wren

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/perchlabs/wren/sasl"
)

// connectionReserve is the number of admission permits kept beyond
// MaxConnections, so that over-capacity clients can still be greeted
// with an informative 421 instead of a refused dial.
const connectionReserve = 10

// Server accepts SMTP connections and runs one Session per connection.
// A Server serves once; after Shutdown it cannot be reused.
type Server struct {
	config         Config
	registry       *registry
	mechanisms     map[string]sasl.Factory
	mechanismNames []string
	log            *slog.Logger

	permits *semaphore.Weighted // nil when MaxConnections is 0

	mu       sync.Mutex
	listener net.Listener
	sessions map[*Session]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started atomic.Bool
	closed  atomic.Bool
}

// NewServer validates the config and builds a Server.
func NewServer(config Config) (*Server, error) {
	config = config.withDefaults()
	if config.Delivery == nil {
		return nil, errors.New("wren: config requires a delivery HandlerFactory")
	}
	if len(config.Mechanisms) > 0 && config.Validator == nil {
		return nil, errors.New("wren: auth mechanisms configured without a Validator")
	}
	if config.RequireAuth && len(config.Mechanisms) == 0 {
		return nil, errors.New("wren: RequireAuth set without auth mechanisms")
	}
	if config.EnforceTLS && config.TLSConfig == nil {
		return nil, errors.New("wren: EnforceTLS set without a TLS config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv := &Server{
		config:   config,
		log:      config.Logger.With("component", "smtp-server"),
		sessions: make(map[*Session]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	if config.MaxConnections > 0 {
		srv.permits = semaphore.NewWeighted(int64(config.MaxConnections + connectionReserve))
	}

	srv.mechanisms = make(map[string]sasl.Factory, len(config.Mechanisms))
	for _, factory := range config.Mechanisms {
		name := factory().Name()
		if _, dup := srv.mechanisms[name]; dup {
			cancel()
			return nil, fmt.Errorf("wren: duplicate auth mechanism %s", name)
		}
		srv.mechanisms[name] = factory
		srv.mechanismNames = append(srv.mechanismNames, name)
	}

	srv.registry = newRegistry(&srv.config)
	return srv, nil
}

// ListenAndServe listens on Config.Addr and serves until Shutdown.
func (s *Server) ListenAndServe() error {
	if s.closed.Load() {
		return ErrServerClosed
	}
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("wren: listen on %s: %w", s.config.Addr, err)
	}
	return s.Serve(listener)
}

// Serve accepts connections on the listener until Shutdown.
func (s *Server) Serve(listener net.Listener) error {
	if s.closed.Load() {
		listener.Close()
		return ErrServerClosed
	}
	if !s.started.CompareAndSwap(false, true) {
		listener.Close()
		return errors.New("wren: server already serving")
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	s.log.Info("server started", "addr", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.closed.Load() {
				return ErrServerClosed
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				// Transient accept failure; back off instead of
				// spinning.
				time.Sleep(time.Second)
				continue
			}
			return fmt.Errorf("wren: accept: %w", err)
		}

		if s.permits != nil && !s.permits.TryAcquire(1) {
			// Even the reserve is exhausted.
			conn.Close()
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	if s.permits != nil {
		defer s.permits.Release(1)
	}

	sess := newSession(s, conn)
	overCapacity := !s.track(sess)
	defer s.untrack(sess)

	if overCapacity {
		sess.rejectTooMany()
		conn.Close()
		return
	}
	sess.serve()
}

// track registers a session and reports whether it fits within
// MaxConnections.
func (s *Server) track(sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess] = struct{}{}
	max := s.config.MaxConnections
	return max <= 0 || len(s.sessions) <= max
}

func (s *Server) untrack(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sess)
}

// ConnectionCount returns the number of live sessions.
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Shutdown stops accepting connections, notifies live sessions with a
// 421 and waits for them to finish, bounded by ctx. The server cannot
// serve again afterwards.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrServerClosed
	}
	s.log.Info("server shutting down")
	s.cancel()

	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
	}
	live := make([]*Session, 0, len(s.sessions))
	for sess := range s.sessions {
		live = append(live, sess)
	}
	s.mu.Unlock()

	for _, sess := range live {
		sess.shutdownNotice()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("server stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
