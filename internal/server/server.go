// Package server is the observer feed: a read-only HTTP and websocket
// surface that streams query snapshots of the world to external tools.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/worldcore/internal/core/events/bus"
	"github.com/zeusync/worldcore/internal/core/observability/log"
	"github.com/zeusync/worldcore/internal/host"
	"github.com/zeusync/worldcore/pkg/generic"
)

// Config holds observer configuration
type Config struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr    string `yaml:"addr" mapstructure:"addr"`
	// Token, when set, must be presented as ?token= or a bearer header.
	Token        string        `yaml:"token" mapstructure:"token"`
	MaxClients   int           `yaml:"max_clients" mapstructure:"max_clients"`
	SendBuffer   int           `yaml:"send_buffer" mapstructure:"send_buffer"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	// TickEvent is the bus message that triggers a snapshot round.
	TickEvent string `yaml:"tick_event" mapstructure:"tick_event"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		Addr:         "127.0.0.1:8080",
		MaxClients:   64,
		SendBuffer:   16,
		WriteTimeout: 5 * time.Second,
		TickEvent:    "core/tick",
	}
}

// Server streams snapshots to websocket sessions after every tick.
type Server struct {
	world *host.World
	cfg   Config
	log   log.Log

	sessions     sync.Map // map[uuid.UUID]*session
	sessionCount int64    // atomic
	ticks        uint64   // atomic

	buffers *generic.Pool[*bytes.Buffer]

	mu       sync.Mutex
	http     *http.Server
	listener net.Listener
	tickSub  bus.Subscription
	running  bool
	closed   bool
}

type Option func(*Server)

func WithLogger(l log.Log) Option {
	return func(s *Server) {
		s.log = l
	}
}

func New(w *host.World, cfg Config, opts ...Option) *Server {
	def := DefaultConfig()
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = def.MaxClients
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.TickEvent == "" {
		cfg.TickEvent = def.TickEvent
	}
	s := &Server{
		world: w,
		cfg:   cfg,
		log:   log.NewNop(),
		buffers: generic.NewResetPool(
			func() *bytes.Buffer { return new(bytes.Buffer) },
			(*bytes.Buffer).Reset,
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("observer")
	return s
}

// Handler routes /healthz and /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Attach subscribes the server to tick notifications without listening.
// Start calls it; tests that serve Handler through httptest call it directly.
func (s *Server) Attach() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tickSub != nil {
		return nil
	}
	sub, err := s.world.Bus.Subscribe(s.cfg.TickEvent, func(bus.Message) error {
		s.Broadcast()
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.cfg.TickEvent, err)
	}
	s.tickSub = sub
	return nil
}

// Start listens on cfg.Addr and serves until Stop.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Attach(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrServerClosed
	}
	if s.running {
		return ErrServerAlreadyRunning
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrListenerFailed, err)
	}
	s.listener = ln
	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.running = true

	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("observer stopped serving", log.Error(err))
		}
	}()
	s.log.Info("observer listening", log.String("addr", ln.Addr().String()))
	return nil
}

// Addr is the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes every session and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrServerNotRunning
	}
	s.running = false
	s.closed = true
	srv := s.http
	sub := s.tickSub
	s.tickSub = nil
	s.mu.Unlock()

	if sub != nil {
		_ = s.world.Bus.Unsubscribe(sub)
	}
	s.sessions.Range(func(_, value any) bool {
		value.(*session).close()
		return true
	})
	err := srv.Shutdown(ctx)
	s.log.Info("observer stopped", log.Uint64("ticks", atomic.LoadUint64(&s.ticks)))
	return err
}

// Run starts the server and stops it when ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	shutdown, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
	defer cancel()
	return s.Stop(shutdown)
}

func (s *Server) Sessions() int {
	return int(atomic.LoadInt64(&s.sessionCount))
}

// Broadcast evaluates every subscribed session's query and queues the
// snapshot. A session whose buffer is full skips this round.
func (s *Server) Broadcast() {
	tick := atomic.AddUint64(&s.ticks, 1)
	s.sessions.Range(func(key, value any) bool {
		sess := value.(*session)
		frame, ok := s.snapshot(sess, tick)
		if !ok {
			return true
		}
		if !sess.enqueue(frame) {
			s.log.Warn("observer session lagging, snapshot dropped", log.String("session", key.(uuid.UUID).String()))
		}
		return true
	})
}

func (s *Server) register(sess *session) error {
	if atomic.AddInt64(&s.sessionCount, 1) > int64(s.cfg.MaxClients) {
		atomic.AddInt64(&s.sessionCount, -1)
		return ErrMaxClientsReached
	}
	s.sessions.Store(sess.id, sess)
	return nil
}

func (s *Server) unregister(sess *session) {
	if _, ok := s.sessions.LoadAndDelete(sess.id); !ok {
		return
	}
	atomic.AddInt64(&s.sessionCount, -1)
	s.world.Queries.DropAll(sess.owner())
}
