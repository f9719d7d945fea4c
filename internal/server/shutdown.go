package server

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"
)

// ShutdownHook is one step of the shutdown sequence. Lower priority runs
// first.
type ShutdownHook struct {
	Name     string
	Priority int
	Fn       func(ctx context.Context) error
}

// ShutdownConfig configures the shutdown handler.
type ShutdownConfig struct {
	// Timeout for the whole hook sequence (default 30s).
	Timeout time.Duration
	// Signals that trigger shutdown (default SIGTERM, SIGINT).
	Signals []os.Signal
}

// DefaultShutdownConfig returns the defaults.
func DefaultShutdownConfig() *ShutdownConfig {
	return &ShutdownConfig{
		Timeout: 30 * time.Second,
		Signals: []os.Signal{syscall.SIGTERM, syscall.SIGINT},
	}
}

// ShutdownHandler runs registered hooks in priority order when a signal
// arrives or Shutdown is called.
type ShutdownHandler struct {
	mu      sync.Mutex
	hooks   []ShutdownHook
	timeout time.Duration
	signals []os.Signal
	started bool

	shutdownCh   chan struct{}
	doneCh       chan struct{}
	shutdownOnce sync.Once
	doneOnce     sync.Once
}

// NewShutdownHandler creates a shutdown handler.
func NewShutdownHandler(config *ShutdownConfig) *ShutdownHandler {
	if config == nil {
		config = DefaultShutdownConfig()
	}
	return &ShutdownHandler{
		timeout:    config.Timeout,
		signals:    config.Signals,
		shutdownCh: make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Register adds a hook.
func (s *ShutdownHandler) Register(hook ShutdownHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
	sort.SliceStable(s.hooks, func(a, b int) bool {
		return s.hooks[a].Priority < s.hooks[b].Priority
	})
}

// RegisterHook adds a hook from its parts.
func (s *ShutdownHandler) RegisterHook(name string, priority int, fn func(ctx context.Context) error) {
	s.Register(ShutdownHook{Name: name, Priority: priority, Fn: fn})
}

// Start begins listening for shutdown signals.
func (s *ShutdownHandler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, s.signals...)

	go func() {
		select {
		case <-sigCh:
		case <-s.shutdownCh:
		}
		signal.Stop(sigCh)
		s.runHooks()
	}()
}

// Shutdown triggers the sequence without a signal.
func (s *ShutdownHandler) Shutdown() {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return
	}
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
}

// Wait blocks until all hooks have run.
func (s *ShutdownHandler) Wait() {
	<-s.doneCh
}

// WaitWithTimeout blocks until shutdown completes or the timeout elapses,
// reporting which happened.
func (s *ShutdownHandler) WaitWithTimeout(timeout time.Duration) bool {
	select {
	case <-s.doneCh:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Done returns a channel closed once shutdown completes.
func (s *ShutdownHandler) Done() <-chan struct{} {
	return s.doneCh
}

// ShutdownCh returns a channel closed when shutdown begins.
func (s *ShutdownHandler) ShutdownCh() <-chan struct{} {
	return s.shutdownCh
}

// runHooks executes every hook in priority order under a shared deadline.
// A failing hook does not stop the ones after it.
func (s *ShutdownHandler) runHooks() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.mu.Lock()
	hooks := make([]ShutdownHook, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	for _, hook := range hooks {
		_ = hook.Fn(ctx)
	}

	s.doneOnce.Do(func() { close(s.doneCh) })
}

// Hook constructors with the conventional priorities: stop traffic first,
// then workers, then flush telemetry, then close storage and the audit log.

// HTTPServerShutdownHook stops an HTTP server early in the sequence.
func HTTPServerShutdownHook(name string, shutdownFn func(ctx context.Context) error) ShutdownHook {
	return ShutdownHook{Name: name, Priority: 10, Fn: shutdownFn}
}

// TemporalWorkerShutdownHook stops the Temporal worker after traffic.
func TemporalWorkerShutdownHook(stopFn func()) ShutdownHook {
	return ShutdownHook{
		Name:     "temporal-worker",
		Priority: 20,
		Fn: func(ctx context.Context) error {
			stopFn()
			return nil
		},
	}
}

// TracingShutdownHook flushes the tracer provider.
func TracingShutdownHook(shutdownFn func(ctx context.Context) error) ShutdownHook {
	return ShutdownHook{Name: "tracing", Priority: 80, Fn: shutdownFn}
}

// VectorStoreShutdownHook closes the vector store late, after workers.
func VectorStoreShutdownHook(closeFn func() error) ShutdownHook {
	return ShutdownHook{
		Name:     "vector-store",
		Priority: 90,
		Fn: func(ctx context.Context) error {
			return closeFn()
		},
	}
}

// AuditLoggerShutdownHook closes the audit log last so it captures the
// shutdown itself.
func AuditLoggerShutdownHook(closeFn func() error) ShutdownHook {
	return ShutdownHook{
		Name:     "audit-logger",
		Priority: 95,
		Fn: func(ctx context.Context) error {
			return closeFn()
		},
	}
}

// GracefulServer pairs a standalone health server with shutdown handling.
type GracefulServer struct {
	Health   *HealthServer
	Shutdown *ShutdownHandler
}

// NewGracefulServer wires the health server into the shutdown sequence:
// readiness drops as soon as shutdown begins, and the probe server itself
// stops first.
func NewGracefulServer(healthConfig *HealthConfig, shutdownConfig *ShutdownConfig) *GracefulServer {
	health := NewHealthServer(healthConfig)
	shutdown := NewShutdownHandler(shutdownConfig)

	shutdown.RegisterHook("health-server", 5, func(ctx context.Context) error {
		health.Shutdown()
		return nil
	})

	go func() {
		<-shutdown.ShutdownCh()
		health.SetReady(false)
	}()

	return &GracefulServer{Health: health, Shutdown: shutdown}
}

// Start launches the probe server and signal listener, then marks ready.
func (g *GracefulServer) Start(addr string) error {
	g.Shutdown.Start()
	go g.Health.ListenAndServe(addr)
	g.Health.SetReady(true)
	return nil
}

// Wait blocks until shutdown completes.
func (g *GracefulServer) Wait() {
	g.Shutdown.Wait()
}

// RegisterHook adds a shutdown hook.
func (g *GracefulServer) RegisterHook(name string, priority int, fn func(ctx context.Context) error) {
	g.Shutdown.RegisterHook(name, priority, fn)
}
