package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/joeycumines/go-uisync/controller"
	"github.com/joeycumines/go-uisync/idling"
	"github.com/joeycumines/go-uisync/inject"
	"github.com/joeycumines/go-uisync/looper"
	"github.com/joeycumines/go-uisync/pool"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

var (
	// ErrStarted is returned by Start if the session was already started.
	ErrStarted = errors.New("session: already started")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session: closed")
)

// Session owns one looper and everything synchronised against it.
type Session struct {
	logger     *logiface.Logger[logiface.Event]
	loop       *looper.Looper
	registry   *idling.Registry
	injector   *inject.Injector
	controller *controller.Controller
	runErr     chan error
	pools      []*pool.Pool
	monitors   []*pool.Monitor
	mu         sync.Mutex
	started    bool
	closed     bool
}

func defaultLogger() *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(os.Stderr)),
		stumpy.L.WithLevel(logiface.LevelWarning),
	).Logger()
}

// New builds a session. The looper does not run until Start.
func New(opts ...Option) (*Session, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	s := &Session{
		logger: cfg.logger,
		runErr: make(chan error, 1),
	}
	success := false
	defer func() {
		if !success {
			s.release()
		}
	}()

	loopOpts := []looper.Option{looper.WithLogger(cfg.logger)}
	if cfg.lookahead != 0 {
		loopOpts = append(loopOpts, looper.WithDueSoonLookahead(cfg.lookahead))
	}
	if s.loop, err = looper.New(loopOpts...); err != nil {
		return nil, err
	}

	registryOpts := []idling.RegistryOption{idling.WithLogger(cfg.logger), idling.WithPolicies(cfg.policies)}
	if cfg.racePollInterval != 0 {
		registryOpts = append(registryOpts, idling.WithRacePollInterval(cfg.racePollInterval))
	}
	if s.registry, err = idling.NewRegistry(s.loop, registryOpts...); err != nil {
		return nil, err
	}

	controllerOpts := []controller.Option{
		controller.WithLogger(cfg.logger),
		controller.WithKeyCharacterMap(cfg.keyMap),
	}
	if cfg.maxKeyAttempts != 0 {
		controllerOpts = append(controllerOpts, controller.WithMaxKeyAttempts(cfg.maxKeyAttempts))
	}
	for i, size := range cfg.poolSizes {
		name := fmt.Sprintf("background-%d", i)
		p, err := pool.New(size, pool.WithName(name), pool.WithLogger(cfg.logger))
		if err != nil {
			return nil, err
		}
		s.pools = append(s.pools, p)
		m, err := pool.NewMonitor(p)
		if err != nil {
			return nil, err
		}
		s.monitors = append(s.monitors, m)
		controllerOpts = append(controllerOpts, controller.WithIdleMonitor(m))
	}

	strategy := cfg.strategy
	if strategy == nil {
		delivery, err := inject.NewWindowDelivery(s.loop, cfg.target)
		if err != nil {
			return nil, err
		}
		delivery.MaxEventAge = cfg.maxEventAge
		delivery.Clock = cfg.clock
		strategy = delivery
	}
	injectorOpts := []inject.Option{inject.WithLogger(cfg.logger)}
	if cfg.clock != nil {
		injectorOpts = append(injectorOpts, inject.WithClock(cfg.clock))
	}
	if s.injector, err = inject.NewInjector(strategy, injectorOpts...); err != nil {
		return nil, err
	}

	if s.controller, err = controller.New(s.loop, s.injector, s.registry, controllerOpts...); err != nil {
		return nil, err
	}

	success = true
	return s, nil
}

// Start runs the looper on a new goroutine.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.started {
		return ErrStarted
	}
	s.started = true
	go func() {
		s.runErr <- s.loop.Run(context.Background())
	}()
	s.logger.Info().
		Int(`pools`, len(s.pools)).
		Log(`session: started`)
	return nil
}

// RunOnMain runs fn on the looper goroutine and waits for it, returning its
// error. A panic in fn is returned as a [*looper.PanicError].
func (s *Session) RunOnMain(ctx context.Context, fn func(ctx context.Context, c *controller.Controller) error) error {
	if fn == nil {
		return looper.ErrNilTask
	}
	return s.loop.RunSync(ctx, func() error {
		return fn(ctx, s.controller)
	})
}

// RegisterIdlingResources adds resources to the registry. It reports whether
// every resource was added; duplicates by name are ignored.
func (s *Session) RegisterIdlingResources(ctx context.Context, resources ...idling.Resource) (bool, error) {
	return s.registry.Register(ctx, resources...)
}

// Policies returns the policy set, mutable at any time.
func (s *Session) Policies() *idling.Policies { return s.controller.Policies() }

// Controller returns the controller. Its primitives must be called via
// RunOnMain.
func (s *Session) Controller() *controller.Controller { return s.controller }

// Looper returns the main looper.
func (s *Session) Looper() *looper.Looper { return s.loop }

// Registry returns the idling resource registry.
func (s *Session) Registry() *idling.Registry { return s.registry }

// Injector returns the event injector.
func (s *Session) Injector() *inject.Injector { return s.injector }

// Pool returns the i'th background pool, or nil.
func (s *Session) Pool(i int) *pool.Pool {
	if i < 0 || i >= len(s.pools) {
		return nil
	}
	return s.pools[i]
}

// Close stops the session in reverse construction order: the injection
// executor, the background pools, then the looper.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	started := s.started
	s.mu.Unlock()

	var errs []error
	if err := s.controller.Close(); err != nil {
		errs = append(errs, err)
	}
	for _, m := range s.monitors {
		m.CancelIdleMonitor()
	}
	for _, p := range s.pools {
		if err := p.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.loop.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	} else if started {
		if err := <-s.runErr; err != nil {
			errs = append(errs, err)
		}
	}

	s.logger.Info().Log(`session: closed`)
	return errors.Join(errs...)
}

// release cleans up after a failed New.
func (s *Session) release() {
	if s.controller != nil {
		_ = s.controller.Close()
	}
	for _, p := range s.pools {
		_ = p.Close()
	}
	if s.loop != nil {
		_ = s.loop.Close()
	}
}
