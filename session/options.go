package session

import (
	"errors"
	"time"

	"github.com/joeycumines/go-uisync/idling"
	"github.com/joeycumines/go-uisync/inject"
	"github.com/joeycumines/logiface"
)

// DefaultPoolSize is the worker count of the default background pool.
const DefaultPoolSize = 4

type sessionOptions struct {
	logger           *logiface.Logger[logiface.Event]
	policies         *idling.Policies
	strategy         inject.DeliveryStrategy
	target           inject.InputTarget
	keyMap           inject.KeyCharacterMap
	clock            func() time.Time
	poolSizes        []int
	lookahead        time.Duration
	racePollInterval time.Duration
	maxEventAge      time.Duration
	maxKeyAttempts   int
	loggerSet        bool
}

// Option configures a Session.
type Option interface {
	applySession(*sessionOptions) error
}

type optionImpl struct {
	applySessionFunc func(*sessionOptions) error
}

func (o *optionImpl) applySession(opts *sessionOptions) error {
	return o.applySessionFunc(opts)
}

// WithLogger sets the logger shared by every component. A nil logger
// disables logging. Defaults to JSON on stderr, at warning level.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *sessionOptions) error {
		opts.logger = logger
		opts.loggerSet = true
		return nil
	}}
}

// WithPolicies sets the policy set shared by the registry and controller.
func WithPolicies(policies *idling.Policies) Option {
	return &optionImpl{func(opts *sessionOptions) error {
		opts.policies = policies
		return nil
	}}
}

// WithDeliveryStrategy sets how events are delivered. Exclusive with
// WithInputTarget.
func WithDeliveryStrategy(strategy inject.DeliveryStrategy) Option {
	return &optionImpl{func(opts *sessionOptions) error {
		if strategy == nil {
			return errors.New("session: nil delivery strategy")
		}
		opts.strategy = strategy
		return nil
	}}
}

// WithInputTarget delivers events to target on the looper, via
// [inject.WindowDelivery]. Exclusive with WithDeliveryStrategy.
func WithInputTarget(target inject.InputTarget) Option {
	return &optionImpl{func(opts *sessionOptions) error {
		if target == nil {
			return errors.New("session: nil input target")
		}
		opts.target = target
		return nil
	}}
}

// WithMaxEventAge sets [inject.WindowDelivery.MaxEventAge].
func WithMaxEventAge(d time.Duration) Option {
	return &optionImpl{func(opts *sessionOptions) error {
		opts.maxEventAge = d
		return nil
	}}
}

// WithBackgroundPools sets the worker counts of the monitored background
// pools, at most two. Defaults to one pool of [DefaultPoolSize].
func WithBackgroundPools(sizes ...int) Option {
	return &optionImpl{func(opts *sessionOptions) error {
		if len(sizes) > 2 {
			return errors.New("session: at most two background pools")
		}
		opts.poolSizes = sizes
		return nil
	}}
}

// WithDueSoonLookahead configures the looper's due-soon window.
func WithDueSoonLookahead(d time.Duration) Option {
	return &optionImpl{func(opts *sessionOptions) error {
		opts.lookahead = d
		return nil
	}}
}

// WithRacePollInterval configures the registry's race poller.
func WithRacePollInterval(d time.Duration) Option {
	return &optionImpl{func(opts *sessionOptions) error {
		opts.racePollInterval = d
		return nil
	}}
}

// WithKeyCharacterMap sets the map used to type strings.
func WithKeyCharacterMap(keyMap inject.KeyCharacterMap) Option {
	return &optionImpl{func(opts *sessionOptions) error {
		opts.keyMap = keyMap
		return nil
	}}
}

// WithMaxKeyAttempts bounds the attempts made per typed key event.
func WithMaxKeyAttempts(n int) Option {
	return &optionImpl{func(opts *sessionOptions) error {
		opts.maxKeyAttempts = n
		return nil
	}}
}

// WithClock sets the time source used to stamp events.
func WithClock(clock func() time.Time) Option {
	return &optionImpl{func(opts *sessionOptions) error {
		opts.clock = clock
		return nil
	}}
}

func resolveOptions(opts []Option) (*sessionOptions, error) {
	cfg := &sessionOptions{
		poolSizes: []int{DefaultPoolSize},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applySession(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.strategy != nil && cfg.target != nil {
		return nil, errors.New("session: both a delivery strategy and an input target were given")
	}
	if cfg.strategy == nil && cfg.target == nil {
		return nil, errors.New("session: a delivery strategy or input target is required")
	}
	if !cfg.loggerSet {
		cfg.logger = defaultLogger()
	}
	return cfg, nil
}
