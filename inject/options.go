package inject

import (
	"time"

	"github.com/joeycumines/logiface"
)

type injectorOptions struct {
	logger     *logiface.Logger[logiface.Event]
	clock      func() time.Time
	fromSystem bool
}

// Option configures an Injector.
type Option interface {
	applyInjector(*injectorOptions) error
}

type optionImpl struct {
	applyInjectorFunc func(*injectorOptions) error
}

func (o *optionImpl) applyInjector(opts *injectorOptions) error {
	return o.applyInjectorFunc(opts)
}

// WithLogger sets the structured logger. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *injectorOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithClock overrides the time source used to fill in unset timestamps.
func WithClock(clock func() time.Time) Option {
	return &optionImpl{func(opts *injectorOptions) error {
		if clock == nil {
			clock = time.Now
		}
		opts.clock = clock
		return nil
	}}
}

// WithFromSystem controls whether [FlagFromSystem] is set on every event.
// Defaults to true.
func WithFromSystem(enabled bool) Option {
	return &optionImpl{func(opts *injectorOptions) error {
		opts.fromSystem = enabled
		return nil
	}}
}

func resolveOptions(opts []Option) (*injectorOptions, error) {
	cfg := &injectorOptions{
		clock:      time.Now,
		fromSystem: true,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyInjector(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
