package pool

import (
	"github.com/joeycumines/logiface"
)

type poolOptions struct {
	logger *logiface.Logger[logiface.Event]
	name   string
}

// Option configures a Pool or Monitor.
type Option interface {
	applyPool(*poolOptions) error
}

type optionImpl struct {
	applyPoolFunc func(*poolOptions) error
}

func (o *optionImpl) applyPool(opts *poolOptions) error {
	return o.applyPoolFunc(opts)
}

// WithLogger sets the structured logger. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *poolOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithName labels log output.
func WithName(name string) Option {
	return &optionImpl{func(opts *poolOptions) error {
		opts.name = name
		return nil
	}}
}

func resolveOptions(opts []Option) (*poolOptions, error) {
	cfg := new(poolOptions)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyPool(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
