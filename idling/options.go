package idling

import (
	"errors"
	"time"

	"github.com/joeycumines/logiface"
)

// DefaultRacePollInterval is how often busy resources are re-polled while a
// notification is pending.
const DefaultRacePollInterval = 100 * time.Millisecond

type registryOptions struct {
	logger           *logiface.Logger[logiface.Event]
	policies         *Policies
	racePollInterval time.Duration
}

// RegistryOption configures a Registry.
type RegistryOption interface {
	applyRegistry(*registryOptions) error
}

type registryOptionImpl struct {
	applyRegistryFunc func(*registryOptions) error
}

func (o *registryOptionImpl) applyRegistry(opts *registryOptions) error {
	return o.applyRegistryFunc(opts)
}

// WithLogger sets the structured logger. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) RegistryOption {
	return &registryOptionImpl{func(opts *registryOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithPolicies shares a policy set, typically with the controller. By
// default the registry uses its own [NewPolicies].
func WithPolicies(policies *Policies) RegistryOption {
	return &registryOptionImpl{func(opts *registryOptions) error {
		opts.policies = policies
		return nil
	}}
}

// WithRacePollInterval overrides [DefaultRacePollInterval].
func WithRacePollInterval(d time.Duration) RegistryOption {
	return &registryOptionImpl{func(opts *registryOptions) error {
		if d <= 0 {
			return errors.New("idling: race poll interval must be positive")
		}
		opts.racePollInterval = d
		return nil
	}}
}

func resolveRegistryOptions(opts []RegistryOption) (*registryOptions, error) {
	cfg := &registryOptions{
		racePollInterval: DefaultRacePollInterval,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyRegistry(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.policies == nil {
		cfg.policies = NewPolicies()
	}
	return cfg, nil
}
