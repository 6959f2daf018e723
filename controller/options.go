// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package controller

import (
	"errors"

	"github.com/joeycumines/go-uisync/idling"
	"github.com/joeycumines/go-uisync/inject"
	"github.com/joeycumines/go-uisync/pool"
	"github.com/joeycumines/logiface"
)

// DefaultMaxKeyAttempts bounds the attempts made per key event by
// InjectString.
const DefaultMaxKeyAttempts = 4

// maxIdleMonitors is the number of background pool conditions.
const maxIdleMonitors = 2

type controllerOptions struct {
	logger         *logiface.Logger[logiface.Event]
	policies       *idling.Policies
	keyMap         inject.KeyCharacterMap
	executor       *pool.Pool
	monitors       []IdleMonitor
	maxKeyAttempts int
}

// Option configures a Controller.
type Option interface {
	applyController(*controllerOptions) error
}

type optionImpl struct {
	applyControllerFunc func(*controllerOptions) error
}

func (o *optionImpl) applyController(opts *controllerOptions) error {
	return o.applyControllerFunc(opts)
}

// WithLogger sets the structured logger. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *controllerOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithPolicies sets the policy set. Defaults to the registry's, if it
// exposes one, otherwise [idling.NewPolicies].
func WithPolicies(policies *idling.Policies) Option {
	return &optionImpl{func(opts *controllerOptions) error {
		opts.policies = policies
		return nil
	}}
}

// WithIdleMonitor adds a background pool monitor. At most two may be
// configured; the first signals [BackgroundPool0Idled], the second
// [BackgroundPool1Idled].
func WithIdleMonitor(monitor IdleMonitor) Option {
	return &optionImpl{func(opts *controllerOptions) error {
		if monitor == nil {
			return errors.New("controller: nil idle monitor")
		}
		if len(opts.monitors) == maxIdleMonitors {
			return errors.New("controller: too many idle monitors")
		}
		opts.monitors = append(opts.monitors, monitor)
		return nil
	}}
}

// WithKeyCharacterMap sets the map used by InjectString. Defaults to
// [inject.USKeyCharacterMap].
func WithKeyCharacterMap(keyMap inject.KeyCharacterMap) Option {
	return &optionImpl{func(opts *controllerOptions) error {
		opts.keyMap = keyMap
		return nil
	}}
}

// WithInjectionExecutor sets the pool injections run on. It should have a
// single worker, and must not be one of the monitored pools. The caller
// retains ownership. By default the controller starts its own.
func WithInjectionExecutor(executor *pool.Pool) Option {
	return &optionImpl{func(opts *controllerOptions) error {
		opts.executor = executor
		return nil
	}}
}

// WithMaxKeyAttempts overrides [DefaultMaxKeyAttempts].
func WithMaxKeyAttempts(n int) Option {
	return &optionImpl{func(opts *controllerOptions) error {
		if n < 1 {
			return errors.New("controller: max key attempts must be at least 1")
		}
		opts.maxKeyAttempts = n
		return nil
	}}
}

func resolveOptions(opts []Option) (*controllerOptions, error) {
	cfg := &controllerOptions{
		keyMap:         inject.USKeyCharacterMap{},
		maxKeyAttempts: DefaultMaxKeyAttempts,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyController(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.keyMap == nil {
		cfg.keyMap = inject.USKeyCharacterMap{}
	}
	return cfg, nil
}
