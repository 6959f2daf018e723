// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package looper

import (
	"time"

	"github.com/joeycumines/logiface"
)

// DefaultDueSoonLookahead is the window within which a pending head message
// is classified as [TaskDueSoon] rather than [TaskDueLong].
const DefaultDueSoonLookahead = 15 * time.Millisecond

// looperOptions holds configuration options for Looper creation.
type looperOptions struct {
	logger    *logiface.Logger[logiface.Event]
	lookahead time.Duration
}

// Option configures a Looper instance.
type Option interface {
	applyLooper(*looperOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyLooperFunc func(*looperOptions) error
}

func (o *optionImpl) applyLooper(opts *looperOptions) error {
	return o.applyLooperFunc(opts)
}

// WithLogger sets the structured logger. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *looperOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithDueSoonLookahead overrides [DefaultDueSoonLookahead]. Larger values
// drain near-future work more eagerly, at the cost of spinning on timers
// that are about to fire.
func WithDueSoonLookahead(d time.Duration) Option {
	return &optionImpl{func(opts *looperOptions) error {
		if d < 0 {
			return ErrInvalidLookahead
		}
		opts.lookahead = d
		return nil
	}}
}

// resolveOptions applies options over the defaults. Nil options are skipped.
func resolveOptions(opts []Option) (*looperOptions, error) {
	cfg := &looperOptions{
		lookahead: DefaultDueSoonLookahead,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyLooper(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
