// Package ratelimit guards the capability-token endpoint against credential
// guessing. It is a narrow probe lockout, not a general rate limiter: only
// failed validations count, and a success clears the counter.
package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Config bounds the failure budget. Defaults allow ordinary link mistypes
// while making 256-bit token guessing hopeless long before the lockout ever
// matters.
type Config struct {
	MaxFailures int
	Window      time.Duration
	LockFor     time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxFailures: 10,
		Window:      15 * time.Minute,
		LockFor:     15 * time.Minute,
	}
}

// Lockout is one client's failure record.
type Lockout struct {
	Key            string
	FailureCount   int
	FirstFailureAt time.Time
	LastFailureAt  time.Time
	LockedUntil    *time.Time
}

// Store persists failure counters. Implementations must expire records on
// their own (TTL in redis, sweep in memory).
type Store interface {
	RecordFailure(ctx context.Context, key string, cfg Config) (*Lockout, error)
	Get(ctx context.Context, key string) (*Lockout, error)
	Clear(ctx context.Context, key string) error
}

// Result reports whether the client may proceed.
type Result struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Service evaluates and records probe failures per client key (remote IP).
type Service struct {
	store  Store
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithConfig(cfg Config) Option {
	return func(s *Service) { s.cfg = cfg }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, cfg: DefaultConfig(), logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check reports whether the client is currently locked out. Store failures
// fail open: the token endpoint is always-public and the tokens themselves
// carry the real security.
func (s *Service) Check(ctx context.Context, key string) Result {
	rec, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn("lockout store unavailable, failing open", "error", err)
		return Result{Allowed: true}
	}
	if rec == nil {
		return Result{Allowed: true}
	}

	now := s.now()
	if rec.LockedUntil != nil && now.Before(*rec.LockedUntil) {
		return Result{Allowed: false, RetryAfter: rec.LockedUntil.Sub(now)}
	}
	if rec.FailureCount >= s.cfg.MaxFailures && now.Sub(rec.FirstFailureAt) < s.cfg.Window {
		return Result{Allowed: false, RetryAfter: s.cfg.Window - now.Sub(rec.FirstFailureAt)}
	}
	return Result{Allowed: true}
}

// RecordFailure charges one failed validation against the client.
func (s *Service) RecordFailure(ctx context.Context, key string) {
	rec, err := s.store.RecordFailure(ctx, key, s.cfg)
	if err != nil {
		s.logger.Warn("failed to record probe failure", "error", err)
		return
	}
	if rec != nil && rec.FailureCount == s.cfg.MaxFailures {
		s.logger.Warn("token probe lockout engaged",
			"key", key,
			"failures", rec.FailureCount,
		)
	}
}

// Clear resets the counter after a successful validation.
func (s *Service) Clear(ctx context.Context, key string) {
	if err := s.store.Clear(ctx, key); err != nil {
		s.logger.Warn("failed to clear probe counter", "error", err)
	}
}
