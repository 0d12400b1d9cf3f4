package client

import (
	"context"
)

// Opener establishes a session.
type Opener func(ctx context.Context) (Session, error)

// OpenTarget delivers an Opener that dials target and establishes a session with cfg.
func OpenTarget(target *Target, cfg *Config) Opener {
	return func(ctx context.Context) (Session, error) {
		return Open(ctx, target, cfg)
	}
}

// WithSession opens a session, runs body with it and closes it. The session is
// closed on every exit path, including a panic in body, which is propagated
// once the session has been closed. The error returned by body takes
// precedence over an error closing the session.
func WithSession(ctx context.Context, open Opener, body func(s Session) error) (err error) {
	s, err := open(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = s.Close()
			panic(r)
		}
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()

	return body(s)
}
