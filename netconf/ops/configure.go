package ops

import (
	"context"

	"github.com/damianoneill/ncclient/netconf/client"
)

// ConfigureOption qualifies a Configure sequence.
type ConfigureOption func(*configureOptions)

type configureOptions struct {
	datastore string
	validate  bool
	edit      []EditOption
	commit    []CommitOption
}

// OnDatastore applies the configuration to datastore: candidate (the default)
// is edited, validated and committed; any other datastore is edited directly.
func OnDatastore(datastore string) ConfigureOption {
	return func(o *configureOptions) {
		o.datastore = datastore
	}
}

// WithoutValidate skips the validate step, for servers without the validate capability.
func WithoutValidate() ConfigureOption {
	return func(o *configureOptions) {
		o.validate = false
	}
}

// WithEditOptions qualifies the edit-config step.
func WithEditOptions(options ...EditOption) ConfigureOption {
	return func(o *configureOptions) {
		o.edit = append(o.edit, options...)
	}
}

// WithCommitOptions qualifies the commit step.
func WithCommitOptions(options ...CommitOption) ConfigureOption {
	return func(o *configureOptions) {
		o.commit = append(o.commit, options...)
	}
}

// Configure applies config under a lock: lock, edit-config, validate, commit
// and unlock, omitting validate and commit when the target is not the candidate
// datastore. If a step fails once the lock is held, pending candidate changes
// are discarded and the lock released before the error of the failing step is
// returned. Failures of that clean up are reported to the trace hooks in ctx.
func Configure(ctx context.Context, s OpSession, config ConfigOption, options ...ConfigureOption) error {
	opts := &configureOptions{datastore: CandidateCfg, validate: true}
	for _, opt := range options {
		opt(opts)
	}
	candidate := opts.datastore == CandidateCfg

	if _, err := s.Lock(ctx, opts.datastore); err != nil {
		return err
	}

	steps := []func() error{
		func() error { return s.EditConfig(ctx, opts.datastore, config, opts.edit...) },
	}
	if candidate && opts.validate {
		steps = append(steps, func() error { return s.Validate(ctx, DsName(CandidateCfg)) })
	}
	if candidate {
		steps = append(steps, func() error { return s.Commit(ctx, opts.commit...) })
	}

	for _, step := range steps {
		if err := step(); err != nil {
			rollback(ctx, s, opts.datastore, candidate)
			return err
		}
	}

	_, err := s.Unlock(ctx, opts.datastore)
	return err
}

func rollback(ctx context.Context, s OpSession, datastore string, candidate bool) {
	trace := client.ContextClientTrace(ctx)
	if candidate {
		if err := s.Discard(ctx); err != nil {
			trace.Error("discard-changes", datastore, err)
		}
	}
	if _, err := s.Unlock(ctx, datastore); err != nil {
		trace.Error("unlock", datastore, err)
	}
}
