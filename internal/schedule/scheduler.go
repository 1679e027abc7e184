// Package schedule fires the scheduled trigger from an in-process cron.
package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/example/push-dispatcher/internal/apperr"
	"github.com/example/push-dispatcher/internal/gate"
)

// Runner runs one scheduled invocation.
type Runner interface {
	RunScheduled(ctx context.Context) (gate.Outcome, error)
}

type Scheduler struct {
	runner Runner
	spec   string
	loc    *time.Location
	logger zerolog.Logger
	parser cron.Parser
	c      *cron.Cron
}

func New(runner Runner, spec, timezone string, logger zerolog.Logger) (*Scheduler, error) {
	loc := time.UTC
	if tz := strings.TrimSpace(timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", tz, err)
		}
		loc = l
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(spec); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return &Scheduler{runner: runner, spec: spec, loc: loc, logger: logger, parser: parser}, nil
}

// Start registers the job and runs the cron until ctx is done. A run that is
// still in flight when the next tick arrives makes that tick a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.c = cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(s.loc),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.logger})),
	)
	if _, err := s.c.AddFunc(s.spec, func() { s.Fire(ctx) }); err != nil {
		return fmt.Errorf("register schedule: %w", err)
	}
	s.c.Start()
	s.logger.Info().Str("spec", s.spec).Str("tz", s.loc.String()).Msg("scheduler started")
	return nil
}

func (s *Scheduler) Stop() {
	if s.c == nil {
		return
	}
	<-s.c.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}

// Fire runs the scheduled pipeline once and logs its outcome.
func (s *Scheduler) Fire(ctx context.Context) {
	start := time.Now()
	outcome, err := s.runner.RunScheduled(ctx)
	elapsed := time.Since(start)
	if err != nil {
		s.logger.Error().Err(err).Str("kind", apperr.KindOf(err).String()).
			Dur("elapsed", elapsed).Msg("scheduled dispatch failed")
		return
	}
	switch outcome {
	case gate.OutcomeNoRecipients:
		s.logger.Info().Dur("elapsed", elapsed).Msg("scheduled dispatch found no push tokens")
	case gate.OutcomeSent:
		s.logger.Info().Dur("elapsed", elapsed).Msg("scheduled dispatch sent")
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	z zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.z.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.z.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
