package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/example/push-dispatcher/internal/apperr"
	"github.com/example/push-dispatcher/internal/common"
	"github.com/example/push-dispatcher/internal/dispatcher"
	"github.com/example/push-dispatcher/internal/events"
	"github.com/example/push-dispatcher/internal/expo"
	"github.com/example/push-dispatcher/internal/recipients"
	"github.com/example/push-dispatcher/internal/secrets"
)

type Outcome int

const (
	OutcomeNoRecipients Outcome = iota + 1
	OutcomeSent
)

// ConfigFetcher returns a fresh Secret Set on every call.
type ConfigFetcher interface {
	Fetch(ctx context.Context) (secrets.Set, error)
}

// SenderFactory builds the provider client from the provider access token.
type SenderFactory func(accessToken string) dispatcher.Sender

// Pipeline runs one invocation: resolve config, resolve recipients, build
// messages, fan out, aggregate. It keeps no state between runs.
type Pipeline struct {
	Secrets        ConfigFetcher
	NewSender      SenderFactory
	Open           recipients.Opener
	ScheduledTitle string
	ScheduledBody  string
	Publisher      events.Publisher
	Logger         zerolog.Logger
}

func NewPipeline(fetcher ConfigFetcher, newSender SenderFactory, open recipients.Opener, cfg *common.Config, publisher events.Publisher, logger zerolog.Logger) *Pipeline {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Pipeline{
		Secrets:        fetcher,
		NewSender:      newSender,
		Open:           open,
		ScheduledTitle: cfg.ScheduledTitle,
		ScheduledBody:  cfg.ScheduledBody,
		Publisher:      publisher,
		Logger:         logger,
	}
}

// Scheduled is the store-backed source with the operator's fixed copy.
func (p *Pipeline) Scheduled() recipients.Stored {
	return recipients.Stored{Open: p.Open, Title: p.ScheduledTitle, Body: p.ScheduledBody}
}

func (p *Pipeline) RunScheduled(ctx context.Context) (Outcome, error) {
	return p.Run(ctx, p.Scheduled())
}

// Run executes the pipeline for src. Any failed send fails the whole run.
func (p *Pipeline) Run(ctx context.Context, src recipients.Source) (Outcome, error) {
	invocationID := uuid.NewString()
	ctx, span := otel.Tracer("gate").Start(ctx, "pipeline")
	defer span.End()
	span.SetAttributes(
		attribute.String("invocation.id", invocationID),
		attribute.String("invocation.trigger", src.Trigger()),
	)
	logger := common.WithContext(ctx, p.Logger).With().
		Str("invocation_id", invocationID).
		Str("trigger", src.Trigger()).
		Logger()

	set, err := p.Secrets.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	accessToken, err := set.Get(secrets.KeyProviderAccessToken)
	if err != nil {
		return 0, err
	}

	resolveCtx, resolveSpan := otel.Tracer("gate").Start(ctx, "resolve_recipients")
	notification, err := src.Resolve(resolveCtx, set)
	resolveSpan.End()
	if err != nil {
		return 0, err
	}

	if len(notification.Tokens) == 0 {
		logger.Info().Msg("no push tokens found, skipping notification")
		return OutcomeNoRecipients, nil
	}

	logger.Info().Int("recipients", len(notification.Tokens)).Msg("building push notifications")
	messages, err := expo.BuildMessages(notification.Title, notification.Body, notification.Tokens)
	if err != nil {
		return 0, err
	}

	d := dispatcher.New(p.NewSender(accessToken), logger)
	outcomes := d.SendAll(ctx, messages)
	summary := dispatcher.Summarize(outcomes)
	p.publish(ctx, logger, invocationID, src.Trigger(), summary)

	if summary.Failed > 0 {
		return 0, apperr.New(apperr.KindSendFailure, "",
			fmt.Errorf("%d of %d sends failed", summary.Failed, summary.Total))
	}
	logger.Info().Int("sent", summary.Succeeded).Msg("push notifications sent successfully")
	return OutcomeSent, nil
}

func (p *Pipeline) publish(ctx context.Context, logger zerolog.Logger, invocationID, trigger string, s dispatcher.Summary) {
	outcome := events.OutcomeSent
	if s.Failed > 0 {
		outcome = events.OutcomeFailed
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.Publisher.Publish(ctx, events.Summary{
		InvocationID: invocationID,
		Trigger:      trigger,
		Recipients:   s.Total,
		Succeeded:    s.Succeeded,
		Failed:       s.Failed,
		Outcome:      outcome,
		EmittedAt:    time.Now().UTC(),
	}); err != nil {
		logger.Error().Err(err).Msg("failed to publish dispatch summary")
	}
}
