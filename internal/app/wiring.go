// Package app wires the production collaborators shared by the binaries.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog"

	"github.com/example/push-dispatcher/internal/common"
	"github.com/example/push-dispatcher/internal/dispatcher"
	"github.com/example/push-dispatcher/internal/events"
	"github.com/example/push-dispatcher/internal/expo"
	"github.com/example/push-dispatcher/internal/gate"
	"github.com/example/push-dispatcher/internal/recipients"
	"github.com/example/push-dispatcher/internal/secrets"
)

// BuildPipeline constructs the dispatch pipeline. The returned close func
// releases the event writer, if any.
func BuildPipeline(ctx context.Context, cfg *common.Config, logger zerolog.Logger) (*gate.Pipeline, func(), error) {
	var opts []func(*config.LoadOptions) error
	if cfg.AWSRegion != "" {
		opts = append(opts, config.WithRegion(cfg.AWSRegion))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("load aws config: %w", err)
	}
	resolver := secrets.NewResolver(ssm.NewFromConfig(awsCfg), cfg.ParameterPath, logger)

	publisher, closePublisher := NewPublisher(cfg)
	open := recipients.NewOpener(cfg.RecipientTable, cfg.RecipientColumn, &http.Client{Timeout: cfg.ProviderTimeout})

	p := gate.NewPipeline(resolver, SenderFactory(cfg), open, cfg, publisher, logger)
	return p, closePublisher, nil
}

// SenderFactory returns a factory building an Expo client per invocation.
func SenderFactory(cfg *common.Config) gate.SenderFactory {
	return func(accessToken string) dispatcher.Sender {
		return expo.NewClient(cfg.ExpoPushURL, accessToken, cfg.ProviderTimeout)
	}
}

// NewPublisher returns a Kafka publisher when brokers are configured.
func NewPublisher(cfg *common.Config) (events.Publisher, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		return events.Nop{}, func() {}
	}
	w := events.NewKafkaWriter(cfg.KafkaBrokers, cfg.DispatchTopic)
	return &events.KafkaPublisher{Writer: w}, func() { _ = w.Close() }
}
