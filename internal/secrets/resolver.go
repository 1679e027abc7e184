// Package secrets resolves the per-invocation Secret Set from AWS SSM
// Parameter Store.
package secrets

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/example/push-dispatcher/internal/apperr"
	"github.com/example/push-dispatcher/internal/common"
)

const (
	KeyStoreURL            = "store-url"
	KeyStoreKey            = "store-key"
	KeyProviderAccessToken = "provider-access-token"
)

// aliases maps legacy parameter leaf names onto the canonical keys.
var aliases = map[string]string{
	"supabase-url":      KeyStoreURL,
	"supabase-key":      KeyStoreKey,
	"expo-access-token": KeyProviderAccessToken,
}

var fetchCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "secrets_fetch_total",
	Help: "Parameter store bulk reads by result",
}, []string{"result"})

// ParametersAPI is the part of the SSM client the resolver calls.
type ParametersAPI interface {
	GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
}

// Set is an immutable mapping of short key names to values.
type Set struct {
	values map[string]string
}

func NewSet(values map[string]string) Set {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return Set{values: copied}
}

// Get returns the value under key or a MissingSecret error.
func (s Set) Get(key string) (string, error) {
	v, ok := s.values[key]
	if !ok {
		return "", apperr.MissingSecret(key)
	}
	return v, nil
}

func (s Set) Len() int { return len(s.values) }

type Resolver struct {
	client ParametersAPI
	path   string
	logger zerolog.Logger
}

func NewResolver(client ParametersAPI, path string, logger zerolog.Logger) *Resolver {
	return &Resolver{client: client, path: path, logger: logger}
}

// Fetch issues one decrypted bulk read under the configured path. Results are
// not paginated: a truncated response is accepted as is. Nothing is cached.
func (r *Resolver) Fetch(ctx context.Context) (Set, error) {
	if r.path == "" {
		return Set{}, apperr.MissingEnvVar("SSM_PARAMETER_PATH")
	}

	ctx, span := otel.Tracer("secrets").Start(ctx, "fetch_config")
	defer span.End()
	span.SetAttributes(attribute.String("ssm.path", r.path))
	logger := common.WithContext(ctx, r.logger)

	out, err := r.client.GetParametersByPath(ctx, &ssm.GetParametersByPathInput{
		Path:           aws.String(r.path),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get parameters by path")
		fetchCounter.WithLabelValues("error").Inc()
		logger.Error().Err(err).Str("path", r.path).Msg("failed to get parameters from ssm")
		return Set{}, apperr.New(apperr.KindConfigFetch, r.path, err)
	}
	if out.NextToken != nil {
		logger.Warn().Str("path", r.path).Msg("parameter listing truncated, remaining pages ignored")
	}

	values := make(map[string]string, len(out.Parameters))
	for _, p := range out.Parameters {
		if p.Name == nil || p.Value == nil {
			continue
		}
		key := normalize(LeafKey(*p.Name))
		values[key] = *p.Value
		logger.Debug().Str("parameter", *p.Name).Str("key", key).Msg("fetched parameter")
	}

	fetchCounter.WithLabelValues("ok").Inc()
	logger.Info().Int("count", len(values)).Msg("fetched secrets from parameter store")
	return Set{values: values}, nil
}

// LeafKey returns the final segment of a hierarchical parameter name.
func LeafKey(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}

func normalize(key string) string {
	if canonical, ok := aliases[key]; ok {
		return canonical
	}
	return key
}
