package dispatcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/example/push-dispatcher/internal/common"
	"github.com/example/push-dispatcher/internal/expo"
)

var (
	sendCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_sends_total",
		Help: "Provider send attempts by result",
	}, []string{"result"})
	sendLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_send_duration_seconds",
		Help:    "Latency of a single provider send",
		Buckets: prometheus.DefBuckets,
	})
)

// Sender delivers one message to the push provider.
type Sender interface {
	Send(ctx context.Context, msg expo.Message) (expo.Ticket, error)
}

// Outcome is the result of one send attempt. It lives only for the duration
// of an invocation.
type Outcome struct {
	Message expo.Message
	Ticket  expo.Ticket
	Err     error
}

func (o Outcome) OK() bool { return o.Err == nil }

type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

func Summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		if o.OK() {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}

// AnyFailed reports whether the batch counts as a failure.
func AnyFailed(outcomes []Outcome) bool {
	for _, o := range outcomes {
		if !o.OK() {
			return true
		}
	}
	return false
}

type Dispatcher struct {
	Sender Sender
	Logger zerolog.Logger
}

func New(sender Sender, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{Sender: sender, Logger: logger}
}

// SendAll starts every send at once and waits for all of them. Outcomes are
// returned in message order. Sends are detached from ctx cancellation and are
// never retried.
func (d *Dispatcher) SendAll(ctx context.Context, messages []expo.Message) []Outcome {
	ctx = context.WithoutCancel(ctx)
	ctx, span := otel.Tracer("dispatcher").Start(ctx, "dispatch")
	defer span.End()
	span.SetAttributes(attribute.Int("dispatch.messages", len(messages)))

	outcomes := make([]Outcome, len(messages))
	var wg sync.WaitGroup
	for i, msg := range messages {
		wg.Add(1)
		go func(i int, msg expo.Message) {
			defer wg.Done()
			outcomes[i] = d.send(ctx, msg)
		}(i, msg)
	}
	wg.Wait()

	logger := common.WithContext(ctx, d.Logger)
	for _, o := range outcomes {
		switch {
		case !o.OK():
			logger.Error().Err(o.Err).Str("to", o.Message.To).Msg("push send failed")
		case !o.Ticket.OK():
			logger.Warn().Str("to", o.Message.To).Str("ticket_status", o.Ticket.Status).
				Str("ticket_message", o.Ticket.Message).Msg("provider returned error ticket")
		default:
			logger.Debug().Str("to", o.Message.To).Str("ticket_id", o.Ticket.ID).Msg("push sent")
		}
	}

	summary := Summarize(outcomes)
	span.SetAttributes(
		attribute.Int("dispatch.succeeded", summary.Succeeded),
		attribute.Int("dispatch.failed", summary.Failed),
	)
	if summary.Failed > 0 {
		span.SetStatus(codes.Error, "some sends failed")
	}
	return outcomes
}

func (d *Dispatcher) send(ctx context.Context, msg expo.Message) (out Outcome) {
	out.Message = msg
	defer func() {
		if r := recover(); r != nil {
			out.Err = errors.New("sender panicked")
			sendCounter.WithLabelValues("error").Inc()
		}
	}()

	start := time.Now()
	out.Ticket, out.Err = d.Sender.Send(ctx, msg)
	sendLatency.Observe(time.Since(start).Seconds())
	if out.Err != nil {
		sendCounter.WithLabelValues("error").Inc()
	} else {
		sendCounter.WithLabelValues("ok").Inc()
	}
	return out
}
