// Package recipients resolves who a dispatch invocation notifies. A Source is
// either Stored (scheduled trigger, tokens read from the recipient table) or
// Inline (ad-hoc trigger, one token taken from the request body).
package recipients

import (
	"context"
	"encoding/json"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/example/push-dispatcher/internal/apperr"
	"github.com/example/push-dispatcher/internal/expo"
	"github.com/example/push-dispatcher/internal/secrets"
)

const (
	TriggerScheduled = "scheduled"
	TriggerAdHoc     = "adhoc"
)

var resolvedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "recipients_resolved_total",
	Help: "Recipient tokens resolved per source",
}, []string{"source"})

// Notification is the uniform hand-off from a Source to message building.
// Tokens may be empty, which callers treat as a no-op.
type Notification struct {
	Title  string
	Body   string
	Tokens []string
}

// Source is implemented only by Stored and Inline.
type Source interface {
	Resolve(ctx context.Context, set secrets.Set) (Notification, error)
	Trigger() string
	source()
}

// Stored reads every token from the recipient store using fixed copy.
type Stored struct {
	Open  Opener
	Title string
	Body  string
}

func (Stored) Trigger() string { return TriggerScheduled }
func (Stored) source() {}

func (s Stored) Resolve(ctx context.Context, set secrets.Set) (Notification, error) {
	url, err := set.Get(secrets.KeyStoreURL)
	if err != nil {
		return Notification{}, err
	}
	key, err := set.Get(secrets.KeyStoreKey)
	if err != nil {
		return Notification{}, err
	}

	store, err := s.Open(ctx, url, key)
	if err != nil {
		return Notification{}, asKind(apperr.KindStoreInit, err)
	}
	defer store.Close()

	tokens, err := store.Tokens(ctx)
	if err != nil {
		return Notification{}, asKind(apperr.KindStoreFetch, err)
	}
	resolvedCounter.WithLabelValues(TriggerScheduled).Add(float64(len(tokens)))
	return Notification{Title: s.Title, Body: s.Body, Tokens: tokens}, nil
}

// Inline carries a single validated token from an ad-hoc request.
type Inline struct {
	Title string
	Body  string
	Token string
}

func (Inline) Trigger() string { return TriggerAdHoc }
func (Inline) source() {}

func (i Inline) Resolve(context.Context, secrets.Set) (Notification, error) {
	resolvedCounter.WithLabelValues(TriggerAdHoc).Inc()
	return Notification{Title: i.Title, Body: i.Body, Tokens: []string{i.Token}}, nil
}

// ParseInline decodes an ad-hoc request body. Fields are checked in the order
// title, body, push_token; the token must satisfy the provider format.
func ParseInline(raw []byte) (Inline, error) {
	if !utf8.Valid(raw) {
		return Inline{}, apperr.InvalidBody(nil)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Inline{}, apperr.InvalidBody(err)
	}
	obj, _ := decoded.(map[string]any)

	title, ok := obj["title"].(string)
	if !ok {
		return Inline{}, apperr.BadRequest("title")
	}
	body, ok := obj["body"].(string)
	if !ok {
		return Inline{}, apperr.BadRequest("body")
	}
	token, ok := obj["push_token"].(string)
	if !ok {
		return Inline{}, apperr.BadRequest("push_token")
	}
	if !expo.IsPushToken(token) {
		return Inline{}, apperr.InvalidToken(token)
	}
	return Inline{Title: title, Body: body, Token: token}, nil
}

func asKind(kind apperr.Kind, err error) error {
	if apperr.KindOf(err) != 0 {
		return err
	}
	return apperr.New(kind, "", err)
}
