package expo

import (
	"fmt"

	"github.com/example/push-dispatcher/internal/apperr"
)

// Message is one push notification addressed to a single token.
type Message struct {
	To    string `json:"to"`
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
}

// BuildMessages builds one message per token. A single rejected token fails
// the whole batch; nothing is partially built.
func BuildMessages(title, body string, tokens []string) ([]Message, error) {
	messages := make([]Message, 0, len(tokens))
	for i, token := range tokens {
		msg, err := buildMessage(title, body, token)
		if err != nil {
			return nil, apperr.New(apperr.KindMessageBuild, token, fmt.Errorf("message %d: %w", i, err))
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func buildMessage(title, body, token string) (Message, error) {
	if token == "" {
		return Message{}, fmt.Errorf("empty recipient")
	}
	if !IsPushToken(token) {
		return Message{}, fmt.Errorf("%q is not an expo push token", token)
	}
	return Message{To: token, Title: title, Body: body}, nil
}
