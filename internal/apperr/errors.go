// Package apperr holds the closed set of failure kinds a dispatch invocation
// can end in, and the single mapping from each kind to an HTTP outcome.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindConfigFetch Kind = iota + 1
	KindMissingEnvVar
	KindMissingSecret
	KindStoreInit
	KindStoreFetch
	KindInvalidAPIKey
	KindMethodNotAllowed
	KindInvalidBody
	KindBadRequest
	KindInvalidToken
	KindMessageBuild
	KindSendFailure
)

const genericMessage = "Internal server error"

func (k Kind) String() string {
	switch k {
	case KindConfigFetch:
		return "config_fetch"
	case KindMissingEnvVar:
		return "missing_env_var"
	case KindMissingSecret:
		return "missing_secret"
	case KindStoreInit:
		return "store_init"
	case KindStoreFetch:
		return "store_fetch"
	case KindInvalidAPIKey:
		return "invalid_api_key"
	case KindMethodNotAllowed:
		return "method_not_allowed"
	case KindInvalidBody:
		return "invalid_body"
	case KindBadRequest:
		return "bad_request"
	case KindInvalidToken:
		return "invalid_token"
	case KindMessageBuild:
		return "message_build"
	case KindSendFailure:
		return "send_failure"
	default:
		return "unknown"
	}
}

// Error is the only error type the gate inspects. Detail names the missing
// variable, secret or request field where the kind carries one.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case KindConfigFetch:
		msg = "failed to load secrets from parameter store"
	case KindMissingEnvVar:
		msg = "missing environment variable: " + e.Detail
	case KindMissingSecret:
		msg = "missing expected secret: " + e.Detail
	case KindStoreInit:
		msg = "failed to initialise recipient store client"
	case KindStoreFetch:
		msg = "failed to fetch push tokens from recipient store"
	case KindInvalidAPIKey:
		msg = "invalid api key"
	case KindMethodNotAllowed:
		msg = "method not allowed: " + e.Detail
	case KindInvalidBody:
		msg = "invalid request body"
	case KindBadRequest:
		msg = "bad request: " + e.Detail + " is required"
	case KindInvalidToken:
		msg = "invalid push token: " + e.Detail
	case KindMessageBuild:
		msg = "failed to build push message"
	case KindSendFailure:
		msg = "failed to send some push notifications"
	default:
		msg = "unknown error"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

func MissingEnvVar(name string) *Error { return New(KindMissingEnvVar, name, nil) }
func MissingSecret(key string) *Error { return New(KindMissingSecret, key, nil) }
func BadRequest(field string) *Error { return New(KindBadRequest, field, nil) }
func InvalidBody(err error) *Error { return New(KindInvalidBody, "", err) }
func InvalidToken(token string) *Error { return New(KindInvalidToken, token, nil) }
func MethodNotAllowed(method string) *Error { return New(KindMethodNotAllowed, method, nil) }

// KindOf reports the kind of err, or zero when err is not an *Error.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return 0
}

// Status maps a kind to the HTTP status the gate answers with.
func Status(kind Kind) int {
	switch kind {
	case KindInvalidAPIKey:
		return http.StatusForbidden
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindInvalidBody, KindBadRequest, KindInvalidToken:
		return http.StatusBadRequest
	case KindConfigFetch, KindMissingEnvVar, KindMissingSecret, KindStoreInit,
		KindStoreFetch, KindMessageBuild, KindSendFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the client-facing text for err. Failures of remote
// collaborators collapse to a generic message.
func PublicMessage(err error) string {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return genericMessage
	}
	switch appErr.Kind {
	case KindInvalidAPIKey:
		return "Forbidden: Invalid API Key"
	case KindMethodNotAllowed:
		return "Method not allowed"
	case KindInvalidBody:
		return "Invalid request body"
	case KindBadRequest:
		return appErr.Detail + " is required"
	case KindInvalidToken:
		return "Invalid push token"
	case KindSendFailure:
		return "Failed to send some push notifications"
	case KindConfigFetch, KindMissingEnvVar, KindMissingSecret, KindStoreInit,
		KindStoreFetch, KindMessageBuild:
		return genericMessage
	default:
		return genericMessage
	}
}
