package recipients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/example/push-dispatcher/internal/apperr"
)

// Store yields the push tokens of every recipient row. Rows without a token
// are skipped.
type Store interface {
	Tokens(ctx context.Context) ([]string, error)
	Close()
}

// Opener builds a Store from the store-url and store-key secrets. It is called
// once per invocation.
type Opener func(ctx context.Context, storeURL, storeKey string) (Store, error)

// NewOpener selects a backend by URL scheme: postgres URLs connect directly,
// http(s) URLs talk to a Supabase REST endpoint.
func NewOpener(table, column string, client *http.Client) Opener {
	return func(ctx context.Context, storeURL, storeKey string) (Store, error) {
		u, err := url.Parse(storeURL)
		if err != nil {
			return nil, apperr.New(apperr.KindStoreInit, "", fmt.Errorf("parse store url: %w", err))
		}
		switch strings.ToLower(u.Scheme) {
		case "postgres", "postgresql":
			store, err := OpenPostgres(ctx, storeURL, storeKey, table, column)
			if err != nil {
				return nil, err
			}
			return store, nil
		case "http", "https":
			store, err := NewRESTStore(storeURL, storeKey, table, column, client)
			if err != nil {
				return nil, err
			}
			return store, nil
		default:
			return nil, apperr.New(apperr.KindStoreInit, "", fmt.Errorf("unsupported store url scheme %q", u.Scheme))
		}
	}
}
