package recipients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/push-dispatcher/internal/apperr"
)

// RESTStore reads recipient rows through the Supabase PostgREST API.
type RESTStore struct {
	endpoint string
	key      string
	column   string
	client   *http.Client
}

func NewRESTStore(baseURL, key, table, column string, client *http.Client) (*RESTStore, error) {
	if table == "" || column == "" {
		return nil, apperr.New(apperr.KindStoreInit, "", ErrNotConfigured)
	}
	if key == "" {
		return nil, apperr.New(apperr.KindStoreInit, "", fmt.Errorf("supabase key is empty"))
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	endpoint := strings.TrimRight(baseURL, "/") + "/rest/v1/" + url.PathEscape(table) +
		"?" + url.Values{"select": []string{column}}.Encode()
	return &RESTStore{endpoint: endpoint, key: key, column: column, client: client}, nil
}

func (s *RESTStore) Tokens(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, apperr.New(apperr.KindStoreFetch, "", err)
	}
	req.Header.Set("apikey", s.key)
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperr.New(apperr.KindStoreFetch, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, apperr.New(apperr.KindStoreFetch, "",
			fmt.Errorf("supabase returned %s: %s", resp.Status, strings.TrimSpace(string(detail))))
	}

	var rows []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, apperr.New(apperr.KindStoreFetch, "", fmt.Errorf("decode rows: %w", err))
	}

	tokens := make([]string, 0, len(rows))
	for _, row := range rows {
		if token, ok := row[s.column].(string); ok {
			tokens = append(tokens, token)
		}
	}
	return tokens, nil
}

func (s *RESTStore) Close() {}
