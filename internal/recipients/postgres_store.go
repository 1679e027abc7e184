package recipients

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/example/push-dispatcher/internal/apperr"
)

var ErrNotConfigured = errors.New("postgres store requires a table and column")

type PostgresStore struct {
	conn   *pgx.Conn
	table  string
	column string
}

// OpenPostgres connects to the recipient database for a single invocation.
// A non-empty key replaces the password carried in the URL.
func OpenPostgres(ctx context.Context, storeURL, storeKey, table, column string) (*PostgresStore, error) {
	if table == "" || column == "" {
		return nil, apperr.New(apperr.KindStoreInit, "", ErrNotConfigured)
	}
	cfg, err := pgx.ParseConfig(storeURL)
	if err != nil {
		return nil, apperr.New(apperr.KindStoreInit, "", fmt.Errorf("parse postgres url: %w", err))
	}
	if storeKey != "" {
		cfg.Password = storeKey
	}
	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, apperr.New(apperr.KindStoreInit, "", fmt.Errorf("connect postgres: %w", err))
	}
	return &PostgresStore{conn: conn, table: table, column: column}, nil
}

func selectTokens(table, column string) string {
	return fmt.Sprintf("SELECT %s FROM %s",
		pgx.Identifier{column}.Sanitize(),
		pgx.Identifier{table}.Sanitize(),
	)
}

func (s *PostgresStore) Tokens(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, selectTokens(s.table, s.column))
	if err != nil {
		return nil, apperr.New(apperr.KindStoreFetch, "", fmt.Errorf("query tokens: %w", err))
	}
	values, err := pgx.CollectRows(rows, pgx.RowTo[*string])
	if err != nil {
		return nil, apperr.New(apperr.KindStoreFetch, "", fmt.Errorf("scan tokens: %w", err))
	}

	tokens := make([]string, 0, len(values))
	for _, v := range values {
		if v == nil {
			continue
		}
		tokens = append(tokens, *v)
	}
	return tokens, nil
}

func (s *PostgresStore) Close() {
	_ = s.conn.Close(context.Background())
}
