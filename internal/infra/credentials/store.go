package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"processing-requests/internal/infra"
	"processing-requests/internal/sqlinline"
)

// ProviderRedispatch names the credential the re-dispatch job forwards to
// workers when it republishes pending requests.
const ProviderRedispatch = "redispatch"

var (
	ErrProviderRequired = errors.New("provider is required")
	ErrTokenRequired    = errors.New("token is required")
)

// Store persists named service tokens in the integration_tokens table.
// Provider names are case-insensitive.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// RedispatchToken returns the stored re-dispatch credential, or "" if none.
func (s *Store) RedispatchToken(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderRedispatch)
}

// Token returns the token stored for provider, or "" if none is stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	provider, err := normalizeProvider(provider)
	if err != nil {
		return "", err
	}
	var token string
	if err := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider).Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("load %s token: %w", provider, err)
	}
	return strings.TrimSpace(token), nil
}

// SetToken stores token for provider along with free-form properties,
// replacing any previous value.
func (s *Store) SetToken(ctx context.Context, provider, token string, props map[string]any) error {
	provider, err := normalizeProvider(provider)
	if err != nil {
		return err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrTokenRequired
	}
	if props == nil {
		props = map[string]any{}
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("encode %s properties: %w", provider, err)
	}
	if _, err := s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw); err != nil {
		return fmt.Errorf("store %s token: %w", provider, err)
	}
	return nil
}

// DeleteToken removes the token for provider. It reports whether a token existed.
func (s *Store) DeleteToken(ctx context.Context, provider string) (bool, error) {
	provider, err := normalizeProvider(provider)
	if err != nil {
		return false, err
	}
	tag, err := s.sql.Exec(ctx, sqlinline.QDeleteIntegrationToken, provider)
	if err != nil {
		return false, fmt.Errorf("delete %s token: %w", provider, err)
	}
	return tag.RowsAffected() > 0, nil
}

func normalizeProvider(provider string) (string, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return "", ErrProviderRequired
	}
	return provider, nil
}
