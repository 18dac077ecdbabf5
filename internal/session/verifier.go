package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"freshershub/pkg/types"
)

// StaticVerifier resolves tokens from a fixed table. It backs development
// setups where no auth service is running.
type StaticVerifier struct {
	tokens map[string]types.Identity
}

func NewStaticVerifier(tokens map[string]types.Identity) *StaticVerifier {
	cp := make(map[string]types.Identity, len(tokens))
	for k, v := range tokens {
		cp[k] = v
	}
	return &StaticVerifier{tokens: cp}
}

func (v *StaticVerifier) Verify(_ context.Context, token string) (*types.Identity, error) {
	id, ok := v.tokens[token]
	if !ok {
		return nil, ErrInvalidToken
	}
	return &id, nil
}

// HTTPVerifier asks the external auth service who a bearer token belongs to.
// The service answers GET URL with the identity as JSON, or 401/403.
type HTTPVerifier struct {
	URL    string
	client *http.Client
}

func NewHTTPVerifier(url string, timeout time.Duration) *HTTPVerifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPVerifier{URL: url, client: &http.Client{Timeout: timeout}}
}

func (v *HTTPVerifier) Verify(ctx context.Context, token string) (*types.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerifierFailed, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrInvalidToken
	default:
		return nil, fmt.Errorf("%w: status %d", ErrVerifierFailed, resp.StatusCode)
	}

	var identity types.Identity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	return &identity, nil
}
