package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrInvalidCredentials is the non-fatal outcome of a sign-in with a wrong
// email or secret. Callers translate it to a no-match result.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthClient talks to the hosted credential/session provider. Every request
// carries the project access key; sign-out additionally carries the session's
// bearer token.
type AuthClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewAuthClient builds a client for the provider at baseURL.
func NewAuthClient(baseURL, apiKey string) *AuthClient {
	return &AuthClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Identity is the provider-side account record.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// ProviderSession is an authenticated provider session.
type ProviderSession struct {
	AccessToken string   `json:"access_token"`
	Identity    Identity `json:"user"`
}

type credentialsBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignIn exchanges credentials for a session. A rejected credential pair
// yields ErrInvalidCredentials; anything else is a transport or provider
// failure.
func (c *AuthClient) SignIn(ctx context.Context, email, secret string) (*ProviderSession, error) {
	return c.sessionRequest(ctx, "/token?grant_type=password", email, secret)
}

// SignUp creates a new provider identity and returns its session.
func (c *AuthClient) SignUp(ctx context.Context, email, secret string) (*ProviderSession, error) {
	return c.sessionRequest(ctx, "/signup", email, secret)
}

// SignOut revokes the session behind the given access token. Best effort.
func (c *AuthClient) SignOut(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/logout", nil)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sign-out failed: status %d", resp.StatusCode)
	}
	return nil
}

func (c *AuthClient) sessionRequest(ctx context.Context, path, email, secret string) (*ProviderSession, error) {
	body, err := json.Marshal(credentialsBody{Email: email, Password: secret})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized ||
		resp.StatusCode == http.StatusUnprocessableEntity {
		return nil, ErrInvalidCredentials
	}
	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("credential provider: status %d: %s", resp.StatusCode, payload)
	}

	var session ProviderSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("decode provider session: %w", err)
	}
	if session.Identity.ID == "" {
		return nil, errors.New("credential provider returned no identity")
	}
	return &session, nil
}
