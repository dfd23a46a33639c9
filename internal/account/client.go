package account

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/carebridge/webgateway/internal/domain"
	apperrors "github.com/carebridge/webgateway/pkg/errors"
	"github.com/carebridge/webgateway/pkg/httpclient"
)

// Client talks to the account service. All calls go through the circuit
// breaker so a dead backend fails fast instead of piling up requests.
type Client struct {
	http    *httpclient.CircuitBreakerClient
	baseURL string
}

func NewClient(http *httpclient.CircuitBreakerClient, baseURL string) *Client {
	return &Client{http: http, baseURL: baseURL}
}

// CurrentUser resolves the identity behind a token.
func (c *Client) CurrentUser(ctx context.Context, token string) (*domain.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/account/users/me/", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, apperrors.Unavailable("account service unavailable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errorFromResponse(resp)
	}

	var user domain.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, apperrors.BadResponse("decode user record")
	}
	return &user, nil
}

// Login exchanges credentials for a token and the user record.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.AuthPayload, error) {
	body, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("encode credentials: %w", err)
	}

	resp, err := c.http.Post(ctx, c.baseURL+"/account/login/", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Unavailable("account service unavailable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errorFromResponse(resp)
	}
	return decodePayload(resp.Body)
}

// Register forwards a multipart registration form untouched; the account
// service owns field validation and returns per-field errors on 400.
func (c *Client) Register(ctx context.Context, contentType string, body io.Reader) (*domain.AuthPayload, error) {
	resp, err := c.http.Post(ctx, c.baseURL+"/account/register/", contentType, body)
	if err != nil {
		return nil, apperrors.Unavailable("account service unavailable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, errorFromResponse(resp)
	}
	return decodePayload(resp.Body)
}

// VerificationStatus reports whether the token's user has completed ID
// verification.
func (c *Client) VerificationStatus(ctx context.Context, token string) (*domain.VerificationStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/account/verification/status/", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, apperrors.Unavailable("account service unavailable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errorFromResponse(resp)
	}

	var status domain.VerificationStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, apperrors.BadResponse("decode verification status")
	}
	return &status, nil
}

func decodePayload(r io.Reader) (*domain.AuthPayload, error) {
	var payload domain.AuthPayload
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, apperrors.BadResponse("decode auth payload")
	}
	return &payload, nil
}

// apiError is the account service's error envelope: a human message plus
// optional per-field detail.
type apiError struct {
	Message string              `json:"message"`
	Detail  string              `json:"detail"`
	Errors  map[string][]string `json:"errors"`
}

func errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil {
		if len(apiErr.Errors) > 0 {
			return apperrors.FieldErrors(apiErr.Errors)
		}
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Detail
		}
		if msg != "" {
			switch resp.StatusCode {
			case http.StatusUnauthorized, http.StatusForbidden:
				return apperrors.Unauthenticated(msg)
			case http.StatusBadRequest:
				return apperrors.InvalidInput(msg)
			}
			return apperrors.BadResponse(msg)
		}
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperrors.Unauthenticated("authentication failed")
	case http.StatusBadRequest:
		return apperrors.InvalidInput("invalid request")
	}
	return apperrors.BadResponse(fmt.Sprintf("unexpected status %d", resp.StatusCode))
}
