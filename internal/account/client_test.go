package account

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/webgateway/internal/domain"
	apperrors "github.com/carebridge/webgateway/pkg/errors"
	"github.com/carebridge/webgateway/pkg/httpclient"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := httpclient.DefaultConfig()
	cfg.MaxRetries = 0
	cb := httpclient.NewCircuitBreakerClient(httpclient.New(cfg), httpclient.DefaultCircuitBreakerConfig("account-test"), l)
	return NewClient(cb, baseURL)
}

func TestCurrentUser_Success(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/account/users/me/", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          7,
			"username":    "joy",
			"email":       "joy@example.com",
			"user_type":   "caregiver",
			"is_verified": true,
		})
	}))
	defer backend.Close()

	user, err := testClient(t, backend.URL).CurrentUser(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)
	assert.Equal(t, "joy", user.Username)
	assert.Equal(t, domain.UserTypeCaregiver, user.UserType)
	assert.True(t, user.IsVerified)
}

func TestCurrentUser_InvalidToken_IsUnauthenticated(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Invalid token."}`))
	}))
	defer backend.Close()

	_, err := testClient(t, backend.URL).CurrentUser(context.Background(), "bad")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "Invalid token.", appErr.Message)
}

func TestCurrentUser_BackendDown_IsUnavailable(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	backend.Close()

	_, err := testClient(t, backend.URL).CurrentUser(context.Background(), "tok")
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
}

func TestCurrentUser_MalformedBody_IsBadResponse(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer backend.Close()

	_, err := testClient(t, backend.URL).CurrentUser(context.Background(), "tok")
	assert.ErrorIs(t, err, apperrors.ErrBadResponse)
}

func TestLogin_Success(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/account/login/", r.URL.Path)

		var creds domain.Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "amara", creds.Username)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token":   "tok-9",
			"message": "Login successful",
			"user":    map[string]any{"id": 1, "username": "amara", "user_type": "pregnant", "is_verified": false},
		})
	}))
	defer backend.Close()

	payload, err := testClient(t, backend.URL).Login(context.Background(), domain.Credentials{Username: "amara", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "tok-9", payload.Token)
	assert.Equal(t, "Login successful", payload.Message)
	require.NotNil(t, payload.User)
	assert.Equal(t, domain.UserTypePregnant, payload.User.UserType)
	assert.False(t, payload.User.IsVerified)
}

func TestLogin_BadCredentials_SurfacesServerMessage(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Invalid username or password"}`))
	}))
	defer backend.Close()

	_, err := testClient(t, backend.URL).Login(context.Background(), domain.Credentials{Username: "a", Password: "b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "Invalid username or password", appErr.Message)
}

func TestRegister_Success_ForwardsMultipartBody(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/account/register/", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "amara", r.FormValue("username"))
		assert.Equal(t, "pregnant", r.FormValue("user_type"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token":   "tok-new",
			"message": "Account created",
			"user":    map[string]any{"id": 2, "username": "amara", "user_type": "pregnant"},
		})
	}))
	defer backend.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("username", "amara"))
	require.NoError(t, mw.WriteField("user_type", "pregnant"))
	require.NoError(t, mw.Close())

	payload, err := testClient(t, backend.URL).Register(context.Background(), mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	assert.Equal(t, "tok-new", payload.Token)
	assert.Equal(t, "Account created", payload.Message)
}

func TestRegister_ValidationFailure_ReturnsFieldErrors(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Registration failed","errors":{"email":["already taken"],"password":["too short"]}}`))
	}))
	defer backend.Close()

	_, err := testClient(t, backend.URL).Register(context.Background(), "multipart/form-data", bytes.NewReader(nil))
	require.Error(t, err)

	var fields apperrors.FieldErrors
	require.ErrorAs(t, err, &fields)
	assert.Equal(t, []string{"already taken"}, []string(fields["email"]))
	assert.Equal(t, "email: already taken; password: too short", fields.Flatten())
}

func TestVerificationStatus_Success(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/account/verification/status/", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"is_verified":false,"status":"pending"}`))
	}))
	defer backend.Close()

	status, err := testClient(t, backend.URL).VerificationStatus(context.Background(), "tok")
	require.NoError(t, err)
	assert.False(t, status.IsVerified)
	assert.Equal(t, "pending", status.Status)
}
