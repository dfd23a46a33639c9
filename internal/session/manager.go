package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/webgateway/internal/domain"
	apperrors "github.com/carebridge/webgateway/pkg/errors"
)

// AccountAPI is the slice of the account service the session manager needs.
type AccountAPI interface {
	CurrentUser(ctx context.Context, token string) (*domain.User, error)
	Login(ctx context.Context, creds domain.Credentials) (*domain.AuthPayload, error)
	Register(ctx context.Context, contentType string, body io.Reader) (*domain.AuthPayload, error)
	VerificationStatus(ctx context.Context, token string) (*domain.VerificationStatus, error)
}

// AuditPublisher records sign-in lifecycle events. Implementations must be
// safe to call with a nil user.
type AuditPublisher interface {
	SignedIn(ctx context.Context, user *domain.User) error
	Registered(ctx context.Context, user *domain.User) error
	SignedOut(ctx context.Context, user *domain.User) error
}

// State is the resolved view of a session for one request. Resolved is
// false only while the identity behind a stored token is still unknown.
type State struct {
	Token         string
	User          *domain.User
	Resolved      bool
	Authenticated bool
}

// Result is the outcome of a login, registration or logout, shaped for the
// session endpoints: either a message and a redirect target, or an error
// string already flattened for display.
type Result struct {
	Success  bool                  `json:"success"`
	Message  string                `json:"message,omitempty"`
	Error    string                `json:"error,omitempty"`
	Fields   apperrors.FieldErrors `json:"fields,omitempty"`
	Redirect string                `json:"redirect,omitempty"`
}

const (
	loginFallbackError    = "Login failed. Please try again."
	registerFallbackError = "Registration failed. Please try again."
	badResponseError      = "Invalid response from server"
)

// ManagerConfig carries the tunables of the session manager.
type ManagerConfig struct {
	// UserCacheTTL bounds how long a cached identity is served without
	// re-fetching from the account service.
	UserCacheTTL time.Duration
}

// Manager owns the session lifecycle: resolving the identity behind a
// stored token, establishing sessions on login and registration, and
// tearing them down on logout.
type Manager struct {
	store    Store
	accounts AccountAPI
	audit    AuditPublisher
	cfg      ManagerConfig
	logger   *slog.Logger
}

func NewManager(store Store, accounts AccountAPI, audit AuditPublisher, cfg ManagerConfig, logger *slog.Logger) *Manager {
	if cfg.UserCacheTTL <= 0 {
		cfg.UserCacheTTL = time.Minute
	}
	return &Manager{store: store, accounts: accounts, audit: audit, cfg: cfg, logger: logger}
}

// Resolve produces the session state for a request. An empty or unknown
// session ID resolves immediately to logged out; a stored token triggers an
// identity fetch unless a fresh cached user is available. The returned
// state is unresolved only when the store itself is unreachable.
func (m *Manager) Resolve(ctx context.Context, sid string) State {
	if sid == "" {
		return State{Resolved: true}
	}

	rec, err := m.store.Get(ctx, sid)
	if errors.Is(err, ErrNoSession) {
		return State{Resolved: true}
	}
	if err != nil {
		m.logger.Error("session store unavailable", "error", err)
		return State{}
	}
	if rec.Token == "" {
		return State{Resolved: true}
	}

	if rec.User != nil && time.Since(rec.UserCachedAt) < m.cfg.UserCacheTTL {
		return State{Token: rec.Token, User: rec.User, Resolved: true, Authenticated: true}
	}

	return m.fetchUser(ctx, sid, rec)
}

// fetchUser asks the account service who the stored token belongs to. Any
// failure invalidates the session. The result is applied only if the
// record's generation has not advanced since the fetch was issued, so a
// logout that races a slow fetch always wins.
func (m *Manager) fetchUser(ctx context.Context, sid string, rec *Record) State {
	gen := rec.Generation
	user, fetchErr := m.accounts.CurrentUser(ctx, rec.Token)

	cur, err := m.store.Get(ctx, sid)
	if errors.Is(err, ErrNoSession) {
		identityFetchesTotal.WithLabelValues("discarded").Inc()
		return State{Resolved: true}
	}
	if err != nil {
		m.logger.Error("session store unavailable", "error", err)
		return State{}
	}
	if cur.Generation != gen || cur.Token != rec.Token {
		identityFetchesTotal.WithLabelValues("discarded").Inc()
		return m.stateFromRecord(cur)
	}

	if fetchErr != nil {
		identityFetchesTotal.WithLabelValues("failure").Inc()
		m.logger.Warn("identity fetch failed, clearing session", "error", fetchErr)
		if err := m.store.Delete(ctx, sid); err != nil {
			m.logger.Error("clear session", "error", err)
		}
		return State{Resolved: true}
	}

	identityFetchesTotal.WithLabelValues("success").Inc()
	cur.User = user
	cur.UserCachedAt = time.Now()
	cur.Generation++
	if err := m.store.Save(ctx, sid, cur); err != nil {
		m.logger.Error("cache identity", "error", err)
	}
	return State{Token: cur.Token, User: user, Resolved: true, Authenticated: true}
}

func (m *Manager) stateFromRecord(rec *Record) State {
	if rec.Token == "" {
		return State{Resolved: true}
	}
	if rec.User != nil {
		return State{Token: rec.Token, User: rec.User, Resolved: true, Authenticated: true}
	}
	return State{}
}

// Login exchanges credentials for a backend token and establishes a new
// session. The returned session ID is empty unless the result succeeded.
func (m *Manager) Login(ctx context.Context, creds domain.Credentials) (string, Result) {
	payload, err := m.accounts.Login(ctx, creds)
	if err != nil {
		loginsTotal.WithLabelValues("failure").Inc()
		return "", failureResult(err, loginFallbackError)
	}
	if payload.Token == "" || payload.User == nil {
		loginsTotal.WithLabelValues("failure").Inc()
		m.logger.Warn("login response missing token or user")
		return "", Result{Error: badResponseError}
	}

	sid, err := m.establish(ctx, payload)
	if err != nil {
		loginsTotal.WithLabelValues("failure").Inc()
		m.logger.Error("establish session", "error", err)
		return "", Result{Error: loginFallbackError}
	}

	loginsTotal.WithLabelValues("success").Inc()
	if err := m.audit.SignedIn(ctx, payload.User); err != nil {
		m.logger.Warn("publish signed_in event", "error", err)
	}
	return sid, Result{Success: true, Message: payload.Message, Redirect: RedirectPath(payload.User)}
}

// Register forwards a multipart registration to the account service and, on
// success, establishes a session and sends the new user to ID verification.
func (m *Manager) Register(ctx context.Context, contentType string, body io.Reader) (string, Result) {
	payload, err := m.accounts.Register(ctx, contentType, body)
	if err != nil {
		registrationsTotal.WithLabelValues("failure").Inc()
		return "", failureResult(err, registerFallbackError)
	}
	if payload.Token == "" || payload.User == nil {
		registrationsTotal.WithLabelValues("failure").Inc()
		m.logger.Warn("registration response missing token or user")
		return "", Result{Error: badResponseError}
	}

	sid, err := m.establish(ctx, payload)
	if err != nil {
		registrationsTotal.WithLabelValues("failure").Inc()
		m.logger.Error("establish session", "error", err)
		return "", Result{Error: registerFallbackError}
	}

	registrationsTotal.WithLabelValues("success").Inc()
	if err := m.audit.Registered(ctx, payload.User); err != nil {
		m.logger.Warn("publish registered event", "error", err)
	}
	return sid, Result{Success: true, Message: payload.Message, Redirect: PathVerifyID}
}

func (m *Manager) establish(ctx context.Context, payload *domain.AuthPayload) (string, error) {
	sid := uuid.NewString()
	rec := &Record{
		Token:        payload.Token,
		User:         payload.User,
		UserCachedAt: time.Now(),
		Generation:   1,
	}
	if err := m.store.Save(ctx, sid, rec); err != nil {
		return "", err
	}
	return sid, nil
}

// VerificationStatus re-checks ID verification for the session's token.
// When the flag changed (the verify page polls this while documents are
// reviewed), the cached user is updated so the guard sees it immediately.
func (m *Manager) VerificationStatus(ctx context.Context, sid string) (*domain.VerificationStatus, error) {
	if sid == "" {
		return nil, apperrors.Unauthenticated("no active session")
	}
	rec, err := m.store.Get(ctx, sid)
	if errors.Is(err, ErrNoSession) {
		return nil, apperrors.Unauthenticated("no active session")
	}
	if err != nil {
		return nil, err
	}
	if rec.Token == "" {
		return nil, apperrors.Unauthenticated("no active session")
	}

	status, err := m.accounts.VerificationStatus(ctx, rec.Token)
	if err != nil {
		return nil, err
	}

	if rec.User != nil && rec.User.IsVerified != status.IsVerified {
		rec.User.IsVerified = status.IsVerified
		rec.Generation++
		if err := m.store.Save(ctx, sid, rec); err != nil {
			m.logger.Error("update verification flag", "error", err)
		}
	}
	return status, nil
}

// Logout tears down the session. It is idempotent: an unknown or already
// cleared session still reports success and redirects to the login page.
func (m *Manager) Logout(ctx context.Context, sid string) Result {
	logoutsTotal.Inc()
	if sid == "" {
		return Result{Success: true, Redirect: PathLogin}
	}

	rec, err := m.store.Get(ctx, sid)
	if err != nil && !errors.Is(err, ErrNoSession) {
		m.logger.Error("load session for logout", "error", err)
	}

	if err := m.store.Delete(ctx, sid); err != nil {
		m.logger.Error("delete session", "error", err)
	}

	var user *domain.User
	if rec != nil {
		user = rec.User
	}
	if err := m.audit.SignedOut(ctx, user); err != nil {
		m.logger.Warn("publish signed_out event", "error", err)
	}
	return Result{Success: true, Redirect: PathLogin}
}

// failureResult shapes a backend error for display: field errors keep
// their structure and are flattened for the error string, a server-sent
// message is used verbatim, anything else falls back to a generic message.
func failureResult(err error, fallback string) Result {
	var fields apperrors.FieldErrors
	if errors.As(err, &fields) {
		return Result{Error: fields.Flatten(), Fields: fields}
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Message != "" && errors.Is(err, apperrors.ErrInvalidInput) {
		return Result{Error: appErr.Message}
	}
	if errors.As(err, &appErr) && appErr.Message != "" && errors.Is(err, apperrors.ErrUnauthenticated) {
		return Result{Error: appErr.Message}
	}
	return Result{Error: fallback}
}
