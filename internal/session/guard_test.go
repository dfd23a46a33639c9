package session

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/webgateway/internal/domain"
	"github.com/carebridge/webgateway/pkg/logger"
)

func verifiedPregnant() *domain.User {
	return &domain.User{ID: 1, Username: "amara", UserType: domain.UserTypePregnant, IsVerified: true}
}

// --- Evaluate ---

func TestEvaluate_Unresolved_IsLoading(t *testing.T) {
	d := Evaluate(State{}, PathPregnantDashboard)
	assert.Equal(t, GuardLoading, d.State)
	assert.Empty(t, d.Redirect)
}

func TestEvaluate_UnresolvedWithToken_StillLoading(t *testing.T) {
	// A stored token whose owner is unknown must not authorize anything,
	// and must not bounce to login either.
	d := Evaluate(State{Token: "tok"}, PathPregnantDashboard)
	assert.Equal(t, GuardLoading, d.State)
}

func TestEvaluate_Unauthenticated_RedirectsToLoginWithNext(t *testing.T) {
	d := Evaluate(State{Resolved: true}, PathPregnantDashboard)
	assert.Equal(t, GuardUnauthenticated, d.State)
	assert.Equal(t, "/login?next=%2Fpregnant%2Fdashboard", d.Redirect)
}

func TestEvaluate_UnverifiedUser_PinnedToVerification(t *testing.T) {
	u := &domain.User{UserType: domain.UserTypeCaregiver, IsVerified: false}
	d := Evaluate(State{Resolved: true, Authenticated: true, User: u}, PathCaregiverDashboard)
	assert.Equal(t, GuardNeedsVerification, d.State)
	assert.Equal(t, PathVerifyID, d.Redirect)
}

func TestEvaluate_UnverifiedUser_AllowedOnVerificationPage(t *testing.T) {
	u := &domain.User{UserType: domain.UserTypeCaregiver, IsVerified: false}
	d := Evaluate(State{Resolved: true, Authenticated: true, User: u}, PathVerifyID)
	assert.Equal(t, GuardAuthorized, d.State)
}

func TestEvaluate_VerifiedUser_BouncedOffVerificationPage(t *testing.T) {
	d := Evaluate(State{Resolved: true, Authenticated: true, User: verifiedPregnant()}, PathVerifyID)
	assert.Equal(t, GuardMisrouted, d.State)
	assert.Equal(t, PathPregnantDashboard, d.Redirect)
}

func TestEvaluate_VerifiedUser_Authorized(t *testing.T) {
	d := Evaluate(State{Resolved: true, Authenticated: true, User: verifiedPregnant()}, PathPregnantDashboard)
	assert.Equal(t, GuardAuthorized, d.State)
	assert.Empty(t, d.Redirect)
}

// --- middleware ---

func guardTestManager(t *testing.T, store Store, accounts AccountAPI) (*Manager, *CookieCodec) {
	t.Helper()
	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewManager(store, accounts, noopAudit{}, ManagerConfig{UserCacheTTL: time.Minute}, l)
	return m, NewCookieCodec("test-secret", time.Hour, false)
}

func TestGuard_NoCookie_RedirectsToLogin(t *testing.T) {
	m, cookies := guardTestManager(t, newFakeStore(), &stubAccounts{})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	})
	req := httptest.NewRequest(http.MethodGet, PathPregnantDashboard, nil)
	rr := httptest.NewRecorder()

	Guard(m, cookies)(next).ServeHTTP(rr, req)

	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login?next=%2Fpregnant%2Fdashboard", rr.Header().Get("Location"))
}

func TestGuard_CachedVerifiedUser_PassesStateThrough(t *testing.T) {
	store := newFakeStore()
	user := verifiedPregnant()
	require.NoError(t, store.Save(context.Background(), "sid-1", &Record{
		Token: "tok", User: user, UserCachedAt: time.Now(), Generation: 1,
	}))
	m, cookies := guardTestManager(t, store, &stubAccounts{})

	var got State
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st, ok := StateFromContext(r.Context())
		require.True(t, ok)
		got = st
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, PathPregnantDashboard, nil)
	rr := httptest.NewRecorder()
	require.NoError(t, cookies.Issue(rr, "sid-1"))
	req.AddCookie(rr.Result().Cookies()[0])

	rr = httptest.NewRecorder()
	Guard(m, cookies)(next).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "tok", got.Token)
	assert.Equal(t, user.Username, got.User.Username)
}

func TestGuard_AuthorizedRequest_TagsContextWithUserID(t *testing.T) {
	store := newFakeStore()
	user := verifiedPregnant()
	user.ID = 7
	require.NoError(t, store.Save(context.Background(), "sid-1", &Record{
		Token: "tok", User: user, UserCachedAt: time.Now(), Generation: 1,
	}))
	m, cookies := guardTestManager(t, store, &stubAccounts{})

	var loggedID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loggedID = logger.UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, PathPregnantDashboard, nil)
	rr := httptest.NewRecorder()
	require.NoError(t, cookies.Issue(rr, "sid-1"))
	req.AddCookie(rr.Result().Cookies()[0])

	rr = httptest.NewRecorder()
	Guard(m, cookies)(next).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "7", loggedID)
}

func TestGuard_StoreDown_ServesLoadingShell(t *testing.T) {
	m, cookies := guardTestManager(t, failingStore{}, &stubAccounts{})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	})
	req := httptest.NewRequest(http.MethodGet, PathPregnantDashboard, nil)
	rr := httptest.NewRecorder()
	require.NoError(t, cookies.Issue(rr, "sid-1"))
	req.AddCookie(rr.Result().Cookies()[0])

	rr = httptest.NewRecorder()
	Guard(m, cookies)(next).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rr.Body.String(), "Loading")
	assert.Empty(t, rr.Header().Get("Location"))
}

func TestRedirectAuthenticated_SignedInUserLeavesLoginPage(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.Save(context.Background(), "sid-1", &Record{
		Token: "tok", User: verifiedPregnant(), UserCachedAt: time.Now(), Generation: 1,
	}))
	m, cookies := guardTestManager(t, store, &stubAccounts{})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	})
	req := httptest.NewRequest(http.MethodGet, PathLogin, nil)
	rr := httptest.NewRecorder()
	require.NoError(t, cookies.Issue(rr, "sid-1"))
	req.AddCookie(rr.Result().Cookies()[0])

	rr = httptest.NewRecorder()
	RedirectAuthenticated(m, cookies)(next).ServeHTTP(rr, req)

	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, PathPregnantDashboard, rr.Header().Get("Location"))
}

func TestRedirectAuthenticated_AnonymousVisitorFallsThrough(t *testing.T) {
	m, cookies := guardTestManager(t, newFakeStore(), &stubAccounts{})

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, PathLogin, nil)
	rr := httptest.NewRecorder()

	RedirectAuthenticated(m, cookies)(next).ServeHTTP(rr, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rr.Code)
}
