package session

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/carebridge/webgateway/pkg/logger"
)

// GuardState classifies a request against the session state.
type GuardState int

const (
	// GuardLoading means the identity behind a stored token is not yet
	// known; the page must not be rendered or redirected away from.
	GuardLoading GuardState = iota
	GuardUnauthenticated
	GuardNeedsVerification
	GuardMisrouted
	GuardAuthorized
)

func (s GuardState) String() string {
	switch s {
	case GuardLoading:
		return "loading"
	case GuardUnauthenticated:
		return "unauthenticated"
	case GuardNeedsVerification:
		return "needs_verification"
	case GuardMisrouted:
		return "misrouted"
	case GuardAuthorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// Decision is the guard's verdict for one request. Redirect is set only
// for the states that navigate away.
type Decision struct {
	State    GuardState
	Redirect string
}

// Evaluate is the route guard decision function. It is pure: the verdict
// depends only on the session state and the requested path.
//
// Precedence: an unresolved session always yields Loading; no redirect may
// fire before the identity is known. An unauthenticated visitor is sent to
// the login page with the original path preserved. An unverified user is
// pinned to the verification page; a verified user is bounced off it to
// their role's dashboard.
func Evaluate(st State, path string) Decision {
	if !st.Resolved {
		return Decision{State: GuardLoading}
	}
	if !st.Authenticated || st.User == nil {
		return Decision{
			State:    GuardUnauthenticated,
			Redirect: PathLogin + "?next=" + url.QueryEscape(path),
		}
	}
	if !st.User.IsVerified && path != PathVerifyID {
		return Decision{State: GuardNeedsVerification, Redirect: PathVerifyID}
	}
	if st.User.IsVerified && path == PathVerifyID {
		return Decision{State: GuardMisrouted, Redirect: RedirectPath(st.User)}
	}
	return Decision{State: GuardAuthorized}
}

type contextKey struct{}

// ContextWithState stashes the resolved session state for downstream
// handlers, in particular the API proxy's token injection. Authenticated
// sessions also tag the context so request logs carry the user ID.
func ContextWithState(ctx context.Context, st State) context.Context {
	if st.Authenticated && st.User != nil {
		ctx = logger.WithUserID(ctx, strconv.FormatInt(st.User.ID, 10))
	}
	return context.WithValue(ctx, contextKey{}, st)
}

func StateFromContext(ctx context.Context) (State, bool) {
	st, ok := ctx.Value(contextKey{}).(State)
	return st, ok
}

const loadingShell = `<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><meta http-equiv="refresh" content="1"><title>CareBridge</title></head>
<body><p>Loading…</p></body>
</html>
`

// Guard protects a route subtree. Every request resolves the session and
// runs Evaluate; redirects use 302 so the intermediate hop never enters
// browser history.
func Guard(m *Manager, cookies *CookieCodec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := m.Resolve(r.Context(), cookies.SessionID(r))
			d := Evaluate(st, r.URL.Path)
			guardDecisionsTotal.WithLabelValues(d.State.String()).Inc()

			switch d.State {
			case GuardLoading:
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.Header().Set("Cache-Control", "no-store")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(loadingShell))
			case GuardAuthorized:
				next.ServeHTTP(w, r.WithContext(ContextWithState(r.Context(), st)))
			default:
				http.Redirect(w, r, d.Redirect, http.StatusFound)
			}
		})
	}
}

// Attach resolves the session and stashes the state without gating: API
// routes use it so the proxy can inject the backend token, while leaving
// authorization to the backend itself.
func Attach(m *Manager, cookies *CookieCodec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := m.Resolve(r.Context(), cookies.SessionID(r))
			next.ServeHTTP(w, r.WithContext(ContextWithState(r.Context(), st)))
		})
	}
}

// RedirectAuthenticated fronts the public pages. A visitor who turns out
// to be logged in is moved to their landing path; everyone else falls
// through, including sessions still resolving.
func RedirectAuthenticated(m *Manager, cookies *CookieCodec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := m.Resolve(r.Context(), cookies.SessionID(r))
			if st.Resolved && st.Authenticated && st.User != nil && IsPublicPath(r.URL.Path) {
				http.Redirect(w, r, RedirectPath(st.User), http.StatusFound)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithState(r.Context(), st)))
		})
	}
}
