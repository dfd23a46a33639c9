package handler

import (
	"log/slog"
	"net/http"

	"github.com/carebridge/webgateway/internal/domain"
	"github.com/carebridge/webgateway/internal/session"
	"github.com/carebridge/webgateway/pkg/httputil"
	"github.com/carebridge/webgateway/pkg/validator"
)

// maxRegisterBody caps the multipart registration upload (profile picture
// included) forwarded to the account service.
const maxRegisterBody = 10 << 20

// SessionHandler exposes the session lifecycle to the browser: who am I,
// log in, register, log out.
type SessionHandler struct {
	manager *session.Manager
	cookies *session.CookieCodec
	logger  *slog.Logger
}

func NewSessionHandler(manager *session.Manager, cookies *session.CookieCodec, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{manager: manager, cookies: cookies, logger: logger}
}

// sessionView is the GET /session response body.
type sessionView struct {
	Resolved      bool         `json:"resolved"`
	Authenticated bool         `json:"authenticated"`
	User          *domain.User `json:"user,omitempty"`
	Redirect      string       `json:"redirect,omitempty"`
}

// Get reports the current session state. The redirect field tells the
// client where this user lands by role and verification status.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	st := h.manager.Resolve(r.Context(), h.cookies.SessionID(r))

	view := sessionView{Resolved: st.Resolved, Authenticated: st.Authenticated}
	if st.Authenticated && st.User != nil {
		view.User = st.User
		view.Redirect = session.RedirectPath(st.User)
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

// Login authenticates credentials against the account service and sets the
// session cookie on success.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if err := validator.DecodeAndValidate(r, &creds); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	sid, res := h.manager.Login(r.Context(), creds)
	if !res.Success {
		httputil.WriteJSON(w, failureStatus(res, http.StatusUnauthorized), res)
		return
	}

	if err := h.cookies.Issue(w, sid); err != nil {
		h.logger.Error("issue session cookie", "error", err)
		httputil.WriteJSON(w, http.StatusInternalServerError, session.Result{Error: "Login failed. Please try again."})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// Register forwards the multipart signup form to the account service and,
// on success, sets the session cookie and points the client at ID
// verification.
func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxRegisterBody)

	sid, res := h.manager.Register(r.Context(), r.Header.Get("Content-Type"), body)
	if !res.Success {
		httputil.WriteJSON(w, failureStatus(res, http.StatusBadRequest), res)
		return
	}

	if err := h.cookies.Issue(w, sid); err != nil {
		h.logger.Error("issue session cookie", "error", err)
		httputil.WriteJSON(w, http.StatusInternalServerError, session.Result{Error: "Registration failed. Please try again."})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

// Verification reports the session user's ID verification status. The
// verify page polls this while documents are under review.
func (h *SessionHandler) Verification(w http.ResponseWriter, r *http.Request) {
	status, err := h.manager.VerificationStatus(r.Context(), h.cookies.SessionID(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

// Logout clears the session. Always succeeds, even with no session cookie.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	res := h.manager.Logout(r.Context(), h.cookies.SessionID(r))
	h.cookies.Clear(w)
	httputil.WriteJSON(w, http.StatusOK, res)
}

func failureStatus(res session.Result, fallback int) int {
	if len(res.Fields) > 0 {
		return http.StatusBadRequest
	}
	if res.Error == "Invalid response from server" {
		return http.StatusBadGateway
	}
	return fallback
}
