package handler

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/carebridge/webgateway/internal/session"
)

var pageTmpl = template.Must(template.New("page").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}} · CareBridge</title>
<link rel="stylesheet" href="/static/app.css">
</head>
<body>
<div id="root" data-page="{{.Page}}"></div>
<script src="/static/app.js"></script>
</body>
</html>
`))

type pageData struct {
	Title string
	Page  string
}

// PageHandler serves the application shell for browser navigations. The
// shell is identical across pages apart from the title and page marker;
// the client script hydrates against GET /session.
type PageHandler struct {
	logger *slog.Logger
}

func NewPageHandler(logger *slog.Logger) *PageHandler {
	return &PageHandler{logger: logger}
}

func (h *PageHandler) page(title, page string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		if err := pageTmpl.Execute(w, pageData{Title: title, Page: page}); err != nil {
			h.logger.Error("render page shell", "page", page, "error", err)
		}
	}
}

func (h *PageHandler) Home() http.HandlerFunc     { return h.page("Welcome", "home") }
func (h *PageHandler) Login() http.HandlerFunc    { return h.page("Sign in", "login") }
func (h *PageHandler) Register() http.HandlerFunc { return h.page("Create account", "register") }
func (h *PageHandler) VerifyID() http.HandlerFunc { return h.page("Verify your identity", "verify-id") }

func (h *PageHandler) Caregivers() http.HandlerFunc {
	return h.page("Find caregivers", "caregivers")
}
func (h *PageHandler) CaregiverProfile() http.HandlerFunc {
	return h.page("Caregiver profile", "caregiver-profile")
}
func (h *PageHandler) Sessions() http.HandlerFunc {
	return h.page("Care sessions", "sessions")
}
func (h *PageHandler) SessionDetail() http.HandlerFunc {
	return h.page("Session details", "session-detail")
}
func (h *PageHandler) Appointments() http.HandlerFunc {
	return h.page("Appointments", "appointments")
}
func (h *PageHandler) AppointmentDetail() http.HandlerFunc {
	return h.page("Appointment details", "appointment-detail")
}
func (h *PageHandler) Social() http.HandlerFunc  { return h.page("Community", "social") }
func (h *PageHandler) Profile() http.HandlerFunc { return h.page("My profile", "profile") }

// Dashboard is the role-neutral entry point. It never renders; it sends
// the session user to whichever dashboard their role owns.
func (h *PageHandler) Dashboard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, _ := session.StateFromContext(r.Context())
		http.Redirect(w, r, session.RedirectPath(st.User), http.StatusFound)
	}
}

// RoleDashboard renders the dashboard shell only when the session user's
// role matches the path; a cross-role visit is sent to the right landing
// path instead.
func (h *PageHandler) RoleDashboard(userType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := session.StateFromContext(r.Context())
		if ok && st.User != nil && st.User.UserType != userType {
			http.Redirect(w, r, session.RedirectPath(st.User), http.StatusFound)
			return
		}
		h.page("Dashboard", userType+"-dashboard")(w, r)
	}
}
