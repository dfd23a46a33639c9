package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carebridge/webgateway/internal/config"
	"github.com/carebridge/webgateway/internal/domain"
	gwmiddleware "github.com/carebridge/webgateway/internal/middleware"
	"github.com/carebridge/webgateway/internal/proxy"
	"github.com/carebridge/webgateway/internal/session"
	apperrors "github.com/carebridge/webgateway/pkg/errors"
	"github.com/carebridge/webgateway/pkg/health"
	"github.com/carebridge/webgateway/pkg/httputil"
	pkgmiddleware "github.com/carebridge/webgateway/pkg/middleware"
)

// Upstreams bundles the backend proxies the router mounts under /api,
// plus the frontend asset origin served under /static.
type Upstreams struct {
	Account *proxy.Upstream
	Booking *proxy.Upstream
	Care    *proxy.Upstream
	Social  *proxy.Upstream
	Assets  *proxy.Upstream
}

// NewRouter builds the chi router: global middleware, health and metrics,
// the session endpoints, guarded page routes and the API proxies.
func NewRouter(
	cfg *config.Config,
	manager *session.Manager,
	cookies *session.CookieCodec,
	sessions *SessionHandler,
	pages *PageHandler,
	upstreams Upstreams,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(pkgmiddleware.CORS(pkgmiddleware.CORSConfig{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "X-Correlation-ID"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
		Environment:      cfg.Environment,
	}))
	r.Use(pkgmiddleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(pkgmiddleware.RequestLogging(logger))
	r.Use(pkgmiddleware.PrometheusMetrics("webgateway"))
	r.Use(pkgmiddleware.Tracing("webgateway"))
	r.Use(pkgmiddleware.RequestLogger(logger))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	// Frontend bundle, stylesheets and images come from the asset origin.
	r.Handle("/static/*", upstreams.Assets)

	// Session lifecycle. Rate limited so credential stuffing stops here.
	r.Route("/session", func(r chi.Router) {
		r.Use(gwmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, logger))
		r.Get("/", sessions.Get)
		r.Get("/verification", sessions.Verification)
		r.Post("/login", sessions.Login)
		r.Post("/register", sessions.Register)
		r.Post("/logout", sessions.Logout)
	})

	// API proxies. The session is attached, not enforced: the backend is
	// the authority on per-endpoint authorization.
	r.Route("/api", func(r chi.Router) {
		r.Use(session.Attach(manager, cookies))
		r.Handle("/account/*", upstreams.Account)
		r.Handle("/bookings/*", upstreams.Booking)
		r.Handle("/care/*", upstreams.Care)
		r.Handle("/social/*", upstreams.Social)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			httputil.WriteError(w, r, apperrors.NotFound("route", r.URL.Path), logger)
		})
	})

	// Public pages: a visitor who turns out to be signed in is moved to
	// their landing path.
	r.Group(func(r chi.Router) {
		r.Use(session.RedirectAuthenticated(manager, cookies))
		r.Get(session.PathHome, pages.Home())
		r.Get(session.PathLogin, pages.Login())
		r.Get(session.PathRegister, pages.Register())
	})

	// Guarded pages: rendered only for a resolved, verified session of
	// the right role.
	r.Group(func(r chi.Router) {
		r.Use(session.Guard(manager, cookies))
		r.Get(session.PathVerifyID, pages.VerifyID())
		r.Get("/dashboard", pages.Dashboard())
		r.Get(session.PathPregnantDashboard, pages.RoleDashboard(domain.UserTypePregnant))
		r.Get(session.PathCaregiverDashboard, pages.RoleDashboard(domain.UserTypeCaregiver))
		r.Get("/caregivers", pages.Caregivers())
		r.Get("/caregivers/{id}", pages.CaregiverProfile())
		r.Get("/sessions", pages.Sessions())
		r.Get("/sessions/{id}", pages.SessionDetail())
		r.Get("/appointments", pages.Appointments())
		r.Get("/appointments/{id}", pages.AppointmentDetail())
		r.Get("/social", pages.Social())
		r.Get("/profile", pages.Profile())
	})

	return r
}
