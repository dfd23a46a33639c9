package proxy

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/carebridge/webgateway/internal/session"
	"github.com/carebridge/webgateway/pkg/logger"
)

// Upstream proxies browser API calls to one backend service. The browser
// never sees the backend token: the proxy injects it from the resolved
// session, and any Authorization header the client sent is dropped.
type Upstream struct {
	name   string
	proxy  *httputil.ReverseProxy
	logger *slog.Logger
}

// New builds a proxy for one upstream. prefix is the browser-facing path
// prefix (for example "/api/bookings") stripped before forwarding.
func New(name, baseURL, prefix string, l *slog.Logger) (*Upstream, error) {
	target, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse %s upstream url: %w", name, err)
	}

	u := &Upstream{name: name, logger: l}
	u.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.URL.Path = strings.TrimPrefix(pr.In.URL.Path, prefix)
			if pr.Out.URL.Path == "" {
				pr.Out.URL.Path = "/"
			}
			pr.SetXForwarded()

			pr.Out.Header.Del("Authorization")
			pr.Out.Header.Del("Cookie")
			if st, ok := session.StateFromContext(pr.In.Context()); ok && st.Authenticated {
				pr.Out.Header.Set("Authorization", "Bearer "+st.Token)
			}
			if cid := logger.CorrelationIDFromContext(pr.In.Context()); cid != "" {
				pr.Out.Header.Set("X-Correlation-ID", cid)
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			l.Error("upstream proxy error", "upstream", name, "path", r.URL.Path, "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":{"code":"BAD_GATEWAY","message":"upstream unavailable"}}`))
		},
	}
	return u, nil
}

func (u *Upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.proxy.ServeHTTP(w, r)
}
