package gateway

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	breakerFailureThreshold = 5
	breakerCooldown         = 30 * time.Second
)

type route struct {
	prefix  string
	name    string
	proxy   *httputil.ReverseProxy
	breaker *CircuitBreaker
}

// Proxy routes requests to backend services by path prefix. Each route has
// its own circuit breaker; an open circuit or an unreachable upstream both
// produce the 503 fallback body.
type Proxy struct {
	routes []route
	logger *slog.Logger
}

// NewProxy builds routes from a prefix-to-upstream map. Longer prefixes win
// when several match.
func NewProxy(routeMap map[string]string, upstreamTimeout time.Duration, logger *slog.Logger) (*Proxy, error) {
	routes := make([]route, 0, len(routeMap))
	for prefix, upstream := range routeMap {
		target, err := url.Parse(upstream)
		if err != nil {
			return nil, fmt.Errorf("parsing upstream %q for route %q: %w", upstream, prefix, err)
		}

		rt := route{
			prefix:  prefix,
			name:    serviceName(prefix),
			breaker: NewCircuitBreaker(breakerFailureThreshold, breakerCooldown),
		}

		rp := httputil.NewSingleHostReverseProxy(target)
		rp.Transport = &http.Transport{
			ResponseHeaderTimeout: upstreamTimeout,
		}
		breaker := rt.breaker
		name := rt.name
		rp.ModifyResponse = func(*http.Response) error {
			breaker.RecordSuccess()
			return nil
		}
		rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
			breaker.RecordFailure()
			logger.Error("upstream request failed",
				"service", name,
				"path", r.URL.Path,
				"error", err)
			writeFallback(w, name)
		}
		rt.proxy = rp
		routes = append(routes, rt)
	}

	sort.Slice(routes, func(i, j int) bool {
		return len(routes[i].prefix) > len(routes[j].prefix)
	})

	return &Proxy{routes: routes, logger: logger}, nil
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	for _, rt := range p.routes {
		if !strings.HasPrefix(r.URL.Path, rt.prefix) {
			continue
		}
		if !rt.breaker.Allow() {
			p.logger.Warn("circuit open, serving fallback",
				"service", rt.name,
				"path", r.URL.Path)
			writeFallback(w, rt.name)
			return
		}
		rt.proxy.ServeHTTP(w, r)
		return
	}

	http.NotFound(w, r)
}

// serviceName turns a route prefix like /api/v1/payment into
// "payment service" for the fallback body.
func serviceName(prefix string) string {
	trimmed := strings.Trim(prefix, "/")
	parts := strings.Split(trimmed, "/")
	return parts[len(parts)-1] + " service"
}

func writeFallback(w http.ResponseWriter, name string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	fmt.Fprintf(w, `{"message":%q}`, name+" unavailable")
}
