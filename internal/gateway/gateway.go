// Package gateway is the edge proxy in front of the services. Routes come
// from configuration; routes flagged authorize run the token filter first.
package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hellofresh/health-go/v5"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"storefront.dev/internal/antpath"
	"storefront.dev/internal/auth"
	"storefront.dev/internal/config"
	"storefront.dev/internal/obs"
)

// Options wires the gateway.
type Options struct {
	Name         string
	Version      string
	Mode         string
	TraceEnabled bool
	CookieName   string
	Routes       []config.Route
	Verifier     TokenVerifier
	Health       *health.Health
	// Transport overrides the proxy transport; nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

type route struct {
	id        string
	paths     []string
	methods   []string
	authorize bool
	proxy     *httputil.ReverseProxy
}

func (r *route) matches(method, path string) bool {
	if len(r.methods) > 0 && !slices.Contains(r.methods, method) {
		return false
	}
	for _, p := range r.paths {
		if antpath.Match(p, path) {
			return true
		}
	}
	return false
}

// Gateway dispatches requests to the first matching route.
type Gateway struct {
	engine *gin.Engine
	routes []*route
	authz  gin.HandlerFunc
}

func New(opts Options) (*Gateway, error) {
	if opts.Name == "" {
		opts.Name = "gateway"
	}
	if opts.CookieName == "" {
		opts.CookieName = auth.DefaultCookieName
	}
	switch opts.Mode {
	case gin.ReleaseMode, gin.DebugMode, gin.TestMode:
		gin.SetMode(opts.Mode)
	}

	g := &Gateway{engine: gin.New()}
	for i, rc := range opts.Routes {
		r, err := compileRoute(rc, opts.Transport)
		if err != nil {
			return nil, fmt.Errorf("gateway route %d: %w", i, err)
		}
		if r.authorize && opts.Verifier == nil {
			return nil, fmt.Errorf("gateway route %s: authorize needs a token verifier", r.id)
		}
		g.routes = append(g.routes, r)
	}
	if opts.Verifier != nil {
		g.authz = AuthorizationFilter(opts.Verifier, opts.CookieName)
	}

	g.engine.Use(gin.Recovery())
	if opts.TraceEnabled {
		g.engine.Use(otelgin.Middleware(opts.Name))
	}
	g.engine.Use(requestID(), preLogFilter(), postLogFilter())

	g.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": opts.Name, "version": opts.Version})
	})
	g.engine.GET("/readyz", func(c *gin.Context) {
		if opts.Health == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ready"})
			return
		}
		check := opts.Health.Measure(c.Request.Context())
		code := http.StatusOK
		if check.Status == health.StatusUnavailable {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, check)
	})
	g.engine.GET("/metrics", gin.WrapH(obs.Handler()))
	g.engine.NoRoute(g.dispatch)
	return g, nil
}

// Handler returns the gateway with HTTP metrics applied.
func (g *Gateway) Handler() http.Handler {
	return obs.Instrument(g.engine)
}

func (g *Gateway) dispatch(c *gin.Context) {
	path := c.Request.URL.Path
	for _, r := range g.routes {
		if !r.matches(c.Request.Method, path) {
			continue
		}
		c.Set(routeIDKey, r.id)
		if r.authorize {
			g.authz(c)
			if c.IsAborted() {
				return
			}
		}
		r.proxy.ServeHTTP(c.Writer, c.Request)
		return
	}
	abortWithError(c, http.StatusNotFound, "No route found for "+c.Request.Method+" "+path)
}

func compileRoute(rc config.Route, transport http.RoundTripper) (*route, error) {
	if strings.TrimSpace(rc.ID) == "" {
		return nil, errors.New("id is required")
	}
	if len(rc.Paths) == 0 {
		return nil, errors.New("at least one path is required")
	}
	target, err := url.Parse(rc.Target)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid target %q", rc.Target)
	}
	methods := make([]string, 0, len(rc.Methods))
	for _, m := range rc.Methods {
		methods = append(methods, strings.ToUpper(strings.TrimSpace(m)))
	}
	return &route{
		id:        rc.ID,
		paths:     slices.Clone(rc.Paths),
		methods:   methods,
		authorize: rc.Authorize,
		proxy:     newProxy(rc, target, transport),
	}, nil
}

// errorBody matches the error envelope of the services.
type errorBody struct {
	Timestamp string `json:"timestamp"`
	Status    int    `json:"status"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

const timestampLayout = "2006-01-02 15:04:05"

func newErrorBody(status int, message, requestID string) errorBody {
	label := http.StatusText(status)
	if status == http.StatusNotFound {
		label = "Resource not found"
	}
	return errorBody{
		Timestamp: time.Now().Format(timestampLayout),
		Status:    status,
		Error:     label,
		Message:   message,
		RequestID: requestID,
	}
}

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, newErrorBody(status, message, c.GetString(requestIDKey)))
}
