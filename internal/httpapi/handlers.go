package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/hellofresh/health-go/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"storefront.dev/internal/auth"
	"storefront.dev/internal/catalog"
	"storefront.dev/internal/obs"
)

// Service names select the route set a binary serves.
const (
	UserService    = "user-service"
	ProductService = "product-service"
	OrderService   = "order-service"
)

// Options wires one service instance.
type Options struct {
	Service        string
	Version        string
	Port           int
	LoginPath      string
	CookieName     string
	MaxBodyBytes   int64
	AllowedOrigins []string
	LoginBurst     int
	LoginPerSecond int
	TrustedProxies []string

	Auth     *auth.Service
	Policy   *auth.Policy
	Catalog  *catalog.Service
	Products catalog.Reader
	Health   *health.Health
}

// API is the HTTP layer of one service.
type API struct {
	opts     Options
	mux      *http.ServeMux
	pipeline *Pipeline
}

func New(opts Options) (*API, error) {
	if opts.Auth == nil {
		return nil, errors.New("httpapi: auth service is required")
	}
	if opts.LoginPath == "" {
		opts.LoginPath = "/user/login"
	}
	if opts.CookieName == "" {
		opts.CookieName = auth.DefaultCookieName
	}
	a := &API{opts: opts, mux: http.NewServeMux()}

	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.Handle("GET /metrics", obs.Handler())

	switch opts.Service {
	case UserService:
		a.routeUsers()
	case ProductService:
		if opts.Catalog == nil {
			return nil, errors.New("httpapi: product service needs a catalog")
		}
		a.routeProducts()
	case OrderService:
		if opts.Products == nil {
			return nil, errors.New("httpapi: order service needs a product client")
		}
		a.routeOrders()
	default:
		return nil, errors.New("httpapi: unknown service " + strconv.Quote(opts.Service))
	}

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "No handler found for "+r.Method+" "+r.URL.Path)
	})

	sec := &Security{
		Auth:           opts.Auth,
		Policy:         opts.Policy,
		CookieName:     opts.CookieName,
		TrustedProxies: opts.TrustedProxies,
	}
	if opts.Service == UserService {
		sec.LoginPath = opts.LoginPath
		sec.Limiter = NewIPLimiter(opts.LoginBurst, opts.LoginPerSecond)
	}
	a.pipeline = NewPipeline(a.mux, sec.Filters()...)
	return a, nil
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.pipeline
	h = MaxBodyBytes(h, a.opts.MaxBodyBytes)
	h = CORS(h, a.opts.AllowedOrigins)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = Recover(h)
	h = RequestID(h)
	h = obs.Instrument(h)
	return otelhttp.NewHandler(h, a.opts.Service)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": a.opts.Service,
		"version": a.opts.Version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if a.opts.Health == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
		return
	}
	check := a.opts.Health.Measure(r.Context())
	code := http.StatusOK
	if check.Status == health.StatusUnavailable {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, check)
}

func (a *API) status(w http.ResponseWriter, r *http.Request) {
	writeText(w, "Active")
}

func (a *API) env(w http.ResponseWriter, r *http.Request) {
	writeText(w, strconv.Itoa(a.opts.Port))
}
