package gateway

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"storefront.dev/internal/audit"
	"storefront.dev/internal/config"
	"storefront.dev/internal/obs"
)

func newProxy(rc config.Route, target *url.URL, transport http.RoundTripper) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			if rc.StripPrefix > 0 {
				pr.Out.URL.Path = stripSegments(pr.Out.URL.Path, rc.StripPrefix)
				pr.Out.URL.RawPath = ""
			}
			pr.SetURL(target)
			pr.SetXForwarded()
			if rid := audit.RequestIDFromContext(pr.In.Context()); rid != "" {
				pr.Out.Header.Set(requestIDHeader, rid)
			}
			for k, v := range rc.RequestHeaders {
				pr.Out.Header.Set(k, v)
			}
		},
		ModifyResponse: func(resp *http.Response) error {
			for k, v := range rc.ResponseHeaders {
				resp.Header.Set(k, v)
			}
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			obs.Logger().WithContext(r.Context()).WithError(err).WithField("route", rc.ID).Warn("downstream unavailable")
			writeJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", audit.RequestIDFromContext(r.Context()))
		},
		Transport: transport,
	}
}

// stripSegments drops the first n path segments: ("/api/user/login", 1)
// becomes "/user/login".
func stripSegments(p string, n int) string {
	parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
	if n >= len(parts) {
		return "/"
	}
	return "/" + strings.Join(parts[n:], "/")
}
