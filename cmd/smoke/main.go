// Command smoke drives signup, login, a guarded call and logout through the
// gateway and exits non-zero on the first unexpected status.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"storefront.dev/internal/auth"
	"storefront.dev/internal/obs"
)

type envelope struct {
	Status  int            `json:"status"`
	Message string         `json:"message"`
	Error   string         `json:"error"`
	Body    map[string]any `json:"body"`
}

type step struct {
	name   string
	method string
	path   string
	body   any
	want   int
}

func main() {
	var (
		baseURL  = flag.String("base-url", envOr("STOREFRONT_GATEWAY_URL", "http://localhost:8080"), "gateway base URL")
		roleID   = flag.Int64("role", 2, "role id for the new user")
		category = flag.String("category", "Books", "category to list")
		cookie   = flag.String("cookie", auth.DefaultCookieName, "token cookie name")
	)
	flag.Parse()
	log := obs.Logger()

	client := resty.New().
		SetBaseURL(*baseURL).
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json")

	username := fmt.Sprintf("smoke-%d", time.Now().UnixNano())
	password := "smoke-password"
	steps := []step{
		{"signup", http.MethodPost, "/user/signup", map[string]any{"username": username, "password": password, "roles": []int64{*roleID}}, http.StatusCreated},
		{"anonymous guarded call", http.MethodGet, "/order/product?category=" + *category, nil, http.StatusUnauthorized},
		{"login", http.MethodPost, "/user/login", map[string]string{"username": username, "password": password}, http.StatusOK},
		{"guarded call", http.MethodGet, "/order/product?category=" + *category, nil, http.StatusOK},
		{"logout", http.MethodPost, "/user/logout", nil, http.StatusOK},
	}

	var token *http.Cookie
	for _, s := range steps {
		var out envelope
		req := client.R().SetResult(&out).SetError(&out)
		if s.body != nil {
			req.SetBody(s.body)
		}
		if token != nil {
			req.SetCookie(token)
		}
		resp, err := req.Execute(s.method, s.path)
		if err != nil {
			log.WithError(err).WithField("step", s.name).Fatal("request failed")
		}
		entry := log.WithFields(logrus.Fields{"step": s.name, "status": resp.StatusCode(), "message": out.Message})
		if resp.StatusCode() != s.want {
			entry.WithField("want", s.want).Error("unexpected status")
			os.Exit(1)
		}
		entry.Info("ok")
		for _, c := range resp.Cookies() {
			if c.Name == *cookie && c.Value != "" {
				token = &http.Cookie{Name: c.Name, Value: c.Value}
			}
		}
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
