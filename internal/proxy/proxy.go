package proxy

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/209works/api-platform/internal/circuitbreaker"
	"github.com/gin-gonic/gin"
)

// Upstream forwards validated API traffic to the 209 Works job-board
// backend, wrapped in a circuit breaker so a dead backend fails fast.
type Upstream struct {
	target  *url.URL
	proxy   *httputil.ReverseProxy
	breaker *circuitbreaker.CircuitBreaker
}

func New(targetURL string, breakerCfg circuitbreaker.Config) (*Upstream, error) {
	target, err := url.Parse(targetURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL %q: %w", targetURL, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("upstream URL %q must be absolute", targetURL)
	}

	return &Upstream{
		target:  target,
		proxy:   httputil.NewSingleHostReverseProxy(target),
		breaker: circuitbreaker.New(breakerCfg),
	}, nil
}

// Handle forwards the request to the backend.
func (u *Upstream) Handle(c *gin.Context) {
	err := u.breaker.Call(func() error {
		recorder := &responseRecorder{
			ResponseWriter: c.Writer,
			statusCode:     http.StatusOK,
		}

		req := c.Request
		req.URL.Host = u.target.Host
		req.URL.Scheme = u.target.Scheme
		req.Header.Set("X-Forwarded-Host", req.Host)
		req.Host = u.target.Host

		if clientIP := c.ClientIP(); clientIP != "" {
			req.Header.Set("X-Forwarded-For", clientIP)
		}

		c.Writer = recorder
		u.proxy.ServeHTTP(c.Writer, req)

		if recorder.statusCode >= 500 {
			return errors.New("backend error")
		}

		return nil
	})

	if err == circuitbreaker.ErrCircuitOpen {
		log.Printf("circuit breaker open for upstream %s", u.target.Host)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Service temporarily unavailable",
		})
	}
	// Other errors already produced a response via the reverse proxy.
}

func (u *Upstream) BreakerMetrics() circuitbreaker.Metrics {
	return u.breaker.Metrics()
}

func (u *Upstream) ResetBreaker() {
	u.breaker.Reset()
}

// Captures the response status code for the breaker's 5xx check.
type responseRecorder struct {
	gin.ResponseWriter
	statusCode int
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
