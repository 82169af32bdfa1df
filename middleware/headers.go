package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/mnehpets/httprpc/endpoint"
)

// APIHeadersProcessor sets the security headers suited to a data API and,
// when CORS is configured, answers cross-origin requests.
//
// Every response carries:
//   - X-Content-Type-Options: nosniff
//   - Referrer-Policy: no-referrer
//   - Content-Security-Policy: default-src 'none'; frame-ancestors 'none'
//   - Strict-Transport-Security, when HSTSMaxAge is positive
//
// CORS preflight requests (OPTIONS with Origin and
// Access-Control-Request-Method) are answered with 204 without reaching the
// endpoint.
type APIHeadersProcessor struct {
	// HSTSMaxAge is the Strict-Transport-Security max-age in seconds.
	// Zero disables the header.
	HSTSMaxAge int
	CORS       *CORSConfig
}

// CORSConfig configures Cross-Origin Resource Sharing.
type CORSConfig struct {
	// AllowedOrigins lists the origins allowed to call. "*" allows any
	// origin, but never together with AllowCredentials.
	AllowedOrigins []string
	// AllowedMethods defaults to GET, POST.
	AllowedMethods []string
	// AllowedHeaders defaults to Accept, Content-Type, X-Request-ID.
	AllowedHeaders []string
	// ExposedHeaders defaults to X-Request-ID.
	ExposedHeaders   []string
	AllowCredentials bool
	// MaxAge is how long in seconds a preflight result may be cached.
	MaxAge int
}

// NewAPIHeadersProcessor creates a processor with a one year HSTS max-age.
// cors may be nil.
func NewAPIHeadersProcessor(cors *CORSConfig) *APIHeadersProcessor {
	return &APIHeadersProcessor{HSTSMaxAge: 31536000, CORS: cors}
}

// Process implements endpoint.Processor.
func (p *APIHeadersProcessor) Process(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
	h := w.Header()
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Referrer-Policy", "no-referrer")
	h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	if p.HSTSMaxAge > 0 {
		h.Set("Strict-Transport-Security", "max-age="+strconv.Itoa(p.HSTSMaxAge)+"; includeSubDomains")
	}

	if p.CORS != nil {
		h.Add("Vary", "Origin")
		origin := r.Header.Get("Origin")
		if origin != "" {
			p.CORS.apply(h, r, origin)
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				return endpoint.Error(http.StatusNoContent, "", nil)
			}
		}
	}
	return next(w, r)
}

func (c *CORSConfig) apply(h http.Header, r *http.Request, origin string) {
	switch {
	case slices.Contains(c.AllowedOrigins, origin):
		h.Set("Access-Control-Allow-Origin", origin)
	case slices.Contains(c.AllowedOrigins, "*") && !c.AllowCredentials:
		h.Set("Access-Control-Allow-Origin", "*")
	default:
		return
	}
	if c.AllowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	h.Set("Access-Control-Expose-Headers", strings.Join(orDefault(c.ExposedHeaders, RequestIDHeader), ", "))

	if r.Method != http.MethodOptions {
		return
	}
	h.Set("Access-Control-Allow-Methods", strings.Join(orDefault(c.AllowedMethods, http.MethodGet, http.MethodPost), ", "))
	h.Set("Access-Control-Allow-Headers", strings.Join(orDefault(c.AllowedHeaders, "Accept", "Content-Type", RequestIDHeader), ", "))
	if c.MaxAge > 0 {
		h.Set("Access-Control-Max-Age", strconv.Itoa(c.MaxAge))
	}
}

func orDefault(v []string, def ...string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}

var _ endpoint.Processor = (*APIHeadersProcessor)(nil)
