// Package cors decides which browser origins may call the API.
//
// The allowed origins come from configuration as a list of patterns:
//
//	https://todo.example.com   exact origin
//	https://*.vercel.app       "*" matches any run of characters except "/"
//	*                          any origin
package cors

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	chicors "github.com/go-chi/cors"
)

// Policy is an immutable table of allowed origin patterns.
type Policy struct {
	allowAll bool
	exact    map[string]struct{}
	patterns []*regexp.Regexp
}

// NewPolicy compiles the given origin patterns. Blank entries are ignored.
func NewPolicy(origins []string) (*Policy, error) {
	p := &Policy{exact: make(map[string]struct{})}
	for _, raw := range origins {
		origin := normalize(raw)
		switch {
		case origin == "":
			continue
		case origin == "*":
			p.allowAll = true
		case strings.Contains(origin, "*"):
			re, err := compilePattern(origin)
			if err != nil {
				return nil, fmt.Errorf("cors origin pattern %q: %w", raw, err)
			}
			p.patterns = append(p.patterns, re)
		default:
			p.exact[origin] = struct{}{}
		}
	}
	return p, nil
}

// Allows reports whether a request from origin may be served.
func (p *Policy) Allows(origin string) bool {
	origin = normalize(origin)
	if origin == "" {
		return false
	}
	if p.allowAll {
		return true
	}
	if _, ok := p.exact[origin]; ok {
		return true
	}
	for _, re := range p.patterns {
		if re.MatchString(origin) {
			return true
		}
	}
	return false
}

// Middleware applies the policy to the task API's methods.
func Middleware(p *Policy) func(http.Handler) http.Handler {
	return chicors.Handler(chicors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			return p.Allows(origin)
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

func normalize(origin string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(origin)), "/")
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return regexp.Compile("^" + strings.Join(parts, "[^/]*") + "$")
}
