package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPolicyAllows(t *testing.T) {
	policy, err := NewPolicy([]string{
		"http://localhost:3000",
		" https://todo.example.com/ ",
		"https://*.vercel.app",
		"",
	})
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}

	tests := []struct {
		origin string
		want   bool
	}{
		{"http://localhost:3000", true},
		{"HTTP://LOCALHOST:3000", true},
		{"http://localhost:3001", false},
		{"https://todo.example.com", true},
		{"http://todo.example.com", false},
		{"https://todo-master-gamma.vercel.app", true},
		{"https://preview.team.vercel.app", true},
		{"https://vercel.app", false},
		{"https://evil.com/.vercel.app", false},
		{"https://evil-vercel.app", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			if got := policy.Allows(tt.origin); got != tt.want {
				t.Fatalf("Allows(%q)=%v want=%v", tt.origin, got, tt.want)
			}
		})
	}
}

func TestPolicyWildcard(t *testing.T) {
	policy, err := NewPolicy([]string{"*"})
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}
	if !policy.Allows("https://anything.example") {
		t.Fatalf("wildcard policy should allow any origin")
	}
	if policy.Allows("") {
		t.Fatalf("requests without an origin are not CORS requests")
	}
}

func TestEmptyPolicyDeniesAll(t *testing.T) {
	policy, err := NewPolicy(nil)
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}
	if policy.Allows("http://localhost:3000") {
		t.Fatalf("empty policy should deny")
	}
}

func TestMiddlewarePreflight(t *testing.T) {
	policy, err := NewPolicy([]string{"http://localhost:3000"})
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := Middleware(policy)(next)

	req := httptest.NewRequest(http.MethodOptions, "/api/todos/1", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow-origin=%q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("allow-credentials=%q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/todos", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("disallowed origin got allow-origin=%q", got)
	}
}
