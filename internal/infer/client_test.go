package infer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, 5*time.Second, zerolog.Nop()), srv
}

func TestAskReturnsAnswer(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Apply firm pressure.  "}}]}`))
	})
	a := c.Ask(context.Background(), "How do I stop bleeding?")
	if a.Failed() {
		t.Fatalf("unexpected failure: %+v", a)
	}
	if a.String() != "Apply firm pressure." {
		t.Fatalf("unexpected answer: %q", a.String())
	}
}

func TestAskEmptyChoicesIsSentinel(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})
	a := c.Ask(context.Background(), "q")
	if !a.Failed() || a.Kind != FailEmpty {
		t.Fatalf("expected empty-response failure, got %+v", a)
	}
	if !IsSentinel(a.String()) {
		t.Fatalf("serialized failure must be a sentinel: %q", a.String())
	}
}

func TestAskHTTPErrorIsSentinel(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"no model loaded"}}`, http.StatusInternalServerError)
	})
	a := c.Ask(context.Background(), "q")
	if !a.Failed() || a.Kind != FailAPI {
		t.Fatalf("expected api failure, got %+v", a)
	}
	if !IsSentinel(a.String()) {
		t.Fatalf("serialized failure must be a sentinel: %q", a.String())
	}
}

func TestAskTransportErrorIsSentinel(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close() // nothing listening anymore
	c := New(url, 2*time.Second, zerolog.Nop())
	a := c.Ask(context.Background(), "q")
	if !a.Failed() {
		t.Fatalf("expected failure, got %+v", a)
	}
	if got := a.String(); !IsSentinel(got) {
		t.Fatalf("serialized failure must be a sentinel: %q", got)
	}
}

func TestProbe(t *testing.T) {
	ok, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"t"}}]}`))
	})
	if err := ok.Probe(context.Background()); err != nil {
		t.Fatalf("probe against healthy server: %v", err)
	}

	down, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "loading", http.StatusServiceUnavailable)
	})
	if err := down.Probe(context.Background()); err == nil {
		t.Fatalf("probe should fail while no model is serving")
	}
}

func TestIsSentinel(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"ERROR: something", true},
		{"API Call Error: boom", true},
		{"ERRORS happen sometimes", true},
		{"Apply pressure to the wound.", false},
		{"", false},
	}
	for _, c := range cases {
		if got := IsSentinel(c.in); got != c.want {
			t.Fatalf("IsSentinel(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
