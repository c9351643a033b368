package apikey

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStaticValidate(t *testing.T) {
	s := NewStatic([]string{"alpha", " ", "beta"})
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	info, err := s.Validate(context.Background(), "beta")
	if err != nil {
		t.Fatal(err)
	}
	if info.Name != "config-3" || info.ID != HashKey("beta")[:12] {
		t.Errorf("info = %+v", info)
	}
	if _, err := s.Validate(context.Background(), "gamma"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("err = %v, want ErrInvalidKey", err)
	}
}

type stubValidator struct {
	info *KeyInfo
	err  error
}

func (s stubValidator) Validate(context.Context, string) (*KeyInfo, error) { return s.info, s.err }

func TestChain(t *testing.T) {
	ctx := context.Background()
	ok := stubValidator{info: &KeyInfo{Name: "db"}}
	chain := Chain{NewStatic([]string{"alpha"}), ok}
	if info, err := chain.Validate(ctx, "other"); err != nil || info.Name != "db" {
		t.Errorf("fallthrough: %+v, %v", info, err)
	}
	if info, err := chain.Validate(ctx, "alpha"); err != nil || info.Name != "config-1" {
		t.Errorf("first match: %+v, %v", info, err)
	}

	expired := Chain{stubValidator{err: ErrExpiredKey}, ok}
	if _, err := expired.Validate(ctx, "x"); !errors.Is(err, ErrExpiredKey) {
		t.Errorf("expired keys must stop the chain, err = %v", err)
	}
	if _, err := (Chain{}).Validate(ctx, "x"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("empty chain err = %v", err)
	}
}

func TestGenerateKey(t *testing.T) {
	a, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := GenerateKey()
	if len(a) != 64 || a == b {
		t.Errorf("keys %q and %q", a, b)
	}
}

func TestRequire(t *testing.T) {
	var seen *KeyInfo
	h := Require(Chain{NewStatic([]string{"secret"}), stubValidator{err: ErrInvalidKey}})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong", "X-API-Key", "nope", http.StatusUnauthorized},
		{"bearer", "Authorization", "Bearer secret", http.StatusNoContent},
		{"header", "X-API-Key", "secret", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/index/rebuild", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
	if seen == nil || seen.Name != "config-1" {
		t.Errorf("key info in context = %+v", seen)
	}
}

func TestRequireBackendError(t *testing.T) {
	h := Require(stubValidator{err: errors.New("db down")})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-API-Key", "k")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
