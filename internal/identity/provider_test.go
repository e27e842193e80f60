package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPProvider_Login(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/login" {
			t.Fatalf("path = %s, want /api/login", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"principal":"p-1","token":"t-1"}`))
	}))
	defer ts.Close()

	provider := NewHTTPProvider(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	creds, err := provider.Login(ctx)
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if creds.Principal != "p-1" || creds.Token != "t-1" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}
}

func TestHTTPProvider_LoginRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	provider := NewHTTPProvider(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := provider.Login(ctx); !errors.Is(err, ErrLoginFailed) {
		t.Fatalf("Login error = %v, want ErrLoginFailed", err)
	}
}

func TestHTTPProvider_LoginEmptyCredentials(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"principal":"","token":""}`))
	}))
	defer ts.Close()

	provider := NewHTTPProvider(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := provider.Login(ctx); !errors.Is(err, ErrLoginFailed) {
		t.Fatalf("Login error = %v, want ErrLoginFailed", err)
	}
}
