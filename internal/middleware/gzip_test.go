package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func gzipTestHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("received: " + string(body)))
}

func TestGzipMiddleware(t *testing.T) {
	type want struct {
		statusCode      int
		contentEncoding string
		bodyContains    string
	}

	tests := []struct {
		name        string
		requestBody string
		compress    bool
		headers     map[string]string
		want        want
	}{
		{
			name:        "client accepts gzip",
			requestBody: "test request",
			headers: map[string]string{
				"Accept-Encoding": "gzip",
			},
			want: want{
				statusCode:      http.StatusOK,
				contentEncoding: "gzip",
				bodyContains:    "received: test request",
			},
		},
		{
			name:        "client does not accept gzip",
			requestBody: "plain request",
			headers:     map[string]string{},
			want: want{
				statusCode:      http.StatusOK,
				contentEncoding: "",
				bodyContains:    "received: plain request",
			},
		},
		{
			name:        "compressed request body",
			requestBody: "compressed payload",
			compress:    true,
			headers: map[string]string{
				"Content-Encoding": "gzip",
			},
			want: want{
				statusCode:   http.StatusOK,
				bodyContains: "received: compressed payload",
			},
		},
		{
			name:        "broken compressed body",
			requestBody: "not actually gzip",
			headers: map[string]string{
				"Content-Encoding": "gzip",
			},
			want: want{
				statusCode: http.StatusBadRequest,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body bytes.Buffer
			if tt.compress {
				gz := gzip.NewWriter(&body)
				if _, err := gz.Write([]byte(tt.requestBody)); err != nil {
					t.Fatalf("compress body: %v", err)
				}
				if err := gz.Close(); err != nil {
					t.Fatalf("close gzip writer: %v", err)
				}
			} else {
				body.WriteString(tt.requestBody)
			}

			req := httptest.NewRequest(http.MethodPost, "/", &body)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			rec := httptest.NewRecorder()
			GzipMiddleware(http.HandlerFunc(gzipTestHandler)).ServeHTTP(rec, req)

			res := rec.Result()
			defer res.Body.Close()

			if res.StatusCode != tt.want.statusCode {
				t.Fatalf("status = %d, want %d", res.StatusCode, tt.want.statusCode)
			}
			if tt.want.statusCode != http.StatusOK {
				return
			}

			if got := res.Header.Get("Content-Encoding"); got != tt.want.contentEncoding {
				t.Fatalf("content encoding = %q, want %q", got, tt.want.contentEncoding)
			}

			var reader io.Reader = res.Body
			if tt.want.contentEncoding == "gzip" {
				gz, err := gzip.NewReader(res.Body)
				if err != nil {
					t.Fatalf("gzip reader: %v", err)
				}
				defer gz.Close()
				reader = gz
			}

			respBody, err := io.ReadAll(reader)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			if !strings.Contains(string(respBody), tt.want.bodyContains) {
				t.Fatalf("body = %q, want it to contain %q", respBody, tt.want.bodyContains)
			}
		})
	}
}
