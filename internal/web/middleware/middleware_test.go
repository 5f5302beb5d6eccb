package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func echoRemoteAddr() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.RemoteAddr))
	})
}

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		trusted []string
		headers map[string]string
		want    string
	}{
		{
			name:    "untrusted client keeps socket address",
			remote:  "203.0.113.9:5000",
			trusted: []string{"10.0.0.0/8"},
			headers: map[string]string{"X-Real-IP": "1.2.3.4"},
			want:    "203.0.113.9:5000",
		},
		{
			name:    "trusted proxy real ip",
			remote:  "10.1.2.3:5000",
			trusted: []string{"10.0.0.0/8"},
			headers: map[string]string{"X-Real-IP": "198.51.100.7"},
			want:    "198.51.100.7",
		},
		{
			name:    "trusted proxy forwarded for takes first hop",
			remote:  "10.1.2.3:5000",
			trusted: []string{"10.0.0.0/8"},
			headers: map[string]string{"X-Forwarded-For": "198.51.100.7, 10.1.2.3"},
			want:    "198.51.100.7",
		},
		{
			name:    "bare ip entry is trusted",
			remote:  "127.0.0.1:5000",
			trusted: []string{"127.0.0.1"},
			headers: map[string]string{"X-Real-IP": "198.51.100.8"},
			want:    "198.51.100.8",
		},
		{
			name:    "invalid header ignored",
			remote:  "10.1.2.3:5000",
			trusted: []string{"10.0.0.0/8"},
			headers: map[string]string{"X-Real-IP": "not-an-ip"},
			want:    "10.1.2.3:5000",
		},
		{
			name:    "no trusted proxies",
			remote:  "10.1.2.3:5000",
			trusted: []string{"garbage"},
			headers: map[string]string{"X-Real-IP": "198.51.100.7"},
			want:    "10.1.2.3:5000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()

			TrustedRealIP(tt.trusted)(echoRemoteAddr()).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Body.String())
		})
	}
}

func TestLogger_RecordsStatusAndSize(t *testing.T) {
	var captured *responseWriter
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = w.(*responseWriter)
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("short"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code, "first WriteHeader wins")
	assert.Equal(t, http.StatusTeapot, captured.status)
	assert.Equal(t, 5, captured.bytes)
	assert.Equal(t, rec, captured.Unwrap())
}
