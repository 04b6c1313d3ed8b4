package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_legacyProxy(t *testing.T) {
	legacy := newBackend(t, map[string]reply{
		"/api/users/me":         {body: `{"foo":1}`},
		"/api/broken":           {status: http.StatusServiceUnavailable, body: "Internal failure"},
		"/api/empty":            {body: "  "},
		"/api/gone":             {status: http.StatusNoContent},
		"/api/double?x=1&y=%20": {body: `"{\"code\":0,\"data\":[1]}"`},
		"/api/echo":             {status: http.StatusCreated, body: `{"created":true}`},
	})
	a := newApp(t, map[string]interface{}{"upstreamLegacy": legacy.URL}, nil)
	token := studentToken(t, 7)

	tests := []httpTest{
		{name: "json passthrough", path: "/api/users/me", wantCode: http.StatusOK, wantData: []byte(`{"foo":1}`)},
		{
			name: "text error body", path: "/api/broken", wantCode: http.StatusServiceUnavailable,
			wantData: []byte(`{"code":503,"message":"Internal failure"}`),
		},
		{
			name: "legacy 404", path: "/api/unknown", wantCode: http.StatusNotFound,
			wantData: []byte(`{"code":404,"message":"no route"}`),
		},
		{name: "double encoded", path: "/api/double?x=1&y=%20", wantCode: http.StatusOK, wantData: []byte(`{"code":0,"data":[1]}`)},
		{
			name: "unknown bff path falls through", path: "/api/bff/nope", wantCode: http.StatusNotFound,
			wantData: []byte(`{"code":404,"message":"no route"}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, token)
			checkCodeAndData(t, tt, a.do(req, rec))
		})
	}

	t.Run("forwards allowed headers only", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/users/me", token)
		req.Header.Set("X-Trace-Id", "abc123")
		req.Header.Set("Cookie", "sid=1")
		req.Header.Set("X-Internal", "secret")
		a.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)

		got, _ := legacy.lastRequest(t)
		assert.Equal(t, "Bearer "+token, got.Header.Get("Authorization"))
		assert.Equal(t, "abc123", got.Header.Get("X-Trace-Id"))
		assert.Equal(t, "sid=1", got.Header.Get("Cookie"))
		assert.Empty(t, got.Header.Get("X-Internal"))
	})

	t.Run("forwards the body", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/echo", token, []byte("{\n  \"name\": \"x\"\n}"))
		req.Header.Del("Content-Type")
		a.do(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		got, body := legacy.lastRequest(t)
		assert.Equal(t, http.MethodPost, got.Method)
		assert.Equal(t, `{"name":"x"}`, string(body))
		assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	})

	t.Run("empty legacy body", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/api/empty", token)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: []byte(`{"code":200,"message":"Upstream response without JSON"}`),
		}, a.do(req, rec))

		req, rec = newAuthRequest(http.MethodDelete, "/api/gone", token)
		a.do(req, rec)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())
	})
}

func Test_legacyProxy_prefixRewrite(t *testing.T) {
	legacy := newBackend(t, map[string]reply{"/api/users/me": {body: `{"ok":true}`}})
	a := newApp(t, map[string]interface{}{"upstreamLegacy": legacy.URL + "/api/"}, nil)

	req, rec := newAuthRequest(http.MethodGet, "/api/users/me?full=1", studentToken(t, 7))
	a.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got, _ := legacy.lastRequest(t)
	assert.Equal(t, "/api/users/me", got.URL.Path)
	assert.Equal(t, "full=1", got.URL.RawQuery)
}

func Test_legacyProxy_failures(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		a := newApp(t, nil, nil)
		req, rec := newAuthRequest(http.MethodGet, "/api/users/me", studentToken(t, 7))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusInternalServerError,
			wantData: marchallObj(t, httpErr{Code: http.StatusInternalServerError, Message: "BE_BACKEND_URL is not configured"}),
		}, a.do(req, rec))
	})

	t.Run("unreachable", func(t *testing.T) {
		down := newBackend(t, nil)
		down.Close()
		a := newApp(t, map[string]interface{}{"upstreamLegacy": down.URL}, nil)
		req, rec := newAuthRequest(http.MethodGet, "/api/users/me", studentToken(t, 7))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadGateway,
			wantData: marchallObj(t, httpErr{Code: http.StatusBadGateway, Message: "legacy backend unavailable"}),
		}, a.do(req, rec))
	})

	t.Run("auth still applies", func(t *testing.T) {
		a := newApp(t, map[string]interface{}{"upstreamLegacy": "http://127.0.0.1:1"}, nil)
		req, rec := newRequest(http.MethodGet, "/api/users/me")
		assert.Equal(t, http.StatusUnauthorized, a.do(req, rec).Code)
	})
}
