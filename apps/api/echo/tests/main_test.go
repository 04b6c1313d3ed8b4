package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	echoapi "github.com/trezcool/masomo-bff/apps/api/echo"
	"github.com/trezcool/masomo-bff/core"
	"github.com/trezcool/masomo-bff/core/auth"
	"github.com/trezcool/masomo-bff/core/dashboard"
	"github.com/trezcool/masomo-bff/services/upstream"
	inmemrl "github.com/trezcool/masomo-bff/storage/ratelimit/inmem"
	"github.com/trezcool/masomo-bff/tests"
)

type httpErr struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

type app struct {
	server *echoapi.Server
	conf   *core.Config
	logs   *testutil.Buffer
}

// newApp builds a server from a test config. A nil svc means the real aggregator over upstream clients.
func newApp(t *testing.T, overrides map[string]interface{}, svc dashboard.Service) *app {
	t.Helper()
	conf := testutil.NewConfig(t, overrides)
	logger, logs := testutil.NewLogger()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)

	if svc == nil {
		svc = dashboard.NewService(conf.Upstream, func(baseURL string, headers http.Header) dashboard.UpstreamClient {
			return upstream.NewClient(baseURL, headers, upstream.WithLogger(logger), upstream.WithTimeout(conf.Upstream.Timeout))
		}, logger)
	}

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:         conf,
		Logger:       logger,
		Validate:     validate,
		Translator:   translator,
		DashboardSvc: svc,
		RateStore:    inmemrl.NewWindowStore(),
		Verifier:     auth.NewVerifier(conf.SecretKey),
		AccessLog:    io.Discard,
	})
	return &app{server: server, conf: conf, logs: logs}
}

func (a *app) do(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	a.server.ServeHTTP(rec, req)
	return rec
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func adminToken(t *testing.T) string {
	return testutil.NewToken(t, testutil.Secret, 1, "root", []string{auth.RoleAdmin}, time.Hour)
}

func studentToken(t *testing.T, id int64) string {
	return testutil.NewToken(t, testutil.Secret, id, "student", []string{"student"}, time.Hour)
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

// decode unmarshals a response body into a generic map.
func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if !assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String()) {
		t.FailNow()
	}
	return out
}

// backend is a fake upstream serving canned bodies by request URI.
type backend struct {
	*httptest.Server

	mu       sync.Mutex
	requests []*http.Request
	bodies   [][]byte
}

type reply struct {
	status int
	body   string
}

func newBackend(t *testing.T, routes map[string]reply) *backend {
	t.Helper()
	b := &backend{}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.requests = append(b.requests, r.Clone(r.Context()))
		b.bodies = append(b.bodies, body)
		b.mu.Unlock()

		rep, ok := routes[r.URL.RequestURI()]
		if !ok {
			rep, ok = routes[r.URL.Path]
		}
		if !ok {
			rep = reply{status: http.StatusNotFound, body: `{"code":404,"message":"no route"}`}
		}
		if rep.status == 0 {
			rep.status = http.StatusOK
		}
		w.WriteHeader(rep.status)
		_, _ = io.WriteString(w, rep.body)
	}))
	t.Cleanup(b.Close)
	return b
}

func (b *backend) lastRequest(t *testing.T) (*http.Request, []byte) {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.requests) == 0 {
		t.Fatal("backend received no request")
	}
	n := len(b.requests) - 1
	return b.requests[n], b.bodies[n]
}

func (b *backend) allRequests() []*http.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*http.Request(nil), b.requests...)
}
