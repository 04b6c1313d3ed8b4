// Package testutil holds fixtures shared by the test suites.
package testutil

import (
	"bytes"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/spf13/viper"

	"github.com/trezcool/masomo-bff/core"
	"github.com/trezcool/masomo-bff/core/auth"
	logsvc "github.com/trezcool/masomo-bff/services/logger"
)

const Secret = "test-secret"

// NewConfig returns a test-mode config. overrides are viper keys (see core.LoadConfig).
func NewConfig(t *testing.T, overrides map[string]interface{}) *core.Config {
	t.Helper()
	v := viper.New()
	v.Set("env", core.EnvTest)
	v.Set("secretKey", Secret)
	for k, val := range overrides {
		v.Set(k, val)
	}
	conf, err := core.LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	return conf
}

// NewToken signs an HS256 token for the given caller, valid for ttl (negative ttl means expired).
func NewToken(t *testing.T, secret string, id int64, username string, roles []string, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := auth.Claims{
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
		UserID:   id,
		Username: username,
		Roles:    roles,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("NewToken() failed: %v", err)
	}
	return token
}

// Buffer is a goroutine-safe bytes.Buffer for capturing log output.
type Buffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// NewLogger returns a debug-level console logger writing into a Buffer.
func NewLogger() (core.Logger, *Buffer) {
	buf := new(Buffer)
	return logsvc.NewConsoleLogger(log.New(buf, "", 0), "debug"), buf
}
