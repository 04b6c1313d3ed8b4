package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

type (
	Config struct {
		AppName      string
		Env          string
		Build        string
		Debug        bool
		TestMode     bool
		SecretKey    string
		RollbarToken string
		LogLevel     string
		Server       ServerConfig
		Auth         AuthConfig
		RateLimit    RateLimitConfig
		Upstream     UpstreamConfig
	}

	ServerConfig struct {
		Host            string
		DebugHost       string
		ShutdownTimeout time.Duration
		APIPrefix       string
		BFFPrefix       string
		BodyLimit       string
		CORSOrigins     []string
	}

	AuthConfig struct {
		Optional     bool
		ExcludePaths []string
	}

	RateLimitConfig struct {
		Strategy     string
		Window       time.Duration
		Max          int
		ByUser       bool
		ExcludePaths []string
		RedisURL     string
		RedisPrefix  string
	}

	UpstreamConfig struct {
		IntegratedURL   string
		CourseURL       string
		AttendanceURL   string
		HomeworkURL     string
		NotificationURL string
		LegacyURL       string
		Timeout         time.Duration
	}
)

const (
	RateLimitFixedWindow = "fixed-window"
	RateLimitTokenBucket = "token-bucket"
)

// env var -> config key
var envBindings = map[string][]string{
	"env":                  {"NODE_ENV", "ENV"},
	"build":                {"BUILD"},
	"appName":              {"APP_NAME"},
	"secretKey":            {"JWT_SECRET"},
	"rollbarToken":         {"ROLLBAR_TOKEN"},
	"logLevel":             {"LOG_LEVEL"},
	"port":                 {"BFF_PORT"},
	"host":                 {"BFF_HOST"},
	"debugHost":            {"DEBUG_HOST"},
	"shutdownTimeout":      {"SHUTDOWN_TIMEOUT"},
	"bodyLimit":            {"BODY_LIMIT"},
	"corsOrigins":          {"CORS_ORIGINS"},
	"authOptional":         {"AUTH_OPTIONAL"},
	"authExcludePaths":     {"AUTH_EXCLUDE_PATHS"},
	"rateLimitStrategy":    {"RATE_LIMIT_STRATEGY"},
	"rateLimitWindow":      {"RATE_LIMIT_WINDOW"},
	"rateLimitMax":         {"RATE_LIMIT_MAX"},
	"rateLimitByUser":      {"RATE_LIMIT_BY_USER"},
	"rateLimitExclude":     {"RATE_LIMIT_EXCLUDE_PATHS"},
	"redisURL":             {"REDIS_URL"},
	"redisPrefix":          {"REDIS_PREFIX"},
	"upstreamTimeout":      {"UPSTREAM_TIMEOUT"},
	"upstreamIntegrated":   {"BACKEND_INTEGRATED_URL"},
	"upstreamCourse":       {"BE_COURSE_URL"},
	"upstreamAttendance":   {"BE_ATT_URL"},
	"upstreamHomework":     {"BE_HW_URL"},
	"upstreamNotification": {"BE_NOTIFY_URL"},
	"upstreamLegacy":       {"BE_BACKEND_URL"},
}

// NewConfig loads the configuration from the environment (and config/.env.<env> if present).
func NewConfig() *Config {
	env := strings.ToLower(CleanString(os.Getenv("NODE_ENV")))
	if env == "" {
		env = strings.ToLower(CleanString(os.Getenv("ENV")))
	}
	if env == "" {
		env = EnvDevelopment
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+env)
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	v := viper.New()
	for key, envs := range envBindings {
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}
	v.AutomaticEnv()

	conf, err := LoadConfig(v)
	if err != nil {
		log.Fatalf("config.LoadConfig: %v", err)
	}
	return conf
}

// LoadConfig reads a Config from v, applying defaults for unset keys.
func LoadConfig(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	env := strings.ToLower(CleanString(v.GetString("env")))
	switch env {
	case EnvDevelopment, EnvTest, EnvProduction:
	default:
		return nil, errors.Errorf("unknown env %q", env)
	}

	conf := &Config{
		AppName:      v.GetString("appName"),
		Env:          env,
		Build:        v.GetString("build"),
		Debug:        env == EnvDevelopment,
		TestMode:     env == EnvTest,
		SecretKey:    v.GetString("secretKey"),
		RollbarToken: v.GetString("rollbarToken"),
		LogLevel:     strings.ToLower(v.GetString("logLevel")),
		Server: ServerConfig{
			Host:            v.GetString("host") + ":" + v.GetString("port"),
			DebugHost:       v.GetString("debugHost"),
			ShutdownTimeout: v.GetDuration("shutdownTimeout"),
			APIPrefix:       "/api",
			BFFPrefix:       "/api/bff",
			BodyLimit:       v.GetString("bodyLimit"),
			CORSOrigins:     splitList(v.GetString("corsOrigins")),
		},
		Auth: AuthConfig{
			Optional:     v.GetBool("authOptional"),
			ExcludePaths: splitList(v.GetString("authExcludePaths")),
		},
		RateLimit: RateLimitConfig{
			Strategy:     strings.ToLower(v.GetString("rateLimitStrategy")),
			Window:       v.GetDuration("rateLimitWindow"),
			Max:          v.GetInt("rateLimitMax"),
			ByUser:       v.GetBool("rateLimitByUser"),
			ExcludePaths: splitList(v.GetString("rateLimitExclude")),
			RedisURL:     v.GetString("redisURL"),
			RedisPrefix:  v.GetString("redisPrefix"),
		},
		Upstream: UpstreamConfig{
			IntegratedURL:   v.GetString("upstreamIntegrated"),
			CourseURL:       v.GetString("upstreamCourse"),
			AttendanceURL:   v.GetString("upstreamAttendance"),
			HomeworkURL:     v.GetString("upstreamHomework"),
			NotificationURL: v.GetString("upstreamNotification"),
			LegacyURL:       v.GetString("upstreamLegacy"),
			Timeout:         v.GetDuration("upstreamTimeout"),
		},
	}

	if conf.SecretKey == "" {
		if env == EnvProduction {
			return nil, errors.New("JWT_SECRET is required in production")
		}
		conf.SecretKey = devSecretKey
	}
	switch conf.RateLimit.Strategy {
	case RateLimitFixedWindow, RateLimitTokenBucket:
	default:
		return nil, errors.Errorf("unknown rate limit strategy %q", conf.RateLimit.Strategy)
	}
	if conf.RateLimit.Max < 1 {
		return nil, errors.Errorf("rate limit max must be positive, got %d", conf.RateLimit.Max)
	}
	if conf.RateLimit.Window <= 0 {
		return nil, errors.Errorf("rate limit window must be positive, got %s", conf.RateLimit.Window)
	}
	return conf, nil
}

const devSecretKey = "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy"

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("env", EnvDevelopment)
	v.SetDefault("appName", "Masomo BFF")
	v.SetDefault("build", "develop")
	v.SetDefault("logLevel", "info")
	v.SetDefault("port", "4000")
	v.SetDefault("host", "")
	v.SetDefault("debugHost", ":4001")
	v.SetDefault("shutdownTimeout", 10*time.Second)
	v.SetDefault("bodyLimit", "2M")
	v.SetDefault("corsOrigins", "*")
	v.SetDefault("authOptional", false)
	v.SetDefault("authExcludePaths", "/api/bff/health,/metrics,/api/users/login,/api/users/register")
	v.SetDefault("rateLimitStrategy", RateLimitFixedWindow)
	v.SetDefault("rateLimitWindow", time.Minute)
	v.SetDefault("rateLimitMax", 100)
	v.SetDefault("rateLimitByUser", true)
	v.SetDefault("rateLimitExclude", "/api/bff/health,/metrics")
	v.SetDefault("redisPrefix", "bff:rl:")
	v.SetDefault("upstreamTimeout", 5*time.Second)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = CleanString(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
