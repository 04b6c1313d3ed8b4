package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/masomo-bff/apps/api/echo"
	"github.com/trezcool/masomo-bff/core"
	"github.com/trezcool/masomo-bff/core/auth"
	"github.com/trezcool/masomo-bff/core/dashboard"
	logsvc "github.com/trezcool/masomo-bff/services/logger"
	"github.com/trezcool/masomo-bff/services/upstream"
	rlstore "github.com/trezcool/masomo-bff/storage/ratelimit"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	var logger, upstreamLogger core.Logger
	if conf.Debug {
		logger = logsvc.NewConsoleLogger(log.New(os.Stdout, "BFF : ", log.LstdFlags|log.Lmicroseconds), conf.LogLevel)
		upstreamLogger = logsvc.NewConsoleLogger(log.New(os.Stdout, "UPSTREAM : ", log.LstdFlags|log.Lmicroseconds), conf.LogLevel)
	} else {
		rbLogger := logsvc.NewRollbarLogger(log.New(os.Stdout, "BFF : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
		rbLogger.Enable(conf.RollbarToken != "")
		logger = rbLogger
		upstreamLogger = logsvc.NewRollbarLogger(log.New(os.Stdout, "UPSTREAM : ", log.LstdFlags|log.Lmicroseconds), conf)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// set up rate limit store
	rateStore, closeStore, err := rlstore.Open(ctx, conf.RateLimit)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening rate limit store: %v", err), err)
	}
	defer func() {
		if err = closeStore(); err != nil {
			logger.Error(fmt.Sprintf("closing rate limit store: %v", err), err)
		}
	}()

	// set up services
	newClient := func(baseURL string, headers http.Header) dashboard.UpstreamClient {
		return upstream.NewClient(baseURL, headers,
			upstream.WithLogger(upstreamLogger),
			upstream.WithTimeout(conf.Upstream.Timeout),
		)
	}
	dashboardSvc := dashboard.NewService(conf.Upstream, newClient, upstreamLogger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("rateLimitStore").Set(rlstore.Kind(conf.RateLimit))

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:         conf,
			Logger:       logger,
			Validate:     validate,
			Translator:   translator,
			DashboardSvc: dashboardSvc,
			RateStore:    rateStore,
			Verifier:     auth.NewVerifier(conf.SecretKey),
		},
	)

	go func() {
		server.Start()
	}()
	logger.Info(fmt.Sprintf("BFF listening on %s (rate limit: %s)", conf.Server.Host, rlstore.Kind(conf.RateLimit)))

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		sctx, scancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer scancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(sctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
