package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	digcontainer "github.com/trezcool/selah/apps/api/di/dig"
	echoapi "github.com/trezcool/selah/apps/api/echo"
	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/bible"
	"github.com/trezcool/selah/core/notification"
	"github.com/trezcool/selah/core/user"
	logsvc "github.com/trezcool/selah/services/logger"
)

func main() {
	c := digcontainer.New()

	must(c.Invoke(func(
		conf *core.Config,
		rollbarLogger *logsvc.RollbarLogger,
		apiLogger core.Logger,
		dbLoggerParam digcontainer.DBLoggerParam,
		closeDB digcontainer.DBCloser,
		validate *validator.Validate,
		translator ut.Translator,
		scheduler *notification.Scheduler,
		server *echoapi.Server,
	) {
		// =========================================================================
		// Initialize App

		defer rollbarLogger.Sync()
		apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

		core.InitValidators(validate, translator)
		user.InitValidators(validate, translator)
		bible.InitValidators(validate, translator)

		core.ParseEmailTemplates(conf, apiLogger)

		user.LoadCommonPasswords(apiLogger)

		dbLogger := dbLoggerParam.Logger
		defer func() {
			if err := closeDB(); err != nil {
				dbLogger.Error("Failed to close", err)
			}
		}()
		defer apiLogger.Info("Application stopped")

		// =========================================================================
		// Start Debug Service
		//
		// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
		// /debug/vars - Added to the default mux by importing the expvar package.

		// Expose important info under /debug/vars.
		expvar.NewString("build").Set(conf.Build)
		expvar.NewString("env").Set(conf.Env)

		if conf.Server.DebugHost != "" {
			go func() {
				if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
					apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
				}
			}()
		}

		// =========================================================================
		// Start Notification Scheduler

		if conf.Scheduler.Enabled {
			if err := scheduler.Start(); err != nil {
				apiLogger.Fatal(fmt.Sprintf("could not start scheduler: %v", err), err)
			}
		}

		// =========================================================================
		// Start API Service

		go func() {
			server.Start()
		}()

		// =========================================================================
		// Shutdown

		select {
		case err := <-server.Errors():
			apiLogger.Error(fmt.Sprintf("server error: %v", err), err)

		case sig := <-server.ShutdownSignal():
			apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
		}

		// give outstanding requests and pushes a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if conf.Scheduler.Enabled {
			if err := scheduler.Stop(ctx); err != nil {
				apiLogger.Error(fmt.Sprintf("could not stop scheduler gracefully: %v", err), err)
			}
		}

		// asking listener to shut down and shed load
		if err := server.Shutdown(ctx); err != nil {
			apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				apiLogger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
