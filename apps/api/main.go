package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"

	"github.com/pkg/errors"

	dig_container "github.com/trezcool/masomo-curriculum/apps/api/di/dig"
	echoapi "github.com/trezcool/masomo-curriculum/apps/api/echo"
	"github.com/trezcool/masomo-curriculum/core"
	"github.com/trezcool/masomo-curriculum/core/access"
)

type app struct {
	conf    *core.Config
	logger  core.Logger
	dbLog   core.Logger
	closeDB dig_container.Closer
	policy  *access.Policy
	server  *echoapi.Server
}

func main() {
	var a app
	err := dig_container.New().Invoke(func(
		conf *core.Config,
		logger core.Logger,
		dbLoggerParam dig_container.DBLoggerParam,
		closeDB dig_container.Closer,
		policy *access.Policy,
		server *echoapi.Server,
	) {
		a = app{conf, logger, dbLoggerParam.Logger, closeDB, policy, server}
	})
	if err != nil {
		log.Fatal(err)
	}

	if err = a.run(); err != nil {
		a.logger.Fatal(err.Error(), err)
	}
}

func (a app) run() error {
	a.logger.Info(fmt.Sprintf("curriculum API initializing : version %q", a.conf.Build), map[string]interface{}{
		"env":      a.conf.Env,
		"dbEngine": a.conf.Database.Engine,
		"policy":   policySource(a.conf),
		"entries":  len(a.policy.Entries()),
	})
	defer a.logger.Info("curriculum API stopped")
	defer func() {
		if err := a.closeDB(); err != nil {
			a.dbLog.Error("closing database", err)
		}
	}()

	a.startDebugServer()
	go a.server.Start()

	select {
	case err := <-a.server.Errors():
		return errors.Wrap(err, "server error")

	case sig := <-a.server.ShutdownSignal():
		a.logger.Info(fmt.Sprintf("%v: start shutdown...", sig))
		return a.shutdown()
	}
}

// startDebugServer exposes /debug/vars on the debug host. No host, no debug server.
func (a app) startDebugServer() {
	if a.conf.Server.DebugHost == "" {
		a.logger.Warn("debug server disabled: no debug host")
		return
	}
	expvar.NewString("build").Set(a.conf.Build)
	expvar.NewString("env").Set(a.conf.Env)
	expvar.NewString("dbEngine").Set(a.conf.Database.Engine)

	go func() {
		if err := http.ListenAndServe(a.conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			a.logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()
}

// shutdown gives in-flight requests until the configured timeout, then forces the server closed.
func (a app) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.conf.Server.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
		if err = a.server.Close(); err != nil {
			return errors.Wrap(err, "could not force stop server")
		}
	}
	return nil
}

func policySource(conf *core.Config) string {
	if conf.PolicyFile == "" {
		return "built-in"
	}
	return conf.PolicyFile
}
