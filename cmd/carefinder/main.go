// Command carefinder serves nearby medical facility search and reverse
// geocoding over HTTP.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carefinder/carefinder/bootstrap"
	"github.com/carefinder/carefinder/logging"
)

const serviceName = "carefinder"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := bootstrap.Initialize(ctx, serviceName)
	if err != nil {
		logging.NewLogger("info").WithService(serviceName).Fatal("failed to initialize", "error", err.Error())
	}

	runErr := svc.Run(ctx)

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := svc.Close(closeCtx); err != nil {
		svc.Logger.Error("shutdown incomplete", "error", err.Error())
	}

	if runErr != nil {
		svc.Logger.Error("server stopped", "error", runErr.Error())
		os.Exit(1)
	}
}
