package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/leoportal/leo-portal-api/api/handlers"
	"github.com/leoportal/leo-portal-api/api/scheduler"
	"github.com/leoportal/leo-portal-api/config"
	"github.com/leoportal/leo-portal-api/databases"
)

func main() {
	a := handlers.App{}
	a.Config = *config.New()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err := a.Initialize(ctx) // initialize database and router
	cancel()
	if err != nil {
		log.Fatalf("failed to initialize: %v", err)
	}

	db := a.Database()
	s := scheduler.NewScheduler(
		databases.NewUserDatabase(db),
		databases.NewEventDatabase(db),
		databases.NewAttendanceDatabase(db),
		databases.NewTransactionDatabase(db),
		databases.NewPushTokenDatabase(db),
		databases.NewSchedulerLockDatabase(db),
		a.Mailer,
		a.Pusher,
	)
	s.DuesAmount = a.Config.DuesAmountCents
	s.Currency = a.Config.DuesCurrency
	s.Start()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%v", a.Config.Port),
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zap.S().Infow("leo-portal-api is up and running",
			"port", a.Config.Port,
			"url", a.Config.BaseURL,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	stop, release := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer release()
	<-stop.Done()
	zap.S().Info("shutting down leo-portal-api")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.S().Errorw("failed to shut down http server", "error", err)
	}
	s.Stop()
	a.Triggers.Wait()
	if err := a.Client.Disconnect(shutdownCtx); err != nil {
		zap.S().Warnw("failed to disconnect from database", "error", err)
	}
	_ = zap.L().Sync()
}
