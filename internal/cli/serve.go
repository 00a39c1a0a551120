package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/smarttask/internal/httpapi"
	"github.com/nhle/smarttask/internal/notify"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the notification scheduler",
	RunE:  withEnv(runServe),
}

func runServe(_ *cobra.Command, e *env, _ []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sched *notify.Scheduler
	schedDone := make(chan struct{})
	if e.cfg.Scheduler.Enabled {
		sched = notify.New(e.store, e.gateway, e.cfg.Scheduler.Workers)
		go func() {
			defer close(schedDone)
			sched.Run(ctx)
		}()
	} else {
		close(schedDone)
	}

	// The store closes when runServe returns, so the scheduler must be done
	// with it first.
	stopScheduler := func() {
		if sched != nil {
			sched.Stop()
		}
		cancel()
		<-schedDone
	}

	go e.registry.LogEvery(ctx, time.Duration(e.cfg.Metrics.LogIntervalSec)*time.Second)

	srv := &http.Server{
		Addr: e.cfg.HTTP.Addr,
		Handler: httpapi.NewRouter(e.cfg.HTTP, httpapi.Services{
			Engine:      e.engine,
			Tasks:       e.tasks,
			Preferences: e.prefs,
			Settings:    e.settings,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[http] listening on %s", e.cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Printf("[http] shutting down")
	case err := <-errCh:
		stopScheduler()
		return err
	}

	stopScheduler()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
