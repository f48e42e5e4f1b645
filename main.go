package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/mbolis/quick-apply/app"
	"github.com/mbolis/quick-apply/config"
	"github.com/mbolis/quick-apply/database"
	"github.com/mbolis/quick-apply/log"
	"github.com/mbolis/quick-apply/routes"
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatal("main.config: ", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUrl)
	if err != nil {
		log.Fatal("main.db.open: ", err)
	}
	defer db.Close()

	if cfg.AdminPassword == "" {
		log.Warn("main.admin: ADMIN_PASS not set, keeping the stored admin password")
	} else if err := database.EnsureAdmin(ctx, db, cfg.AdminUser, cfg.AdminPassword); err != nil {
		log.Fatal("main.admin: ", err)
	}

	app, err := app.New(ctx, cfg, db)
	if err != nil {
		log.Fatal("main.app: ", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Error("main.app.close: ", err)
		}
	}()

	go purgeTokens(ctx, app)

	err = runServer(ctx, cfg, routes.Wire(app))
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("main.server: ", err)
	}
}

func runServer(ctx context.Context, cfg config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}

	log.Info("Listening on " + cfg.Url())
	return serve(ctx, srv, ln, 15*time.Second)
}

// serve returns once ctx is done and srv has drained its in-flight
// requests, or grace has passed.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, grace time.Duration) error {
	drained := make(chan error, 1)
	go func() {
		<-ctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		drained <- srv.Shutdown(shutdownCtx)
	}()

	err := srv.Serve(ln)
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-drained; err != nil {
		log.Error("main.server.shutdown: ", err)
	}
	return err
}

func purgeTokens(ctx context.Context, app app.App) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := database.PurgeTokens(ctx, app.DB, now)
			if err != nil {
				log.WithError(err).Warn("main.purge_tokens")
				continue
			}
			log.Debugf("main.purge_tokens: %d removed", n)
		}
	}
}
