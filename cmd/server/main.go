package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/webidscan/auth-server/auth"
	"github.com/webidscan/auth-server/internal/config"
	"github.com/webidscan/auth-server/internal/metrics"
	"github.com/webidscan/auth-server/internal/rate"
	"github.com/webidscan/auth-server/mailer"
	"github.com/webidscan/auth-server/server"
	"github.com/webidscan/auth-server/session"
	"github.com/webidscan/auth-server/session/memstore"
	"github.com/webidscan/auth-server/session/redisstore"
	"github.com/webidscan/auth-server/token"
	"github.com/webidscan/auth-server/users"
	"github.com/webidscan/auth-server/users/postgres"
	fakeuserrepo "github.com/webidscan/auth-server/users/repofake"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running server: %s\n", err)
		os.Exit(1)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	configPath := flag.String("config", "", "path to the config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	displayAppname(cfg.AppName)

	log := newLogger(cfg.Env)
	srv, cleanup, err := buildServer(context.Background(), cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	httpServer := &http.Server{Addr: cfg.HTTP.Addr(), Handler: srv}
	go listenAndServe(httpServer, log)
	waitForStopSignal()
	return shutdown(httpServer)
}

// buildServer wires the collaborators by configuration: redis or in-memory
// sessions, postgres or the in-memory fake for accounts, SMTP or a
// log-only mailer.
func buildServer(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*server.Server, func(), error) {
	cleanup := func() {}

	var sessions session.Store
	if cfg.Redis.URL != "" {
		store, err := redisstore.New(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, cleanup, fmt.Errorf("redis session store: %w", err)
		}
		sessions = store
		log.Info().Msg("sessions: redis")
	} else {
		sessions = memstore.New()
		log.Warn().Msg("sessions: in-memory, not shared across processes")
	}

	var accounts users.Repo
	if cfg.DB.URL != "" {
		repo, err := postgres.New(ctx, cfg.DB.URL)
		if err != nil {
			return nil, cleanup, fmt.Errorf("postgres account repo: %w", err)
		}
		accounts = repo
		cleanup = repo.Close
		log.Info().Msg("accounts: postgres")
	} else {
		accounts = fakeuserrepo.NewFakeUserRepo()
		log.Warn().Msg("accounts: in-memory fake")
	}

	var mail mailer.Mailer
	if cfg.SMTP.Account != "" {
		mail = mailer.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Account, cfg.SMTP.Password, cfg.SMTP.From)
	} else {
		mail = mailer.NewLogMailer(log)
	}

	tokens, err := token.New(cfg.Auth.JWTSecret, cfg.Auth.ResetSecret,
		token.WithTokenExpiry(cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenExt),
		token.WithResetExpiry(cfg.Auth.ResetTokenTTL),
	)
	if err != nil {
		return nil, cleanup, fmt.Errorf("token manager: %w", err)
	}

	authService, err := auth.NewService(
		auth.Repos{Users: accounts, Sessions: sessions},
		tokens, mail, log,
		auth.WithSessionTTL(cfg.Session.TTL),
	)
	if err != nil {
		return nil, cleanup, fmt.Errorf("auth service: %w", err)
	}

	limiter := rate.New(cfg.Rate.Window)
	m := metrics.New(prometheus.DefaultRegisterer)

	srv, err := server.New(cfg, authService, limiter, m, log)
	if err != nil {
		return nil, cleanup, fmt.Errorf("server: %w", err)
	}
	return srv, cleanup, nil
}

func newLogger(env string) zerolog.Logger {
	if env == "DEV" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func listenAndServe(httpServer *http.Server, log zerolog.Logger) {
	log.Info().Str("addr", httpServer.Addr).Msg("server listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
