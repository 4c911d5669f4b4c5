package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jrsteele09/go-session-authority/auth"
	"github.com/jrsteele09/go-session-authority/internal/config"
	"github.com/jrsteele09/go-session-authority/server"
	"github.com/jrsteele09/go-session-authority/sessions"
	"github.com/jrsteele09/go-session-authority/sessions/postgres"
	sessionredis "github.com/jrsteele09/go-session-authority/sessions/redis"
	"github.com/jrsteele09/go-session-authority/sessions/repofakes"
	"github.com/jrsteele09/go-session-authority/token"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())

	ctx := context.Background()
	repo, closeRepo, err := newSessionRepo(ctx, c)
	if err != nil {
		return fmt.Errorf("newSessionRepo: %w", err)
	}
	defer closeRepo()

	codec, err := token.New(c.GetSecretKey(), c.GetSigningAlgorithm())
	if err != nil {
		return fmt.Errorf("token.New: %w", err)
	}

	var options []auth.ServiceOption
	if c.ExpiredTokenGrace() {
		options = append(options, auth.WithExpiryGrace())
	}
	authService, err := auth.NewService(repo, codec, c.GetTokenExpiry(), options...)
	if err != nil {
		return fmt.Errorf("auth.NewService: %w", err)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: server.New(c, authService)}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

// newSessionRepo selects the store backend once at startup; everything
// downstream only sees the sessions.Repo interface.
func newSessionRepo(ctx context.Context, c config.Config) (sessions.Repo, func(), error) {
	switch backend := c.GetStoreBackend(); backend {
	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, c.GetPostgresURI())
		if err != nil {
			return nil, nil, fmt.Errorf("pgxpool.New: %w", err)
		}
		repo, err := postgres.New(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres.New: %w", err)
		}
		return repo, pool.Close, nil

	case config.BackendRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     c.GetRedisAddr(),
			Password: c.GetRedisPassword(),
			DB:       c.GetRedisDB(),
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		return sessionredis.New(client), func() { _ = client.Close() }, nil

	case config.BackendMemory:
		return repofakes.NewFakeSessionRepo(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func listenAndServe(httpServer *http.Server) error {
	log.Printf("Server listening on %s\n", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
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
