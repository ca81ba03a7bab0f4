package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pion/stun/v3"
	"github.com/tvmate/server/internal/controller"
	"github.com/tvmate/server/internal/metrics"
	"github.com/tvmate/server/internal/repository/cooldown/inmemory"
	cooldownRedis "github.com/tvmate/server/internal/repository/cooldown/redis"
	"github.com/tvmate/server/internal/service/room"
	"github.com/tvmate/server/pkg/ctxlogger"
	"github.com/tvmate/server/pkg/redisclient"
)

type AppConfig struct {
	Host                string        `json:"host"`
	Port                int           `json:"port"`
	LogLevel            string        `json:"log_level"`
	MembersLimit        int           `json:"members_limit"`
	StunURL             string        `json:"stun_url"`
	TurnURL             string        `json:"turn_url"`
	TurnSecret          func() string `json:"-"`
	CallRequestCooldown time.Duration `json:"call_request_cooldown"`
	PingPeriod          time.Duration `json:"ping_period"`
	RedisHost           string        `json:"redis_host"`
	RedisPort           int           `json:"redis_port"`
	RedisPassword       string        `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.MembersLimit < 1 {
		return fmt.Errorf("members limit must be greater than 0")
	}
	if cfg.CallRequestCooldown <= 0 {
		return fmt.Errorf("call request cooldown must be positive")
	}
	if cfg.PingPeriod <= 0 {
		return fmt.Errorf("ping period must be positive")
	}
	if _, err := stun.ParseURI(cfg.StunURL); err != nil {
		return fmt.Errorf("invalid stun url %q: %w", cfg.StunURL, err)
	}
	if _, err := stun.ParseURI(cfg.TurnURL); err != nil {
		return fmt.Errorf("invalid turn url %q: %w", cfg.TurnURL, err)
	}
	if cfg.TurnSecret == nil {
		return errors.New("turn secret source is not set")
	}

	return nil
}

func newLogger(level string) (*slog.Logger, error) {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(&h), nil
}

// newHandler wires the registry, cooldown store and controller.
// The returned func releases external resources.
func newHandler(ctx context.Context, cfg *AppConfig, logger *slog.Logger) (http.Handler, func(), error) {
	cleanup := func() {}

	var cooldown interface {
		Acquire(ctx context.Context, key string) (bool, error)
	}
	if cfg.RedisHost != "" {
		rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create redis client: %w", err)
		}
		cleanup = func() { rc.Close() }
		cooldown = cooldownRedis.NewRepo(rc, cfg.CallRequestCooldown)
	} else {
		cooldown = inmemory.NewRepo(clock.New(), cfg.CallRequestCooldown, logger)
	}

	m := metrics.New()
	issuer := room.NewRtcIssuer(&room.RtcIssuerConfig{
		StunURL: cfg.StunURL,
		TurnURL: cfg.TurnURL,
		Secret:  cfg.TurnSecret,
	})
	roomService := room.NewService(issuer, m, logger, &room.Config{
		MembersLimit: cfg.MembersLimit,
	})
	c := controller.NewController(roomService, cooldown, m, logger, &controller.Config{
		PingPeriod: cfg.PingPeriod,
	})

	return c.GetMux(), cleanup, nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	// sessions hang off serverCtx so shutdown ends hijacked websocket connections too
	serverCtx, serverStopCtx := context.WithCancel(ctx)
	defer serverStopCtx()

	handler, cleanup, err := newHandler(serverCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: handler,
		BaseContext: func(net.Listener) context.Context {
			return serverCtx
		},
	}

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		select {
		case <-sig:
		case <-ctx.Done():
		}

		shutdownCtx, c := context.WithTimeout(context.WithoutCancel(serverCtx), 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		serverStopCtx()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
