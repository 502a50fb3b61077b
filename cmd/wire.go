package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	sessionsrender "github.com/bnema/collab-core/internal/adapters/render/sessions"
	tomlstore "github.com/bnema/collab-core/internal/adapters/repo/toml"
	"github.com/bnema/collab-core/internal/adapters/schedule"
	"github.com/bnema/collab-core/internal/application"
	"github.com/bnema/collab-core/internal/ports"
	"github.com/spf13/viper"
)

type app struct {
	store          ports.DocumentStore
	newRegistry    func() *application.Registry
	renderSessions func([]sessionsrender.SessionView, sessionsrender.RenderOptions) (string, error)
	now            func() time.Time
}

func wireApp() (*app, error) {
	store, err := tomlstore.NewStore(viper.New())
	if err != nil {
		return nil, fmt.Errorf("wire document store: %w", err)
	}

	opts := application.Options{
		GracePeriod:       envDuration("COLLAB_GRACE_PERIOD", application.DefaultGracePeriod),
		ActivityThreshold: envDuration("COLLAB_ACTIVITY_THRESHOLD", application.DefaultActivityThreshold),
		LogCapacity:       envInt("COLLAB_LOG_CAPACITY", 0),
	}

	return &app{
		store: store,
		newRegistry: func() *application.Registry {
			clock := ports.SystemClock{}
			return application.NewRegistry(clock, schedule.NewTimerScheduler(clock), opts)
		},
		renderSessions: sessionsrender.Render,
		now:            time.Now,
	}, nil
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
