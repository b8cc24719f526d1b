package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"yasbot/internal/biz"
	"yasbot/internal/biz/usecase"
	"yasbot/internal/conf"
	"yasbot/internal/data"
	"yasbot/internal/infra/feishu"
	"yasbot/internal/infra/openmeteo"
	"yasbot/internal/server"
	"yasbot/internal/service"
)

func main() {
	// Load .env file; plain environment variables work too.
	_ = godotenv.Load()

	// Load configuration
	cfg := conf.LoadFromEnv()
	log := newLogger(cfg.Log)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	// Initialize clients
	feishuClient := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret, log)
	weatherClient := openmeteo.NewClient()

	// Initialize repository layer
	repos, err := data.NewRepositories(feishuClient, cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("opening repositories failed")
	}
	defer repos.Close()
	log.Info().Str("db_path", cfg.DBPath).Msg("database opened")

	// Initialize usecase layer
	weatherUC := usecase.NewWeatherUsecase(weatherClient, cfg.ToWeatherConfig(), log)
	usecases := &biz.Usecases{
		Weather:    weatherUC,
		Greeting:   usecase.NewGreetingUsecase(weatherUC),
		Summary:    usecase.NewSummaryUsecase(repos.Groups, repos.Messages, repos.Chat, log),
		Admin:      usecase.NewAdminUsecase(repos.Groups),
		Guests:     usecase.NewGuestUsecase(repos.Guests, repos.Chat, cfg.Bot.InviteText, log),
		MessageLog: usecase.NewMessageLogUsecase(repos.Groups, repos.Messages),
	}

	// Initialize service layer
	router := service.NewRouter(cfg.ToRouterConfig(), repos.Chat, usecases, log)
	scheduler := service.NewScheduler(cfg.ToSchedulerConfig(), repos.Chat, repos.Groups, repos.Messages, usecases, router.Limiters(), log)

	// Initialize server
	srv := server.NewFeishuServer(feishuClient, router, scheduler, log)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Info().Msg("shutting down")
		srv.Stop()
		repos.Close()
		os.Exit(0)
	}()

	log.Info().Str("city", cfg.Weather.City).Msg("starting yasbot")
	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

// newLogger builds the root logger from config, falling back to info level
// on an unknown name.
func newLogger(cfg conf.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out = os.Stderr
	logger := zerolog.New(out)
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen})
	}
	return logger.Level(level).With().Timestamp().Logger()
}
