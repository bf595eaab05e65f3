package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rsi-lens/internal/advisor"
	"rsi-lens/internal/bot"
	"rsi-lens/internal/cache"
	"rsi-lens/internal/config"
	"rsi-lens/internal/db"
	"rsi-lens/internal/handler"
	"rsi-lens/internal/job"
	"rsi-lens/internal/provider"
	"rsi-lens/internal/repository"
	"rsi-lens/internal/service"
	"rsi-lens/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
	tele "gopkg.in/telebot.v3"

	_ "rsi-lens/docs"
)

var (
	loadEnvFunc        = godotenv.Load
	loadConfigFunc     = config.Load
	initPostgresFunc   = db.InitPostgres
	initRedisFunc      = cache.InitRedis
	initTracerFunc     = tracing.InitTracer
	newRSIProviderFunc = func(tracer trace.Tracer, cfg *config.Config) service.RSIProvider {
		return provider.NewAlphaVantageProvider(tracer, cfg.AlphaVantageAPIKey, cfg.AlphaVantageBaseURL,
			cfg.AlphaVantageEntitlement, cfg.AlphaVantageRequestsPerMin)
	}
	newOpenAIClientFunc    = advisor.NewOpenAIClient
	startTelegramBotFunc   = bot.StartTelegramBot
	startWatchlistFunc     = func(j *job.WatchlistJob, ctx context.Context) error { return j.Start(ctx) }
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           RSI Lens API
// @version         1.0
// @description     Live and historical daily RSI readings for stock tickers, proxied from Alpha Vantage.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey  ApiKeyAuth
// @in                          header
// @name                        X-API-Key
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Postgres and Redis are optional; both leave their globals nil when
	// unconfigured or unreachable.
	initPostgresFunc(ctx, cfg.DatabaseURL)
	initRedisFunc(ctx, cfg.RedisURL)
	defer db.Close()
	defer cache.Close()

	tp, tracer, err := initTracerFunc(ctx, "rsi-lens-gateway")
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	var (
		recorder service.LookupRecorder
		history  handler.LookupHistory
	)
	if db.Pool != nil {
		lookupRepo := repository.NewLookupRepository(db.Pool, tracer)
		if err := lookupRepo.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		recorder = lookupRepo
		history = lookupRepo
	}

	var redisClient service.RedisClient
	if cache.Client != nil {
		redisClient = cache.Client
	}

	rsiProvider := newRSIProviderFunc(tracer, cfg)
	rsiService := service.NewRSIService(tracer, rsiProvider, redisClient, recorder,
		time.Duration(cfg.RSICacheTTLSecs)*time.Second)

	watchlist := job.NewWatchlistJob(tracer, rsiService, cfg.WatchlistSymbols, cfg.WatchlistCron)
	if !rsiService.CacheEnabled() {
		log.Println("REDIS_URL not set, skipping watchlist job")
	} else if err := startWatchlistFunc(watchlist, ctx); err != nil {
		log.Printf("watchlist job not started: %v", err)
	}

	var interpreter bot.Interpreter
	if cfg.OpenAIAPIKey != "" {
		interpreter = advisor.NewInterpreter(tracer, newOpenAIClientFunc(cfg.OpenAIAPIKey), cfg.OpenAIModel)
		log.Println("RSI interpretation enabled")
	}
	telegram := startTelegramBotFunc(cfg.TelegramBotToken, bot.NewBot(rsiService, interpreter, cfg.DisplayCount))

	h := handler.New(tracer, rsiService)
	if history != nil {
		h.SetLookupHistory(history)
	}

	r := newRouterFunc()
	r.Use(otelgin.Middleware("rsi-lens-gateway"))

	h.RegisterRoutes(r, cfg.APIKey)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: r,
	}

	go func() {
		log.Printf("RSI gateway listening on %s", srv.Addr)
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()
	watchlist.Stop()
	stopTelegram(telegram)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}

func stopTelegram(b *tele.Bot) {
	if b != nil {
		b.Stop()
	}
}
