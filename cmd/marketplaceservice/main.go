package main

import (
	"context"
	stlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-paylink/config"
	"go-paylink/payment/db"
	"go-paylink/payment/openpayments"
	"go-paylink/payment/order"
	"go-paylink/payment/ticket"
	"go-paylink/service"
	"go-paylink/utils"
	"go-paylink/web/controllers"
	"go-paylink/web/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func init() {
	utils.LoadEnv()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		stlog.Fatalln("Invalid configuration:", err)
	}

	logger, err := utils.NewLogger(cfg.LogLevel)
	if err != nil {
		stlog.Fatalln("Error building logger:", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := openpayments.NewClient(cfg.ClientWallet,
		openpayments.WithTimeout(cfg.RequestTimeout),
		openpayments.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout + 5*time.Second}),
	)
	logger.Warn("no request signer configured, outbound grant and resource requests are unsigned",
		zap.String("client_wallet", cfg.ClientWallet))

	store := db.NewMemoryStore()
	orchestrator := order.New(client, store, order.Config{
		CallbackURL:  cfg.CallbackURL(),
		PollInterval: cfg.PollInterval,
		MaxAttempts:  cfg.PollMaxAttempts,
		TTL:          cfg.PaymentTTL,
	}, logger.Named("order"))
	orchestrator.StartJanitor(ctx, cfg.SweepInterval)

	tickets := ticket.NewIssuer(cfg.TicketSecret, cfg.TicketTTL)
	if !tickets.Enabled() {
		logger.Info("TICKET_SECRET not set, event access tickets are disabled")
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMin, cfg.RateLimitBurst)
	limiter.StartCleanup(ctx, 10*time.Minute)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger.Named("http")))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept", "Authorization", "Cache-Control", "X-Requested-With"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	marketplace := controllers.NewMarketplace(orchestrator, client, tickets, cfg, logger.Named("web"))
	marketplace.Routes(r, limiter.Middleware())

	logger.Info("marketplace configured",
		zap.String("app_url", cfg.AppURL),
		zap.String("merchant_wallet", cfg.MerchantWallet),
		zap.Int("merchants", len(cfg.Merchants)),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Int("poll_max_attempts", cfg.PollMaxAttempts))

	done := service.Start(ctx, "marketplace", cfg.Addr(), r, logger)
	<-done.Done()
	logger.Info("shutting down")
}
