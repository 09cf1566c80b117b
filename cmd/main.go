package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shiftfill/outreach/internal/api"
	"github.com/shiftfill/outreach/internal/bot"
	"github.com/shiftfill/outreach/internal/campaign"
	"github.com/shiftfill/outreach/internal/clients/broker"
	"github.com/shiftfill/outreach/internal/clients/gateway"
	"github.com/shiftfill/outreach/internal/config"
	"github.com/shiftfill/outreach/internal/lock"
	"github.com/shiftfill/outreach/internal/logger"
	"github.com/shiftfill/outreach/internal/metrics"
	"github.com/shiftfill/outreach/internal/ranking"
	"github.com/shiftfill/outreach/internal/repositories"
	"github.com/shiftfill/outreach/internal/services"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func campaignConfig(cfg config.CampaignConfig) campaign.Config {
	return campaign.Config{
		TierWindow:    cfg.TierWindow,
		VoiceWindow:   cfg.VoiceWindow,
		Lifetime:      cfg.Lifetime,
		VoiceFallback: cfg.VoiceFallback,
		RetryDelay:    cfg.RetryDelay,
		Linger:        cfg.Linger,
	}
}

func holderID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "outreach"
	}
	return host + "-" + uuid.NewString()[:8]
}

func runServer(ctx context.Context, address string, handler http.Handler) error {
	srv := &http.Server{Addr: address, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("api listening on %s", address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func main() {

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("can't load .env: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Get()

	logger.Setup(ctx, cfg.Logger)
	defer logger.Cleanup()

	metrics.Register()

	dbContext, err := repositories.NewDbContext(cfg.DB.Driver, cfg.DB.ConnectionString)
	if err != nil {
		log.Fatalf("can't create db context: %v", err)
	}
	defer dbContext.Close()

	err = dbContext.Migrate()
	if err != nil {
		log.Fatalf("can't migrate db context: %v", err)
	}

	campaigns := repositories.NewCampaignsRepository(dbContext.DB)
	locks := lock.NewManager(repositories.NewLocksRepository(dbContext.DB))
	lockStatus := services.NewLockStatusCache(locks, cfg.Server.StatusCacheTTL)

	gatewayClient := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.APIKey)
	gatewayClient.SetHTTPClient(&http.Client{Timeout: cfg.Gateway.Timeout})
	gatewayClient.SetRateLimit(cfg.Gateway.MaxRequestsPerSecond)

	bus := EventBus.New()
	if err = lockStatus.Subscribe(bus); err != nil {
		log.Fatalf("can't subscribe to lock events: %v", err)
	}

	runCtx, abort := context.WithCancel(context.Background())
	defer abort()

	dispatcher, err := services.NewDispatcher(runCtx, services.DispatcherConfig{
		HolderID:  holderID(),
		Campaign:  campaignConfig(cfg.Campaign),
		LockGrace: cfg.Lock.Grace,
	}, locks, ranking.NewEngine(cfg.Ranking), gatewayClient, bus, campaigns)
	if err != nil {
		log.Fatalf("can't create dispatcher: %v", err)
	}
	log.Infof("outreach engine started as %s", dispatcher.HolderID())

	sweeper, err := services.NewLockSweeper(locks, cfg.Lock.SweepSchedule)
	if err != nil {
		log.Fatalf("can't create lock sweeper: %v", err)
	}
	defer sweeper.Stop()

	cleaner, err := services.NewCampaignsCleaner(campaigns, cfg.Campaign.RetentionDays, cfg.Campaign.CleanupSchedule)
	if err != nil {
		log.Fatalf("can't create campaigns cleaner: %v", err)
	}
	defer cleaner.Stop()

	rabbit, err := broker.Dial(cfg.Broker)
	if err != nil {
		log.Fatalf("can't connect to broker: %v", err)
	}
	defer rabbit.Close()

	if err = rabbit.Subscribe(bus); err != nil {
		log.Fatalf("can't subscribe broker to events: %v", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return rabbit.Consume(groupCtx, dispatcher)
	})

	group.Go(func() error {
		return runServer(groupCtx, cfg.Server.Address, api.NewHandler(api.Deps{
			Locks:     lockStatus,
			Campaigns: dispatcher,
			History:   campaigns,
		}))
	})

	if cfg.Telegram.Enabled() {
		tgbot, err := bot.NewBot(cfg.Telegram.Token, cfg.Telegram.ChatID, bus, bot.Dependencies{
			Locks:     lockStatus,
			Campaigns: dispatcher,
			History:   campaigns,
		})
		if err != nil {
			log.Fatalf("can't create bot: %v", err)
		}
		group.Go(func() error {
			tgbot.Run(groupCtx)
			return nil
		})
	}

	if err = group.Wait(); err != nil {
		log.Errorf("engine stopped: %v", err)
	}

	log.Info("Shutting down campaigns...")
	abort()
	dispatcher.Wait()
	bus.WaitAsync()
	log.Info("Services stopped.")
}
