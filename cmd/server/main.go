package main

import (
	"go.uber.org/zap"

	"outreach/internal/config"
	"outreach/internal/httpserver"
	"outreach/internal/repository"
	"outreach/internal/service"
	"outreach/pkg/db"
	"outreach/pkg/logger"
	"outreach/pkg/mq"
	redisclient "outreach/pkg/redis"
	"outreach/pkg/util"
)

func main() {
	cfg := config.Load()

	log := logger.New()
	defer log.Sync()

	log.Info("Starting outreach event server...")

	rdb := redisclient.NewClient(cfg.Redis)
	defer rdb.Close()

	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	messageRepo := repository.NewOutboundMessageRepository(dbConn)
	eventRepo := repository.NewMessageEventRepository(dbConn)
	campaignRepo := repository.NewContactCampaignRepository(dbConn)
	actionRepo := repository.NewScheduledActionRepository(dbConn)

	deduper := util.NewDeduper(rdb)
	publisher, err := mq.NewPublisher(cfg.MQ.URL, deduper)
	if err != nil {
		log.Fatal("failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	engine := service.NewTransitionEngine(campaignRepo, publisher, log)
	ingest := service.NewEventIngest(messageRepo, eventRepo, campaignRepo, engine, log)
	campaigns := service.NewCampaignService(campaignRepo, actionRepo, publisher, log)

	eventHandler := httpserver.NewEventHandler(ingest, log)
	campaignHandler := httpserver.NewCampaignHandler(campaigns, log)
	router := httpserver.NewRouter(eventHandler, campaignHandler, publisher.IsConnected, cfg.Webhook.JWTSecret)

	log.Info("Event server listening", zap.String("port", cfg.Server.Port))
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}
