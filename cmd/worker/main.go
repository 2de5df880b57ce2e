package main

import (
	"time"

	"go.uber.org/zap"

	contracts "outreach/contracts/mq"
	"outreach/internal/config"
	"outreach/internal/mqhandler"
	"outreach/internal/repository"
	"outreach/internal/service"
	"outreach/internal/transport"
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

	log.Info("Starting outreach worker...")

	rdb := redisclient.NewClient(cfg.Redis)
	defer rdb.Close()

	deduper := util.NewDeduper(rdb)
	retryCounter := util.NewRetryCounter(rdb, 24*time.Hour)

	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	// Repositories
	messageRepo := repository.NewOutboundMessageRepository(dbConn)
	eventRepo := repository.NewMessageEventRepository(dbConn)
	campaignRepo := repository.NewContactCampaignRepository(dbConn)
	actionRepo := repository.NewScheduledActionRepository(dbConn)
	contactRepo := repository.NewContactRepository(dbConn)
	identityRepo := repository.NewSenderIdentityRepository(dbConn)
	suppressionRepo := repository.NewSuppressionRepository(dbConn)

	publisher, err := mq.NewPublisher(cfg.MQ.URL, deduper)
	if err != nil {
		log.Fatal("failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Services
	tr := transport.NewHTTPTransport(
		cfg.Engine.TransportURL,
		cfg.Engine.TransportAPIKey,
		time.Duration(cfg.Engine.TransportTimeout)*time.Second,
	)
	scheduler := service.NewScheduler(actionRepo, publisher, map[string]string{
		"no_open_after":  cfg.Engine.NoOpenAfter,
		"no_click_after": cfg.Engine.NoClickAfter,
		"no_reply_after": cfg.Engine.NoReplyAfter,
	}, log)
	dispatcher := service.NewDispatcher(
		messageRepo, campaignRepo, contactRepo, identityRepo, suppressionRepo,
		tr, scheduler, log,
	)
	engine := service.NewTransitionEngine(campaignRepo, publisher, log)
	timeoutWorker := service.NewTimeoutWorker(eventRepo, campaignRepo, actionRepo, engine, log)

	// Handlers
	sendHandler := mqhandler.NewSendJobHandler(dispatcher, log)
	timeoutHandler := mqhandler.NewTimeoutJobHandler(timeoutWorker, log)

	retryPolicy := &mq.RetryPolicy{
		Counter:    retryCounter,
		DLQ:        publisher,
		MaxRetries: cfg.Engine.MaxJobRetries,
	}

	// (1) Consumer for send jobs
	log.Info("Initializing send consumer", zap.String("queue", contracts.SendQueue))
	sendConsumer, err := mq.NewConsumer(cfg.MQ.URL, contracts.SendQueue, contracts.SendRoutingKey, log)
	if err != nil {
		log.Fatal("failed to init send consumer", zap.Error(err))
	}
	sendConsumer.SetHandler(sendHandler.HandleSendJob)
	sendConsumer.SetRetryPolicy(retryPolicy)
	go func() {
		log.Info("Starting send consumer")
		if err := sendConsumer.StartConsuming(); err != nil {
			log.Fatal("send consumer failed", zap.Error(err))
		}
	}()
	defer sendConsumer.Close()

	// (2) Consumer for fired timeout jobs
	log.Info("Initializing timeout consumer", zap.String("queue", contracts.TimeoutQueue))
	timeoutConsumer, err := mq.NewConsumer(cfg.MQ.URL, contracts.TimeoutQueue, contracts.TimeoutRoutingKey, log)
	if err != nil {
		log.Fatal("failed to init timeout consumer", zap.Error(err))
	}
	timeoutConsumer.SetHandler(timeoutHandler.HandleTimeoutJob)
	timeoutConsumer.SetRetryPolicy(retryPolicy)
	go func() {
		log.Info("Starting timeout consumer")
		if err := timeoutConsumer.StartConsuming(); err != nil {
			log.Fatal("timeout consumer failed", zap.Error(err))
		}
	}()
	defer timeoutConsumer.Close()

	log.Info("All consumers started, worker is ready to process jobs")

	// Keep worker running
	select {}
}
