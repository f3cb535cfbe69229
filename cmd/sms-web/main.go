package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/Miraitowa2001/sms-web/internal/codec"
	"github.com/Miraitowa2001/sms-web/internal/config"
	"github.com/Miraitowa2001/sms-web/internal/consumer"
	httpapi "github.com/Miraitowa2001/sms-web/internal/http"
	"github.com/Miraitowa2001/sms-web/internal/logger"
	"github.com/Miraitowa2001/sms-web/internal/mqtt"
	"github.com/Miraitowa2001/sms-web/internal/notify"
	"github.com/Miraitowa2001/sms-web/internal/repository"
	"github.com/Miraitowa2001/sms-web/internal/service"
	"github.com/Miraitowa2001/sms-web/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "sms-web")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// 1. 存储：内存库 + 快照落盘
	st, err := store.Open(cfg.Store.SnapshotPath, time.Duration(cfg.Store.SnapshotInterval)*time.Second, log)
	if err != nil {
		log.Fatal("Failed to open store", zap.Error(err))
	}

	deviceRepo := repository.NewDeviceRepository(st, log)
	simRepo := repository.NewSimCardRepository(st, log)
	messageRepo := repository.NewMessageRepository(st, log)
	smsRepo := repository.NewSmsRecordRepository(st, log)
	callRepo := repository.NewCallRecordRepository(st, log)
	channelRepo := repository.NewChannelRepository(st, log)

	// 2. 通知去重缓存：配了 Redis 用 Redis，否则进程内存
	var redisClient *redis.Client
	var dedup store.KV
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		dedup = store.NewRedisKV(redisClient)
		log.Info("Using redis for notification dedup", zap.String("addr", cfg.Redis.Addr))
	} else {
		dedup = store.NewMemoryKV()
	}

	// 3. 通知分发
	notifyTimeout := time.Duration(cfg.Notify.Timeout) * time.Second
	dispatcher := notify.NewDispatcher(
		channelRepo,
		dedup,
		cfg.Notify.QueueSize,
		notifyTimeout,
		time.Duration(cfg.Notify.DedupTTL)*time.Second,
		log,
		notify.NewWeComSender(notifyTimeout, log),
		notify.NewFeishuSender(notifyTimeout, log),
		notify.NewSMTPSender(notifyTimeout, log),
	)
	dispatcher.Start()

	// 4. 解码与对账
	decoder, err := codec.NewDecoder(cfg.Crypto.Enabled, cfg.Crypto.Key, cfg.Crypto.IV, log)
	if err != nil {
		log.Fatal("Failed to init decoder", zap.Error(err))
	}

	ingest := service.NewIngestService(
		deviceRepo, simRepo, messageRepo, smsRepo, callRepo,
		dispatcher, cfg.RawMessageLog, log,
	)

	// 5. HTTP 入口
	router := httpapi.NewRouter(log)
	router.RegisterMessageRoutes(httpapi.NewMessageHandler(decoder, ingest, log))
	router.RegisterAdminRoutes(httpapi.NewAdminHandler(channelRepo, simRepo, log))
	router.RegisterHealthRoutes()

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 6. 后台任务：离线巡检 + 可选 MQTT 旁路
	sweeper := service.NewSweeper(
		deviceRepo,
		time.Duration(cfg.Sweeper.OfflineTimeout)*time.Second,
		time.Duration(cfg.Sweeper.Interval)*time.Second,
		log,
	)
	go sweeper.Run(ctx)

	var mqttConsumer *consumer.MQTTConsumer
	if cfg.MQTT.Enabled {
		mqttClient, err := mqtt.NewClient(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Username, cfg.MQTT.Password, log)
		if err != nil {
			log.Fatal("Failed to connect MQTT broker", zap.Error(err))
		}
		mqttConsumer = consumer.NewMQTTConsumer(mqttClient, cfg.MQTT.Topic, cfg.MQTT.QoS, decoder, ingest, log)
		go func() {
			if err := mqttConsumer.Start(ctx); err != nil {
				log.Error("MQTT consumer exited", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("Shutdown signal received")
	case err := <-errCh:
		log.Error("HTTP server exited", zap.Error(err))
	}
	cancel()

	// 关停顺序：先停入口，再排空通知队列，最后落最终快照
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Stop(shutdownCtx)
	if mqttConsumer != nil {
		mqttConsumer.Stop()
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		log.Warn("Notification queue not fully drained", zap.Error(err))
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if err := st.Close(); err != nil {
		log.Error("Failed to close store", zap.Error(err))
	}
	log.Info("Shutdown complete")
}
