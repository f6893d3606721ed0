package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/layer-3/questproof/adapters/catalog"
	"github.com/layer-3/questproof/adapters/evaluator"
	"github.com/layer-3/questproof/adapters/events"
	"github.com/layer-3/questproof/adapters/ledger"
	"github.com/layer-3/questproof/adapters/snapshot"
	"github.com/layer-3/questproof/adapters/store"
	"github.com/layer-3/questproof/adapters/tokenizer"
	"github.com/layer-3/questproof/adapters/wallet"
	"github.com/layer-3/questproof/internal/config"
	"github.com/layer-3/questproof/ports"
	"github.com/layer-3/questproof/service"
	httptransport "github.com/layer-3/questproof/transport/http"
)

// backends groups the adapters chosen by configuration
type backends struct {
	sessions   ports.SessionStore
	limiter    ports.RateLimiter
	publisher  message.Publisher
	subscriber message.Subscriber

	identitySnapshot ports.Snapshotter
	historySnapshot  ports.Snapshotter

	closers []func() error
}

func (b *backends) Close(logger logrus.FieldLogger) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			logger.WithError(err).Warn("Failed to close backend")
		}
	}
}

func serve(parent context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return err
	}
	if cfg.Log.Level != "debug" && cfg.Log.Level != "trace" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackends(cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close(logger)

	// Session tokens are signed with a per-process key
	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return errors.Wrap(err, "failed to generate session key")
	}

	quests, err := openCatalog(cfg)
	if err != nil {
		return err
	}

	ledgerClient, rewardClient, err := openLedger(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var grader ports.Evaluator = evaluator.NewHeuristic()
	if cfg.OpenAI.APIKey != "" {
		grader = evaluator.NewOpenAI(evaluator.OpenAIConfig{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
			Timeout: cfg.OpenAI.Timeout,
		}, grader, logger)
		logger.Info("LLM grading enabled")
	}

	eventPub := events.NewWatermillPublisher(b.publisher)
	verifier := wallet.NewEthVerifier()

	registry := service.NewIdentityRegistry(b.identitySnapshot, logger, nil)
	if err := registry.Load(ctx); err != nil {
		return err
	}
	history := service.NewHistory(cfg.Quests.HistoryLimit, b.historySnapshot, logger)
	if err := history.Load(ctx); err != nil {
		return err
	}

	sessions := service.NewSessionManager(b.sessions, tokenizer.NewJWTTokenizer(signKey, nil), cfg.Auth.SessionTTL, nil, logger)
	authService := service.NewAuthService(
		service.AuthConfig{ChallengeTTL: cfg.Auth.ChallengeTTL},
		registry,
		store.NewMemoryChallengeStore(),
		sessions,
		verifier,
		eventPub,
		logger,
	)
	submissions := service.NewSubmissionService(
		service.SubmissionConfig{Cooldown: cfg.Quests.Cooldown, MemoPrefix: cfg.Quests.MemoPrefix},
		service.SubmissionDeps{
			Sessions:  sessions,
			Catalog:   quests,
			Limiter:   b.limiter,
			Evaluator: grader,
			Ledger:    ledgerClient,
			Rewards:   rewardClient,
			History:   history,
			Events:    eventPub,
			Logger:    logger,
		},
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router := httptransport.SetupRouter(httptransport.RouterConfig{
		Auth:        authService,
		Registry:    registry,
		Submissions: submissions,
		Verifier:    verifier,
		Metrics:     httptransport.NewMetrics(reg),
		Logger:      logger,
	})

	if cfg.Events.Audit {
		listener := events.NewListener(b.subscriber, events.AuditLog(logger), logger)
		if err := listener.Start(ctx); err != nil {
			return err
		}
	}

	if cfg.Auth.SweepInterval > 0 {
		go authService.RunSweeper(ctx, cfg.Auth.SweepInterval)
	}

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	chanError := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.Server.Addr).Info("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			chanError <- errors.Wrap(err, "failed to start HTTP server")
		}
	}()

	select {
	case err := <-chanError:
		return err
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "failed to stop HTTP server")
	}
	return nil
}

func openBackends(cfg config.Config, logger *logrus.Logger) (*backends, error) {
	b := &backends{}
	wmLogger := events.NewLogrusAdapter(logger)

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse redis url")
		}
		client := redis.NewClient(opts)
		b.closers = append(b.closers, client.Close)

		publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{Client: client}, wmLogger)
		if err != nil {
			b.Close(logger)
			return nil, errors.Wrap(err, "failed to create redis publisher")
		}
		b.closers = append(b.closers, publisher.Close)

		subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
			Client:        client,
			ConsumerGroup: cfg.Events.ConsumerGroup,
		}, wmLogger)
		if err != nil {
			b.Close(logger)
			return nil, errors.Wrap(err, "failed to create redis subscriber")
		}
		b.closers = append(b.closers, subscriber.Close)

		b.sessions = store.NewRedisStore(client)
		b.limiter = store.NewRedisRateLimiter(client)
		b.publisher = publisher
		b.subscriber = subscriber
		logger.Info("Using redis for sessions, rate limits and events")
	} else {
		publisher := gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
		b.closers = append(b.closers, publisher.Close)

		b.sessions = store.NewMemoryStore()
		b.limiter = store.NewMemoryRateLimiter(nil)
		b.publisher = publisher
		b.subscriber = publisher
	}

	switch cfg.Storage.Backend {
	case "badger":
		db, err := snapshot.OpenBadger(snapshot.BadgerConfig{
			Path:   filepath.Join(cfg.Storage.Dir, "badger"),
			Logger: logger.WithField("component", "badger"),
		})
		if err != nil {
			b.Close(logger)
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		b.identitySnapshot = snapshot.NewBadgerSnapshotter(db, "identities")
		b.historySnapshot = snapshot.NewBadgerSnapshotter(db, "history")
	default:
		b.identitySnapshot = snapshot.NewFileSnapshotter(filepath.Join(cfg.Storage.Dir, "identities.json"))
		b.historySnapshot = snapshot.NewFileSnapshotter(filepath.Join(cfg.Storage.Dir, "history.json"))
	}

	return b, nil
}

func openCatalog(cfg config.Config) (ports.QuestCatalog, error) {
	if cfg.Quests.File == "" {
		return catalog.Default(), nil
	}
	return catalog.LoadFile(cfg.Quests.File)
}

// openLedger returns nil clients when anchoring is not configured
func openLedger(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (ports.LedgerClient, ports.RewardClient, error) {
	if !cfg.LedgerEnabled() {
		logger.Info("Ledger anchoring disabled")
		return nil, nil, nil
	}

	client, err := ethclient.DialContext(ctx, cfg.Ledger.RPCURL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to dial ledger rpc")
	}
	sender, err := ledger.NewSender(client, cfg.Ledger.PrivateKey)
	if err != nil {
		return nil, nil, err
	}
	logger.WithField("address", sender.Address().Hex()).Info("Ledger anchoring enabled")

	memo := ledger.NewMemoClient(sender, ledger.MemoConfig{
		ExplorerTxURL:  cfg.Ledger.ExplorerTxURL,
		SendTimeout:    cfg.Ledger.SendTimeout,
		ConfirmTimeout: cfg.Ledger.ConfirmTimeout,
	}, logger)

	if cfg.Reward.Amount == "" {
		return memo, nil, nil
	}
	rewards, err := ledger.NewRewardClient(sender, ledger.RewardConfig{
		Amount:        cfg.Reward.Amount,
		MinScore:      cfg.Reward.MinScore,
		ExplorerTxURL: cfg.Ledger.ExplorerTxURL,
		SendTimeout:   cfg.Ledger.SendTimeout,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return memo, rewards, nil
}
