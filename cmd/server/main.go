package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blues/cfl/internal/cache"
	"github.com/blues/cfl/internal/chain"
	"github.com/blues/cfl/internal/config"
	"github.com/blues/cfl/internal/event"
	"github.com/blues/cfl/internal/handler"
	"github.com/blues/cfl/internal/ledger"
	"github.com/blues/cfl/internal/logger"
	"github.com/blues/cfl/internal/logic"
	"github.com/blues/cfl/internal/receipt"
	"github.com/blues/cfl/internal/repository"
	"github.com/blues/cfl/internal/router"
	"github.com/blues/cfl/internal/task"
	"github.com/blues/cfl/internal/vault"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

func main() {
	// 加载配置
	cfg := config.Load()
	if err := logger.Init(cfg.Log); err != nil {
		logger.Fatal("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 初始化数据库
	db, err := repository.Init(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}

	eventLogic := logic.NewEventLogic(db)
	recorder := event.NewRecorder(eventLogic)
	receipts := receipt.NewRegistry()
	owner := config.Address(cfg.Ledger.Owner)
	interval := time.Duration(cfg.Task.Interval) * time.Second

	var (
		transfer ledger.AssetTransfer
		custody  common.Address
		bank     *vault.Bank
		deposits *chain.DepositBook
		jobs     []task.Job
	)

	// 初始化资产划转后端
	switch cfg.Ledger.Backend {
	case "chain":
		client, err := chain.Dial(ctx, cfg.Chain)
		if err != nil {
			logger.Fatal("Failed to initialize chain client: %v", err)
		}
		defer client.Close()

		custody = client.Address()
		if cfg.Ledger.Custody != "" && config.Address(cfg.Ledger.Custody) != custody {
			logger.Fatal("ledger.custody %s does not match chain key %s", cfg.Ledger.Custody, custody.Hex())
		}
		deposits = chain.NewDepositBook()
		transfer, err = chain.NewTransfer(client, deposits)
		if err != nil {
			logger.Fatal("Failed to initialize chain transfer: %v", err)
		}
		scanner := chain.NewDepositScanner(client, deposits, custody, client.ChainID(), cfg.Chain.StartBlock, cfg.Chain.Confirmations)
		jobs = append(jobs, task.NewDepositScanJob(scanner, interval))
	default:
		custody = config.Address(cfg.Ledger.Custody)
		if custody == (common.Address{}) {
			logger.Fatal("ledger.custody is required for the memory backend")
		}
		bank = vault.NewBank(custody)
		transfer = bank
	}

	l := ledger.New(ledger.Params{
		Owner:    owner,
		Custody:  custody,
		Transfer: transfer,
		Receipts: receipts,
		Emitter:  recorder,
	})
	if err := applySettings(ctx, l, owner, cfg.Ledger); err != nil {
		logger.Fatal("Failed to apply ledger settings: %v", err)
	}

	// 事件发布
	var publisher *event.KafkaPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		writer, err := event.NewKafkaWriter(cfg.Kafka.Brokers)
		if err != nil {
			logger.Fatal("Failed to initialize kafka writer: %v", err)
		}
		publisher = event.NewKafkaPublisher(writer, cfg.Kafka.Topic, eventLogic)
		defer publisher.Close()
	}

	// 幂等存储
	var idempotency router.IdempotencyStore
	if cfg.Redis.URL != "" {
		client, err := cache.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Fatal("Failed to connect to redis: %v", err)
		}
		defer client.Close()
		idempotency = cache.NewIdempotencyStore(client, time.Duration(cfg.Redis.IdempotencyTTL)*time.Second)
	}

	// 启动定时任务
	dispatcher := event.NewDispatcher(eventLogic, event.NewProcessorManager(db), cfg.Task.Workers)
	syncJob := task.NewEventSyncJob(recorder, dispatcher, publisher, interval)
	jobs = append(jobs, syncJob, task.NewCampaignSnapshotJob(l, logic.NewCampaignLogic(db), interval))
	taskManager, err := task.NewManager(jobs...)
	if err != nil {
		logger.Fatal("Failed to create task manager: %v", err)
	}
	if err := taskManager.Start(); err != nil {
		logger.Fatal("Failed to start task manager: %v", err)
	}

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 调用方认证
	var auth *router.SignatureAuth
	if cfg.Server.Auth == "signature" {
		auth = router.NewSignatureAuth(time.Duration(cfg.Server.SignatureWindow)*time.Second, nil)
	} else {
		logger.Warn("Caller identity is taken from %s without verification", handler.CallerHeader)
	}

	// 初始化路由
	r := router.Setup(router.Dependencies{
		DB:          db,
		Ledger:      l,
		Receipts:    receipts,
		Bank:        bank,
		Deposits:    deposits,
		Idempotency: idempotency,
		Auth:        auth,
	})

	srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: r}
	go func() {
		logger.Info("Server starting on port %s (backend: %s, custody: %s)", cfg.Server.Port, cfg.Ledger.Backend, custody.Hex())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed: %v", err)
	}
	taskManager.Stop()

	// 停止前把内存中的事件落库
	syncJob.Execute()
}

// applySettings 以管理员身份写入配置中的手续费、审批人与凭证地址
func applySettings(ctx context.Context, l *ledger.Ledger, owner common.Address, cfg config.LedgerConfig) error {
	if cfg.FeeBps > 0 {
		if err := l.SetFee(ctx, owner, cfg.FeeBps, config.Address(cfg.FeeRecipient)); err != nil {
			return err
		}
	}
	if approver := config.Address(cfg.Approver); approver != (common.Address{}) {
		if err := l.SetApprover(ctx, owner, approver); err != nil {
			return err
		}
	}
	if cfg.ReceiptBaseURI != "" {
		if err := l.SetReceiptBaseURI(ctx, owner, cfg.ReceiptBaseURI); err != nil {
			return err
		}
	}
	return nil
}
