package router

import (
	"time"

	"github.com/blues/cfl/internal/chain"
	"github.com/blues/cfl/internal/handler"
	"github.com/blues/cfl/internal/ledger"
	"github.com/blues/cfl/internal/logger"
	"github.com/blues/cfl/internal/receipt"
	"github.com/blues/cfl/internal/vault"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Dependencies 路由依赖，Bank 与 Deposits 按账本后端二选一，Idempotency 与 Auth 可为空
type Dependencies struct {
	DB          *gorm.DB
	Ledger      *ledger.Ledger
	Receipts    *receipt.Registry
	Bank        *vault.Bank
	Deposits    *chain.DepositBook
	Idempotency IdempotencyStore
	Auth        *SignatureAuth
}

func Setup(deps Dependencies) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(requestLogger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "ok",
			"service":   "crowdfunding-ledger",
			"campaigns": deps.Ledger.CampaignCount(c.Request.Context()),
		})
	})

	campaignHandler := handler.NewCampaignHandler(deps.Ledger)
	adminHandler := handler.NewAdminHandler(deps.Ledger)
	recordHandler := handler.NewRecordHandler(deps.DB)
	assetHandler := handler.NewAssetHandler(deps.Ledger, deps.Receipts, deps.Bank, deps.Deposits)

	// API版本组
	v1 := r.Group("/api/v1")
	if deps.Auth != nil {
		v1.Use(deps.Auth.Middleware())
	}
	if deps.Idempotency != nil {
		v1.Use(idempotencyMiddleware(deps.Idempotency))
	}
	{
		// 活动生命周期
		campaigns := v1.Group("/campaigns")
		{
			campaigns.POST("", campaignHandler.CreateCampaign)
			campaigns.POST("/ico", campaignHandler.CreateIcoCampaign)
			campaigns.GET("", campaignHandler.GetCampaigns)
			campaigns.GET("/:id", campaignHandler.GetCampaign)
			campaigns.GET("/:id/accounts/:address", campaignHandler.GetAccount)
			campaigns.POST("/:id/approve", campaignHandler.Approve)
			campaigns.POST("/:id/cancel", campaignHandler.Cancel)
			campaigns.POST("/:id/whitelist", campaignHandler.SetWhitelist)
			campaigns.POST("/:id/contribute", campaignHandler.Contribute)
			campaigns.POST("/:id/withdraw", campaignHandler.Withdraw)
			campaigns.POST("/:id/refund", campaignHandler.Refund)
			campaigns.POST("/:id/tokens/deposit", campaignHandler.DepositTokens)
			campaigns.POST("/:id/tokens/claim", campaignHandler.ClaimTokens)
			campaigns.POST("/:id/tokens/withdraw-unsold", campaignHandler.WithdrawUnsoldTokens)
		}

		// 管理
		admin := v1.Group("/admin")
		{
			admin.GET("/settings", adminHandler.GetSettings)
			admin.POST("/approver", adminHandler.SetApprover)
			admin.POST("/fee", adminHandler.SetFee)
			admin.POST("/receipt-base-uri", adminHandler.SetReceiptBaseURI)
			admin.POST("/owner", adminHandler.TransferOwnership)
		}

		// 记录查询
		records := v1.Group("/records")
		{
			records.GET("/campaigns", recordHandler.GetCampaignSnapshots)
			records.GET("/campaigns/:id/stats", recordHandler.GetCampaignStats)
			records.GET("/campaigns/:id/contributions", recordHandler.GetContributeRecords)
			records.GET("/campaigns/:id/contribution-stats", recordHandler.GetContributeStats)
			records.GET("/campaigns/:id/refunds", recordHandler.GetRefundRecords)
			records.GET("/campaigns/:id/refund-stats", recordHandler.GetRefundStats)
			records.GET("/campaigns/:id/settlement", recordHandler.GetSettlement)
			records.GET("/campaigns/:id/escrow", recordHandler.GetEscrowRecords)
			records.GET("/settlements", recordHandler.GetSettlements)
			records.GET("/events", recordHandler.GetEvents)
			records.GET("/events/:seq", recordHandler.GetEvent)
			records.GET("/dead-letters", recordHandler.GetDeadLetters)
			records.POST("/dead-letters/:seq/retry", recordHandler.RetryDeadLetter)
		}

		// 按地址查询
		accounts := v1.Group("/accounts/:address")
		{
			accounts.GET("/contributions", recordHandler.GetContributorRecords)
			accounts.GET("/receipts", assetHandler.GetReceiptsOf)
			accounts.GET("/deposit", assetHandler.GetDeposit)
		}

		v1.GET("/receipts/:rid", assetHandler.GetReceipt)

		// 进程内金库
		vaultGroup := v1.Group("/vault")
		{
			vaultGroup.GET("/balance", assetHandler.GetBalance)
			vaultGroup.POST("/mint", assetHandler.Mint)
			vaultGroup.POST("/approve", assetHandler.Approve)
		}
	}

	return r
}

// requestLogger 请求日志，写入全局日志器
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("%s %s %d %s %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), c.ClientIP())
	}
}

// CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, "+handler.CallerHeader+", "+SignatureHeader+", "+TimestampHeader+", "+IdempotencyHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
