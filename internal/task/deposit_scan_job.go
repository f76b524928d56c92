package task

import (
	"context"
	"time"

	"github.com/blues/cfl/internal/logger"
	"github.com/go-co-op/gocron/v2"
)

// DepositScanner 原生币入账扫描，*chain.DepositScanner 实现
type DepositScanner interface {
	Scan(ctx context.Context) (int, error)
}

// DepositScanJob 定时扫描链上转入托管地址的原生币（仅 chain 后端）
type DepositScanJob struct {
	scanner  DepositScanner
	interval time.Duration
}

// NewDepositScanJob 创建入账扫描任务
func NewDepositScanJob(scanner DepositScanner, interval time.Duration) *DepositScanJob {
	return &DepositScanJob{scanner: scanner, interval: interval}
}

// GetName 获取任务名称
func (j *DepositScanJob) GetName() string {
	return "deposit_scan"
}

// GetSchedule 获取调度配置
func (j *DepositScanJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *DepositScanJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), j.interval)
	defer cancel()

	n, err := j.scanner.Scan(ctx)
	if err != nil {
		logger.Error("Deposit scan stopped after %d deposits: %v", n, err)
		return
	}
	logger.Debug("Deposit scan credited %d deposits", n)
}
