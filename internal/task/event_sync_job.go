package task

import (
	"context"
	"time"

	"github.com/blues/cfl/internal/event"
	"github.com/blues/cfl/internal/logger"
	"github.com/go-co-op/gocron/v2"
)

const eventBatchSize = 500

// EventSyncJob 事件落库、处理与发布
type EventSyncJob struct {
	recorder   *event.Recorder
	dispatcher *event.Dispatcher
	publisher  *event.KafkaPublisher // 可为空
	interval   time.Duration
}

// NewEventSyncJob 创建事件同步任务
func NewEventSyncJob(recorder *event.Recorder, dispatcher *event.Dispatcher, publisher *event.KafkaPublisher, interval time.Duration) *EventSyncJob {
	return &EventSyncJob{
		recorder:   recorder,
		dispatcher: dispatcher,
		publisher:  publisher,
		interval:   interval,
	}
}

// GetName 获取任务名称
func (j *EventSyncJob) GetName() string {
	return "ledger_event_sync"
}

// GetSchedule 获取调度配置
func (j *EventSyncJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *EventSyncJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), j.interval)
	defer cancel()
	j.run(ctx)
}

func (j *EventSyncJob) run(ctx context.Context) (flushed, processed, published int) {
	var err error
	if flushed, err = j.recorder.Flush(ctx); err != nil {
		logger.Error("Failed to flush ledger events: %v", err)
	}

	if processed, err = j.dispatcher.ProcessPending(ctx, eventBatchSize); err != nil {
		logger.Error("Failed to process ledger events: %v", err)
	}

	if j.publisher != nil {
		if published, err = j.publisher.PublishPending(ctx, eventBatchSize); err != nil {
			logger.Error("Failed to publish ledger events: %v", err)
		}
	}

	if flushed+processed+published > 0 {
		logger.Info("Event sync finished: flushed %d, processed %d, published %d", flushed, processed, published)
	}
	return flushed, processed, published
}
