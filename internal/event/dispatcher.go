package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/blues/cfl/internal/logger"
	"github.com/blues/cfl/internal/logic"
	"github.com/blues/cfl/internal/model"
	"github.com/panjf2000/ants/v2"
)

// DefaultMaxAttempts 事件转为死信前的处理次数
const DefaultMaxAttempts = 5

// Dispatcher 把已落库未处理的事件交给处理器。
// 同一活动的事件按序号串行处理，不同活动之间并发。
type Dispatcher struct {
	eventLogic       *logic.EventLogic
	processorManager *ProcessorManager
	workers          int
	maxAttempts      int
}

// NewDispatcher workers 为并发处理的活动分组上限
func NewDispatcher(eventLogic *logic.EventLogic, processorManager *ProcessorManager, workers int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		eventLogic:       eventLogic,
		processorManager: processorManager,
		workers:          workers,
		maxAttempts:      DefaultMaxAttempts,
	}
}

// WithMaxAttempts 设置死信阈值
func (d *Dispatcher) WithMaxAttempts(n int) *Dispatcher {
	if n > 0 {
		d.maxAttempts = n
	}
	return d
}

// ProcessPending 处理至多 limit 条事件，返回成功处理的条数
func (d *Dispatcher) ProcessPending(ctx context.Context, limit int) (int, error) {
	events, err := d.eventLogic.GetUnprocessedEvents(limit)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	groups := groupByCampaign(events)
	size := len(groups)
	if size > d.workers {
		size = d.workers
	}

	// 临时协程池，大小不超过分组数量
	pool, err := ants.NewPool(size)
	if err != nil {
		return 0, fmt.Errorf("failed to create pool for %d groups: %w", len(groups), err)
	}
	defer pool.Release()

	var (
		mu        sync.Mutex
		processed []int64
		wg        sync.WaitGroup
	)
	for campaignId, group := range groups {
		campaignId, group := campaignId, group
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			ids := d.processGroup(ctx, campaignId, group)
			mu.Lock()
			processed = append(processed, ids...)
			mu.Unlock()
		})
		if err != nil {
			wg.Done()
			logger.Error("Failed to submit campaign %d events to pool: %v", campaignId, err)
		}
	}
	wg.Wait()

	if err := d.eventLogic.MarkProcessed(processed); err != nil {
		return 0, err
	}
	return len(processed), nil
}

// processGroup 遇到失败即停止，后续事件留待下一轮保证顺序。
// 失败次数达到上限的事件转为死信并跳过，不再阻塞同一活动。
func (d *Dispatcher) processGroup(ctx context.Context, campaignId uint64, events []model.EventModel) []int64 {
	ids := make([]int64, 0, len(events))
	for i := range events {
		if ctx.Err() != nil {
			break
		}
		if err := d.processorManager.ProcessEvent(&events[i]); err != nil {
			logger.Error("Failed to process event %d (%s) of campaign %d: %v",
				events[i].Seq, events[i].EventType, campaignId, err)
			dead, ferr := d.eventLogic.RecordFailure(&events[i], err, d.maxAttempts)
			if ferr != nil {
				logger.Error("Failed to record failure of event %d: %v", events[i].Seq, ferr)
				break
			}
			if !dead {
				break
			}
			logger.Error("Event %d of campaign %d moved to dead letter after %d attempts",
				events[i].Seq, campaignId, events[i].Attempts)
			continue
		}
		ids = append(ids, events[i].Id)
	}
	return ids
}

// groupByCampaign 按活动分组，组内保持序号顺序
func groupByCampaign(events []model.EventModel) map[uint64][]model.EventModel {
	groups := make(map[uint64][]model.EventModel)
	for _, ev := range events {
		groups[ev.CampaignId] = append(groups[ev.CampaignId], ev)
	}
	return groups
}
