package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/blues/cfl/internal/ledger"
	"github.com/blues/cfl/internal/logger"
	"github.com/blues/cfl/internal/logic"
	"github.com/blues/cfl/internal/model"
)

// Recorder 作为账本的事件接收方。
// Emit 在账本锁内调用，只入队；落库由 Flush 在定时任务中完成。
type Recorder struct {
	mu         sync.Mutex
	queue      []ledger.Event
	eventLogic *logic.EventLogic
}

// NewRecorder 创建事件记录器
func NewRecorder(eventLogic *logic.EventLogic) *Recorder {
	return &Recorder{eventLogic: eventLogic}
}

// Emit 实现 ledger.Emitter
func (r *Recorder) Emit(ev ledger.Event) {
	r.mu.Lock()
	r.queue = append(r.queue, ev)
	r.mu.Unlock()
}

// Pending 尚未落库的事件数
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Flush 将队列中的事件写入数据库，失败时放回队首等待下次重试
func (r *Recorder) Flush(ctx context.Context) (int, error) {
	r.mu.Lock()
	batch := r.queue
	r.queue = nil
	r.mu.Unlock()

	if len(batch) == 0 {
		return 0, nil
	}

	requeue := func() {
		r.mu.Lock()
		r.queue = append(batch, r.queue...)
		r.mu.Unlock()
	}

	if err := ctx.Err(); err != nil {
		requeue()
		return 0, err
	}

	records := make([]model.EventModel, 0, len(batch))
	for _, ev := range batch {
		record, err := NewPayload(ev).ToModel()
		if err != nil {
			requeue()
			return 0, err
		}
		records = append(records, record)
	}

	if err := r.eventLogic.CreateEvents(records); err != nil {
		requeue()
		return 0, fmt.Errorf("failed to flush %d events: %w", len(batch), err)
	}

	logger.Debug("Flushed %d ledger events, last seq %d", len(batch), batch[len(batch)-1].Seq)
	return len(batch), nil
}
