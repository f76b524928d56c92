package event

import (
	"sort"
	"sync"

	"github.com/blues/cfl/internal/logger"
	"github.com/blues/cfl/internal/logic"
	"github.com/blues/cfl/internal/model"
	"gorm.io/gorm"
)

// EventProcessor 事件处理器接口
type EventProcessor interface {
	Process(event *model.EventModel, payload *Payload) error
	GetEventTypes() []string
}

// ProcessorManager 事件处理器管理器
type ProcessorManager struct {
	mu         sync.RWMutex
	processors map[string]EventProcessor
}

// NewProcessorManager 创建处理器管理器并注册记录类处理器
func NewProcessorManager(db *gorm.DB) *ProcessorManager {
	manager := &ProcessorManager{
		processors: make(map[string]EventProcessor),
	}

	manager.RegisterProcessor(NewContributeProcessor(logic.NewContributeRecordLogic(db)))
	manager.RegisterProcessor(NewRefundProcessor(logic.NewRefundRecordLogic(db)))
	manager.RegisterProcessor(NewSettlementProcessor(logic.NewSettlementRecordLogic(db)))
	manager.RegisterProcessor(NewEscrowProcessor(logic.NewEscrowRecordLogic(db)))

	logger.Info("ProcessorManager initialized with %d event types", len(manager.processors))
	return manager
}

// RegisterProcessor 注册事件处理器，一个处理器可处理多种事件
func (pm *ProcessorManager) RegisterProcessor(processor EventProcessor) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	for _, eventType := range processor.GetEventTypes() {
		pm.processors[eventType] = processor
		logger.Debug("Registered processor for event type: %s", eventType)
	}
}

// GetProcessor 获取指定事件类型的处理器
func (pm *ProcessorManager) GetProcessor(eventType string) (EventProcessor, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	processor, exists := pm.processors[eventType]
	return processor, exists
}

// ProcessEvent 处理事件，没有处理器的事件类型只做记录
func (pm *ProcessorManager) ProcessEvent(event *model.EventModel) error {
	processor, exists := pm.GetProcessor(event.EventType)
	if !exists {
		return nil
	}

	payload, err := DecodePayload(event)
	if err != nil {
		return err
	}
	return processor.Process(event, payload)
}

// GetSupportedEventTypes 获取支持的事件类型列表
func (pm *ProcessorManager) GetSupportedEventTypes() []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	eventTypes := make([]string, 0, len(pm.processors))
	for eventType := range pm.processors {
		eventTypes = append(eventTypes, eventType)
	}
	sort.Strings(eventTypes)
	return eventTypes
}
