package event

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/blues/cfl/internal/logger"
	"github.com/blues/cfl/internal/logic"
	"github.com/segmentio/kafka-go"
)

// MessageWriter kafka.Writer 的最小接口
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher 将落库事件发布给外部观察者，按活动 ID 分区保证组内有序
type KafkaPublisher struct {
	writer     MessageWriter
	topic      string
	eventLogic *logic.EventLogic
}

// NewKafkaWriter 创建 kafka 写入器
func NewKafkaWriter(brokers []string) (*kafka.Writer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.Hash{},
	}, nil
}

// NewKafkaPublisher 创建事件发布器
func NewKafkaPublisher(writer MessageWriter, topic string, eventLogic *logic.EventLogic) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, topic: topic, eventLogic: eventLogic}
}

// PublishPending 发布至多 limit 条未发布事件
func (p *KafkaPublisher) PublishPending(ctx context.Context, limit int) (int, error) {
	events, err := p.eventLogic.GetUnpublishedEvents(limit)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	ids := make([]int64, 0, len(events))
	for _, ev := range events {
		msgs = append(msgs, kafka.Message{
			Topic: p.topic,
			Key:   []byte(strconv.FormatUint(ev.CampaignId, 10)),
			Value: []byte(ev.Data),
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(ev.EventType)},
				{Key: "event_id", Value: []byte(ev.EventId)},
			},
			Time: time.Now().UTC(),
		})
		ids = append(ids, ev.Id)
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, fmt.Errorf("failed to publish %d events: %w", len(msgs), err)
	}
	if err := p.eventLogic.MarkPublished(ids); err != nil {
		return 0, err
	}
	logger.Debug("Published %d events to %s", len(msgs), p.topic)
	return len(msgs), nil
}

// Close 关闭写入器
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
