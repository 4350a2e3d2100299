package mq

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/example/momchat/internal/service"
)

// Channel Publisher 用到的 channel 方法
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// ReportPublisher 把举报投递到 report_queue
type ReportPublisher struct {
	mu    sync.Mutex
	ch    Channel
	queue string
}

// NewReportPublisher 打开专用 channel 并声明队列
func NewReportPublisher(conn *amqp.Connection, queue string) (*ReportPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, errors.Wrap(err, "open channel")
	}
	if err := DeclareQueue(ch, queue); err != nil {
		_ = ch.Close()
		return nil, errors.Wrapf(err, "declare queue %s", queue)
	}
	return &ReportPublisher{ch: ch, queue: queue}, nil
}

// NewReportPublisherWithChannel 使用已有 channel
func NewReportPublisherWithChannel(ch Channel, queue string) *ReportPublisher {
	return &ReportPublisher{ch: ch, queue: queue}
}

// PublishReport amqp channel 不能并发使用，这里串行发布
func (p *ReportPublisher) PublishReport(ctx context.Context, m *service.ReportMessage) error {
	body, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "encode report message")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    m.ReportID,
		Body:         body,
	})
}

// Close 关闭 channel
func (p *ReportPublisher) Close() error {
	return p.ch.Close()
}
