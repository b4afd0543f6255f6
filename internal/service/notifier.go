// Package service provides the outbound notification publishers used by
// the booking and payment layers.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/court-booking/internal/model"
	"github.com/iliyamo/court-booking/internal/queue"
)

// Publisher sends notifications to a topic exchange. Messages are
// persistent; a publish failure is logged and returned so the caller can
// ignore it without failing the booking operation.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	url      string
	exchange string
	log      logrus.FieldLogger
}

func NewPublisher(url, exchange string, log logrus.FieldLogger) (*Publisher, error) {
	p := &Publisher{url: url, exchange: exchange, log: log}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

// Notify publishes n, redialling once when the channel was closed.
func (p *Publisher) Notify(ctx context.Context, n model.Notification) error {
	msg := queue.FromNotification(uuid.NewString(), n, time.Now())
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Timestamp:    msg.RequestedAt,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil || p.ch.IsClosed() {
		if err := p.connect(); err != nil {
			p.log.WithError(err).WithField("template", n.Template).Error("notification publish failed")
			return model.Upstream("notification broker", err)
		}
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, msg.RoutingKey(), false, false, pub); err != nil {
		p.log.WithError(err).WithField("template", n.Template).Error("notification publish failed")
		return model.Upstream("notification broker", err)
	}
	p.log.WithFields(logrus.Fields{"template": n.Template, "id": msg.ID}).Debug("notification published")
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// LogNotifier only logs notifications. It is used when no broker is
// configured.
type LogNotifier struct {
	Log logrus.FieldLogger
}

func (l LogNotifier) Notify(_ context.Context, n model.Notification) error {
	l.Log.WithFields(logrus.Fields{"template": n.Template, "to": n.To, "params": n.Params}).Info("notification")
	return nil
}
