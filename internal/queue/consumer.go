package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// LogSink consumes every notification routed to its queue and appends it
// to a local file. It stands in for an SMS or chat gateway in development
// and keeps an audit trail of what was sent in production.
type LogSink struct {
	URL      string
	Exchange string
	Queue    string
	Path     string
	Log      logrus.FieldLogger
}

// Run keeps a consumer attached until ctx is cancelled, reconnecting with
// exponential backoff.
func (s *LogSink) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(s.URL)
		if err != nil {
			s.Log.WithError(err).Warnf("notification sink: dial failed, retrying in %s", backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = s.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.Log.WithError(err).Warn("notification sink: consume loop ended, reconnecting")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (s *LogSink) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		s.Log.WithError(err).Warn("notification sink: set QoS failed")
	}
	if err := ch.ExchangeDeclare(s.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(s.Queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(q.Name, RoutingPrefix+"#", s.Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := s.Handle(d.Body); err != nil {
			s.Log.WithError(err).Error("notification sink: handle message failed")
			_ = d.Nack(false, false) // dropped, requeueing a bad body would loop
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// Handle decodes one delivery body and appends it to the sink file.
func (s *LogSink) Handle(body []byte) error {
	var m NotificationMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if m.Template == "" {
		return errors.New("notification without template")
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(s.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(m.Line()); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
