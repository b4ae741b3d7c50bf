package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aka1453/promin-sched/internal/config"
	"github.com/rabbitmq/amqp091-go"
)

// AMQPNotifier publishes schedule-change events to a topic exchange so that
// collaborating services (real-time boards, digest mailers) can react without
// polling.
type AMQPNotifier struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
}

type taskDatesChangedEvent struct {
	ProjectID int64     `json:"project_id"`
	TaskIDs   []int64   `json:"task_ids"`
	At        time.Time `json:"at"`
}

func NewAMQPNotifier(cfg config.AMQPConfig) (*AMQPNotifier, error) {
	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &AMQPNotifier{
		conn:     conn,
		channel:  ch,
		exchange: cfg.Exchange,
	}, nil
}

func (n *AMQPNotifier) Close() {
	if n.channel != nil {
		_ = n.channel.Close()
	}
	if n.conn != nil {
		_ = n.conn.Close()
	}
}

// TaskDatesChanged publishes the set of rescheduled tasks under the
// "task.dates_changed" routing key.
func (n *AMQPNotifier) TaskDatesChanged(ctx context.Context, projectID int64, taskIDs []int64) error {
	body, err := json.Marshal(taskDatesChangedEvent{
		ProjectID: projectID,
		TaskIDs:   taskIDs,
		At:        time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	return n.channel.PublishWithContext(
		ctx,
		n.exchange,
		"task.dates_changed",
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp091.Persistent,
		},
	)
}
