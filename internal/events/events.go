package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	TopicPaymentStatus = "storefront.payment.status"
	TopicOrderCreated  = "storefront.order.created"
)

type PaymentStatusEvent struct {
	ChargeID  string `json:"charge_id"`
	PaymentID int64  `json:"payment_id"`
	OrderID   int64  `json:"order_id,omitempty"`
	Status    string `json:"status"`
}

type OrderCreatedEvent struct {
	OrderID   int64  `json:"order_id"`
	UserID    int64  `json:"user_id"`
	PaymentID int64  `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

// Publisher はトピックごとのwriterを持つ薄いラッパー。
// brokers未設定なら全publishがno-opになる（ローカル開発用）。
type Publisher struct {
	brokers []string
	writers map[string]*kafka.Writer
}

func NewPublisher(brokersCSV string) *Publisher {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}

	p := &Publisher{brokers: brokers, writers: map[string]*kafka.Writer{}}
	if len(brokers) == 0 {
		return p
	}
	for _, topic := range []string{TopicPaymentStatus, TopicOrderCreated} {
		p.writers[topic] = &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		}
	}
	return p
}

func (p *Publisher) Enabled() bool {
	return len(p.brokers) > 0
}

func (p *Publisher) Publish(ctx context.Context, topic string, key string, payload any) error {
	w, ok := p.writers[topic]
	if !ok {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: data, Time: time.Now().UTC()})
}

func (p *Publisher) Close() error {
	for _, w := range p.writers {
		_ = w.Close()
	}
	return nil
}
