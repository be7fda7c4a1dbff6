package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/psds-microservice/support-desk/internal/model"
	"github.com/segmentio/kafka-go"
)

const (
	EventTicketCreated = "ticket.created"
	EventTicketClosed  = "ticket.closed"
	EventTicketDeleted = "ticket.deleted"
	EventMessagePosted = "message.posted"
)

// TicketEventProducer — интерфейс для отправки событий тикета в Kafka (для подмены в тестах).
type TicketEventProducer interface {
	ProduceTicketEvent(ctx context.Context, event string, payload map[string]interface{})
}

// Producer пишет события тикетов в топик Kafka (best-effort, не блокирует запрос).
type Producer struct {
	writer *kafka.Writer
}

// NewProducer создаёт продюсер. Если brokers или topic пустые — методы no-op.
func NewProducer(brokers []string, topic string) *Producer {
	if len(brokers) == 0 || topic == "" {
		return &Producer{}
	}
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *Producer) ProduceTicketEvent(ctx context.Context, event string, payload map[string]interface{}) {
	if p.writer == nil {
		return
	}
	msg := map[string]interface{}{"event": event, "at": time.Now().UTC()}
	for k, v := range payload {
		msg[k] = v
	}
	body, err := json.Marshal(msg)
	if err != nil {
		slog.Warn("kafka: marshal ticket event", "event", event, "error", err)
		return
	}
	key, _ := payload["ticket_id"].(string)
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: body}); err != nil {
		slog.Warn("kafka: write ticket event", "event", event, "error", err)
	}
}

// Close закрывает writer.
func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// TicketPayload — тело событий тикета. Из персональных данных только email владельца.
func TicketPayload(t *model.Ticket) map[string]interface{} {
	if t == nil {
		return nil
	}
	out := map[string]interface{}{
		"ticket_id":  t.TicketID,
		"email":      t.Email,
		"error_type": string(t.ErrorType),
		"status":     string(t.Status),
		"created_at": t.CreatedAt,
	}
	if t.ClosedAt != nil {
		out["closed_at"] = *t.ClosedAt
	}
	return out
}

// Nop отбрасывает все события.
type Nop struct{}

func (Nop) ProduceTicketEvent(context.Context, string, map[string]interface{}) {}
