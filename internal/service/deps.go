package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/psds-microservice/support-desk/internal/kafka"
	"github.com/psds-microservice/support-desk/internal/model"
	"gorm.io/gorm"
)

// Uploader сохраняет вложение и возвращает его публичный URL. Delete убирает объект,
// если тикет так и не был записан.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Notifier — транзакционные письма; реализация в notify.Notifier.
type Notifier interface {
	NewTicket(ctx context.Context, t *model.Ticket) error
	LoginCode(ctx context.Context, email, code string, validMinutes int) error
	Reply(ctx context.Context, t *model.Ticket, content string) error
	Closed(ctx context.Context, t *model.Ticket) error
}

// Deps — зависимости сервисов (D: зависимость от абстракций), создаются один раз при старте.
type Deps struct {
	DB         *gorm.DB
	Files      Uploader
	Notifier   Notifier
	Events     kafka.TicketEventProducer
	Background *Dispatcher
	Now        func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Events == nil {
		d.Events = kafka.Nop{}
	}
	if d.Background == nil {
		d.Background = NewDispatcher()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return d
}

// Dispatcher выполняет побочные эффекты (письма, события) после коммита записи.
// Ошибки только логируются, повторов нет.
type Dispatcher struct {
	wg      sync.WaitGroup
	timeout time.Duration
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{timeout: 30 * time.Second}
}

func (d *Dispatcher) Go(kind string, fn func(ctx context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			slog.Warn("background task failed", "kind", kind, "error", err)
		}
	}()
}

// Wait блокируется до завершения всех запущенных задач.
func (d *Dispatcher) Wait() { d.wg.Wait() }

func (d *Dispatcher) event(events kafka.TicketEventProducer, name string, payload map[string]interface{}) {
	d.Go(name, func(ctx context.Context) error {
		events.ProduceTicketEvent(ctx, name, payload)
		return nil
	})
}
