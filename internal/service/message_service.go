package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/psds-microservice/support-desk/internal/errs"
	"github.com/psds-microservice/support-desk/internal/kafka"
	"github.com/psds-microservice/support-desk/internal/model"
	"github.com/psds-microservice/support-desk/internal/notify"
)

const maxMessageRunes = 5000

type MessageServicer interface {
	Post(ctx context.Context, ticketID string, sender model.SenderType, content string, actor model.Actor) (*model.Message, error)
	List(ctx context.Context, ticketID string, actor model.Actor) ([]model.Message, error)
}

// MessageService — переписка по тикету.
type MessageService struct {
	Deps
	tickets *TicketService
}

func NewMessageService(d Deps) *MessageService {
	d = d.withDefaults()
	return &MessageService{Deps: d, tickets: &TicketService{Deps: d}}
}

// Post добавляет сообщение. Ответ администратора требует роли admin и уведомляет владельца;
// сообщение пользователя — подтверждённой сессии владельца.
func (s *MessageService) Post(ctx context.Context, ticketID string, sender model.SenderType, content string, actor model.Actor) (*model.Message, error) {
	if !sender.Valid() {
		return nil, errs.NewValidationError("sender_type", "sender_type must be user or admin.")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errs.NewValidationError("message", "Message cannot be empty.")
	}
	if utf8.RuneCountInString(content) > maxMessageRunes {
		return nil, errs.NewValidationError("message", "Message is too long.")
	}
	if !actor.Admin && actor.Email == "" {
		return nil, errs.ErrUnauthenticated
	}
	if sender == model.SenderAdmin && !actor.Admin {
		return nil, errs.ErrForbidden
	}
	t, err := s.tickets.findVisible(ctx, ticketID, actor)
	if err != nil {
		return nil, err
	}
	if sender == model.SenderUser && !actor.Owns(t) {
		return nil, errs.ErrForbidden
	}

	m := &model.Message{
		TicketID:   t.TicketID,
		SenderType: sender,
		Content:    content,
		CreatedAt:  s.Now(),
	}
	if err := s.DB.WithContext(ctx).Create(m).Error; err != nil {
		return nil, fmt.Errorf("post message: %w", err)
	}
	slog.Info("message: posted", "ticket_id", t.TicketID, "sender", sender)

	if sender == model.SenderAdmin {
		s.Background.Go(notify.KindReply, func(ctx context.Context) error {
			return s.Notifier.Reply(ctx, t, content)
		})
	}
	s.Background.event(s.Events, kafka.EventMessagePosted, map[string]interface{}{
		"ticket_id":   t.TicketID,
		"message_id":  m.ID,
		"sender_type": string(sender),
	})
	return m, nil
}

// List возвращает переписку от старых к новым администратору или владельцу.
func (s *MessageService) List(ctx context.Context, ticketID string, actor model.Actor) ([]model.Message, error) {
	if !actor.Admin && actor.Email == "" {
		return nil, errs.ErrUnauthenticated
	}
	t, err := s.tickets.findVisible(ctx, ticketID, actor)
	if err != nil {
		return nil, err
	}
	var items []model.Message
	if err := s.DB.WithContext(ctx).
		Where("ticket_id = ?", t.TicketID).
		Order("created_at ASC").Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return items, nil
}
