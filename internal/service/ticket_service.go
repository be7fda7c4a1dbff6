package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/psds-microservice/support-desk/internal/errs"
	"github.com/psds-microservice/support-desk/internal/kafka"
	"github.com/psds-microservice/support-desk/internal/model"
	"github.com/psds-microservice/support-desk/internal/notify"
	"github.com/psds-microservice/support-desk/internal/storage"
	"github.com/psds-microservice/support-desk/internal/validation"
	"gorm.io/gorm"
)

// TicketInput is the submission form. The binding tags are checked by gin at the route
// boundary, the validate tags again by the service.
type TicketInput struct {
	Fullname      string `form:"name" json:"fullname" binding:"required,max=255" validate:"required,max=255"`
	AccountNumber string `form:"account" json:"account_number" binding:"required,account_number" validate:"required,account_number"`
	Email         string `form:"email" json:"email" binding:"required,email,max=255" validate:"required,email,max=255"`
	Reference     string `form:"reference" json:"reference" binding:"max=255" validate:"max=255"`
	ErrorType     string `form:"error_type" json:"error_type" binding:"required,oneof=payment_failed wrong_deduction not_credited bank_one_loading other" validate:"required,oneof=payment_failed wrong_deduction not_credited bank_one_loading other"`
	Description   string `form:"description" json:"description" binding:"required" validate:"required"`
}

// TicketFieldNames maps struct fields to the form field names used in error payloads.
var TicketFieldNames = map[string]string{
	"Fullname":      "name",
	"AccountNumber": "account",
	"Email":         "email",
	"Reference":     "reference",
	"ErrorType":     "error_type",
	"Description":   "description",
}

func (in *TicketInput) normalize() {
	in.Fullname = strings.TrimSpace(in.Fullname)
	in.AccountNumber = strings.TrimSpace(in.AccountNumber)
	in.Email = validation.NormalizeEmail(in.Email)
	in.Reference = strings.TrimSpace(in.Reference)
	in.ErrorType = strings.TrimSpace(in.ErrorType)
	in.Description = strings.TrimSpace(in.Description)
}

type Attachment struct {
	Filename string
	Data     []byte
}

// CreateResult — созданный тикет; UploadErr заполнен, если вложение не удалось сохранить
// и тикет записан без него.
type CreateResult struct {
	Ticket    *model.Ticket
	UploadErr error
}

// TicketServicer — интерфейс для HTTP-обработчиков (Dependency Inversion).
type TicketServicer interface {
	Create(ctx context.Context, in TicketInput, att *Attachment) (*CreateResult, error)
	List(ctx context.Context, actor model.Actor) ([]model.Ticket, error)
	ListForUser(ctx context.Context, actor model.Actor) ([]model.Ticket, error)
	Get(ctx context.Context, id string, actor model.Actor) (*model.Ticket, error)
	Close(ctx context.Context, id string, actor model.Actor) (bool, error)
	Delete(ctx context.Context, id string, actor model.Actor) error
}

type TicketService struct {
	Deps
	newID func() string
}

func NewTicketService(d Deps) *TicketService {
	return &TicketService{Deps: d.withDefaults(), newID: NewTicketID}
}

// NewTicketID returns "TICKET-" followed by 8 hex characters of a random UUID.
func NewTicketID() string {
	return "TICKET-" + uuid.NewString()[:8]
}

func (s *TicketService) Create(ctx context.Context, in TicketInput, att *Attachment) (*CreateResult, error) {
	in.normalize()
	if err := validation.Validator().Struct(in); err != nil {
		return nil, validation.Translate(err, TicketFieldNames)
	}
	var contentType string
	if att != nil && att.Filename != "" {
		ct, ok := storage.AllowedAttachment(att.Filename)
		if !ok {
			return nil, errs.NewValidationError("file", "Only images and PDFs are allowed.")
		}
		contentType = ct
	}
	account, err := strconv.ParseInt(in.AccountNumber, 10, 64)
	if err != nil {
		return nil, errs.NewValidationError("account", "Account number must contain only digits.")
	}

	t := &model.Ticket{
		TicketID:      s.newID(),
		Fullname:      in.Fullname,
		AccountNumber: account,
		Email:         in.Email,
		Reference:     in.Reference,
		ErrorType:     model.ErrorType(in.ErrorType),
		Description:   in.Description,
		Status:        model.TicketStatusOpen,
		CreatedAt:     s.Now(),
	}
	res := &CreateResult{Ticket: t}

	var uploaded string
	if contentType != "" && len(att.Data) > 0 {
		key := t.TicketID + "_" + storage.SecureFilename(att.Filename)
		publicURL, err := s.Files.Upload(ctx, key, att.Data, contentType)
		if err != nil {
			slog.Warn("ticket: attachment upload failed, saving without file", "ticket_id", t.TicketID, "error", err)
			res.UploadErr = err
		} else {
			t.FilePath = &publicURL
			uploaded = key
		}
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(t).Error; err != nil {
			return err
		}
		first := &model.Message{
			TicketID:   t.TicketID,
			SenderType: model.SenderUser,
			Content:    t.Description,
			CreatedAt:  t.CreatedAt,
		}
		return tx.Create(first).Error
	})
	if err != nil {
		if uploaded != "" {
			// Тикет не сохранён: файл без строки в БД никто не увидит.
			if derr := s.Files.Delete(context.WithoutCancel(ctx), uploaded); derr != nil {
				slog.Warn("ticket: orphaned attachment not removed", "key", uploaded, "error", derr)
			}
		}
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	slog.Info("ticket: created", "ticket_id", t.TicketID, "error_type", t.ErrorType)

	snapshot := *t
	s.Background.Go(notify.KindNewTicket, func(ctx context.Context) error {
		return s.Notifier.NewTicket(ctx, &snapshot)
	})
	s.Background.event(s.Events, kafka.EventTicketCreated, kafka.TicketPayload(&snapshot))
	return res, nil
}

// List возвращает все тикеты: сначала открытые, внутри статуса новые первыми. Только для администратора.
func (s *TicketService) List(ctx context.Context, actor model.Actor) ([]model.Ticket, error) {
	if !actor.Admin {
		return nil, errs.ErrForbidden
	}
	var items []model.Ticket
	err := s.DB.WithContext(ctx).
		Order("CASE WHEN status = 'Open' THEN 0 ELSE 1 END").
		Order("created_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return items, nil
}

// ListForUser возвращает тикеты с подтверждённым email actor, новые первыми.
func (s *TicketService) ListForUser(ctx context.Context, actor model.Actor) ([]model.Ticket, error) {
	if actor.Email == "" {
		return nil, errs.ErrUnauthenticated
	}
	var items []model.Ticket
	err := s.DB.WithContext(ctx).
		Where("email = ?", actor.Email).
		Order("created_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list tickets for user: %w", err)
	}
	return items, nil
}

func (s *TicketService) find(ctx context.Context, db *gorm.DB, id string) (*model.Ticket, error) {
	var t model.Ticket
	if err := db.WithContext(ctx).Where("ticket_id = ?", id).Take(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrTicketNotFound
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return &t, nil
}

// findVisible ищет тикет от имени actor. Не-админ получает ErrForbidden и для чужого,
// и для несуществующего тикета, чтобы по ответу нельзя было перебирать ID.
func (s *TicketService) findVisible(ctx context.Context, id string, actor model.Actor) (*model.Ticket, error) {
	t, err := s.find(ctx, s.DB, id)
	if err != nil {
		if !actor.Admin && errors.Is(err, errs.ErrTicketNotFound) {
			return nil, errs.ErrForbidden
		}
		return nil, err
	}
	if !actor.CanView(t) {
		return nil, errs.ErrForbidden
	}
	return t, nil
}

// Get отдаёт тикет администратору или владельцу.
func (s *TicketService) Get(ctx context.Context, id string, actor model.Actor) (*model.Ticket, error) {
	if !actor.Admin && actor.Email == "" {
		return nil, errs.ErrUnauthenticated
	}
	return s.findVisible(ctx, id, actor)
}

// Close переводит Open в Closed и уведомляет владельца. Повторное закрытие ничего
// не меняет и возвращает false.
func (s *TicketService) Close(ctx context.Context, id string, actor model.Actor) (bool, error) {
	if !actor.Admin {
		return false, errs.ErrForbidden
	}
	var closed *model.Ticket
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := s.find(ctx, tx, id)
		if err != nil {
			return err
		}
		if !t.IsOpen() {
			return nil
		}
		now := s.Now()
		res := tx.Model(&model.Ticket{}).
			Where("ticket_id = ? AND status = ?", id, model.TicketStatusOpen).
			Updates(map[string]interface{}{"status": model.TicketStatusClosed, "closed_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			t.Status, t.ClosedAt = model.TicketStatusClosed, &now
			closed = t
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errs.ErrTicketNotFound) {
			return false, err
		}
		return false, fmt.Errorf("close ticket: %w", err)
	}
	if closed == nil {
		return false, nil
	}
	slog.Info("ticket: closed", "ticket_id", id)
	s.Background.Go(notify.KindClosed, func(ctx context.Context) error {
		return s.Notifier.Closed(ctx, closed)
	})
	s.Background.event(s.Events, kafka.EventTicketClosed, kafka.TicketPayload(closed))
	return true, nil
}

// Delete удаляет тикет и его переписку одной транзакцией. Только для администратора.
func (s *TicketService) Delete(ctx context.Context, id string, actor model.Actor) error {
	if !actor.Admin {
		return errs.ErrForbidden
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("ticket_id = ?", id).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		res := tx.Where("ticket_id = ?", id).Delete(&model.Ticket{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errs.ErrTicketNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errs.ErrTicketNotFound) {
			return err
		}
		return fmt.Errorf("delete ticket: %w", err)
	}
	slog.Info("ticket: deleted", "ticket_id", id)
	s.Background.event(s.Events, kafka.EventTicketDeleted, map[string]interface{}{"ticket_id": id})
	return nil
}
