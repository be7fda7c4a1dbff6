package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/psds-microservice/support-desk/internal/errs"
	"github.com/psds-microservice/support-desk/internal/kafka"
	"github.com/psds-microservice/support-desk/internal/model"
)

var ticketIDRe = regexp.MustCompile(`^TICKET-[0-9a-f]{8}$`)

func TestNewTicketID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id := NewTicketID()
		if !ticketIDRe.MatchString(id) {
			t.Fatalf("NewTicketID()=%q does not match %s", id, ticketIDRe)
		}
		seen[id] = true
	}
	if len(seen) < 45 {
		t.Fatalf("ids are not random enough: %d distinct of 50", len(seen))
	}
}

func TestCreateTicket(t *testing.T) {
	f := newFixture(t)
	svc := NewTicketService(f.deps)

	res, err := svc.Create(context.Background(), validInput(), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.settle()

	var got model.Ticket
	if err := f.db.Where("ticket_id = ?", res.Ticket.TicketID).Take(&got).Error; err != nil {
		t.Fatalf("load ticket: %v", err)
	}
	if !ticketIDRe.MatchString(got.TicketID) {
		t.Fatalf("ticket id %q", got.TicketID)
	}
	if got.Status != model.TicketStatusOpen || got.ClosedAt != nil {
		t.Fatalf("status=%s closed_at=%v, want Open/nil", got.Status, got.ClosedAt)
	}
	if got.Account() != "1234567890" || got.Email != "a@b.com" || got.FilePath != nil {
		t.Fatalf("stored ticket: %+v", got)
	}

	var msgs []model.Message
	if err := f.db.Where("ticket_id = ?", got.TicketID).Find(&msgs).Error; err != nil {
		t.Fatalf("load messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].SenderType != model.SenderUser || msgs[0].Content != got.Description {
		t.Fatalf("first message: %+v", msgs)
	}
	if len(f.notifier.newTickets) != 1 || f.notifier.newTickets[0] != got.TicketID {
		t.Fatalf("admin notification: %v", f.notifier.newTickets)
	}
	if len(f.events.events) != 1 || f.events.events[0] != kafka.EventTicketCreated {
		t.Fatalf("events: %v", f.events.events)
	}
}

func TestCreateTicketValidation(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(*TicketInput)
		field string
	}{
		{"missing name", func(in *TicketInput) { in.Fullname = "   " }, "name"},
		{"short account", func(in *TicketInput) { in.AccountNumber = "123456789" }, "account"},
		{"letters in account", func(in *TicketInput) { in.AccountNumber = "12345abcde" }, "account"},
		{"bad email", func(in *TicketInput) { in.Email = "not-an-email" }, "email"},
		{"unknown error type", func(in *TicketInput) { in.ErrorType = "refund" }, "error_type"},
		{"empty description", func(in *TicketInput) { in.Description = "" }, "description"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture(t)
			svc := NewTicketService(f.deps)
			in := validInput()
			c.edit(&in)
			_, err := svc.Create(context.Background(), in, nil)
			verr, ok := errs.IsValidation(err)
			if !ok {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if _, ok := verr.Fields[c.field]; !ok {
				t.Fatalf("expected error on %q, got %v", c.field, verr.Fields)
			}
			var n int64
			f.db.Model(&model.Ticket{}).Count(&n)
			if n != 0 {
				t.Fatalf("ticket persisted despite validation error")
			}
		})
	}
}

func TestCreateTicketWithAttachment(t *testing.T) {
	f := newFixture(t)
	svc := NewTicketService(f.deps)

	res, err := svc.Create(context.Background(), validInput(), &Attachment{Filename: "my receipt.PNG", Data: []byte("png")})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	wantKey := res.Ticket.TicketID + "_my_receipt.PNG"
	if f.files.key != wantKey || f.files.contentType != "image/png" {
		t.Fatalf("upload key=%q ct=%q, want %q image/png", f.files.key, f.files.contentType, wantKey)
	}
	if res.UploadErr != nil || res.Ticket.FilePath == nil || *res.Ticket.FilePath != "https://files.example.com/uploads/"+wantKey {
		t.Fatalf("file path: %v (upload err %v)", res.Ticket.FilePath, res.UploadErr)
	}
}

func TestCreateTicketUploadFailureIsNonFatal(t *testing.T) {
	f := newFixture(t)
	f.files.err = errors.New("bucket unavailable")
	svc := NewTicketService(f.deps)

	res, err := svc.Create(context.Background(), validInput(), &Attachment{Filename: "shot.jpg", Data: []byte("jpg")})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if res.UploadErr == nil {
		t.Fatal("expected UploadErr to be reported")
	}
	var got model.Ticket
	if err := f.db.Where("ticket_id = ?", res.Ticket.TicketID).Take(&got).Error; err != nil {
		t.Fatalf("ticket not saved: %v", err)
	}
	if got.FilePath != nil {
		t.Fatalf("file_path = %v, want nil", *got.FilePath)
	}
}

func TestCreateTicketRejectsDisallowedAttachment(t *testing.T) {
	f := newFixture(t)
	svc := NewTicketService(f.deps)
	_, err := svc.Create(context.Background(), validInput(), &Attachment{Filename: "run.exe", Data: []byte("MZ")})
	verr, ok := errs.IsValidation(err)
	if !ok || verr.Fields["file"] == "" {
		t.Fatalf("expected file validation error, got %v", err)
	}
	if f.files.key != "" {
		t.Fatal("disallowed file was uploaded")
	}
}

func TestCreateTicketRollsBackOnPartialWrite(t *testing.T) {
	f := newFixture(t)
	if err := f.db.Migrator().DropTable(&model.Message{}); err != nil {
		t.Fatalf("drop messages: %v", err)
	}
	svc := NewTicketService(f.deps)

	if _, err := svc.Create(context.Background(), validInput(), nil); err == nil {
		t.Fatal("expected error when the first message cannot be written")
	}
	f.settle()
	var n int64
	f.db.Model(&model.Ticket{}).Count(&n)
	if n != 0 {
		t.Fatalf("ticket row survived a failed transaction")
	}
	if len(f.notifier.newTickets) != 0 {
		t.Fatal("admin notified about a ticket that was not stored")
	}
	if len(f.files.deleted) != 0 {
		t.Fatalf("deleted %v without an upload", f.files.deleted)
	}
}

func TestCreateTicketRemovesAttachmentWhenInsertFails(t *testing.T) {
	f := newFixture(t)
	if err := f.db.Migrator().DropTable(&model.Message{}); err != nil {
		t.Fatalf("drop messages: %v", err)
	}
	svc := NewTicketService(f.deps)

	_, err := svc.Create(context.Background(), validInput(), &Attachment{Filename: "shot.png", Data: []byte("png")})
	if err == nil {
		t.Fatal("expected error when the first message cannot be written")
	}
	if f.files.key == "" || len(f.files.deleted) != 1 || f.files.deleted[0] != f.files.key {
		t.Fatalf("uploaded %q, deleted %v", f.files.key, f.files.deleted)
	}
}

func TestListTickets(t *testing.T) {
	f := newFixture(t)
	base := f.clock.Now()
	f.seedTicket(t, "TICKET-00000001", "a@b.com", model.TicketStatusClosed, base.Add(3*time.Hour))
	f.seedTicket(t, "TICKET-00000002", "a@b.com", model.TicketStatusOpen, base.Add(1*time.Hour))
	f.seedTicket(t, "TICKET-00000003", "c@d.com", model.TicketStatusOpen, base.Add(2*time.Hour))
	f.seedTicket(t, "TICKET-00000004", "c@d.com", model.TicketStatusClosed, base)
	svc := NewTicketService(f.deps)
	ctx := context.Background()

	if _, err := svc.List(ctx, model.Actor{Email: "a@b.com"}); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("non-admin list: %v", err)
	}
	all, err := svc.List(ctx, model.Actor{Admin: true})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"TICKET-00000003", "TICKET-00000002", "TICKET-00000001", "TICKET-00000004"}
	if len(all) != len(want) {
		t.Fatalf("got %d tickets", len(all))
	}
	for i, id := range want {
		if all[i].TicketID != id {
			t.Fatalf("position %d: got %s want %s", i, all[i].TicketID, id)
		}
	}

	mine, err := svc.ListForUser(ctx, model.Actor{Email: "a@b.com"})
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(mine) != 2 || mine[0].TicketID != "TICKET-00000001" || mine[1].TicketID != "TICKET-00000002" {
		t.Fatalf("ListForUser order: %+v", mine)
	}
	if _, err := svc.ListForUser(ctx, model.Actor{}); !errors.Is(err, errs.ErrUnauthenticated) {
		t.Fatalf("anonymous ListForUser: %v", err)
	}
}

func TestGetTicketAuthorization(t *testing.T) {
	f := newFixture(t)
	f.seedTicket(t, "TICKET-0000000b", "b@owner.com", model.TicketStatusOpen, f.clock.Now())
	svc := NewTicketService(f.deps)
	ctx := context.Background()

	cases := []struct {
		name  string
		actor model.Actor
		id    string
		want  error
	}{
		{"owner", model.Actor{Email: "b@owner.com"}, "TICKET-0000000b", nil},
		{"admin", model.Actor{Admin: true}, "TICKET-0000000b", nil},
		{"other user", model.Actor{Email: "a@other.com"}, "TICKET-0000000b", errs.ErrForbidden},
		{"anonymous", model.Actor{}, "TICKET-0000000b", errs.ErrUnauthenticated},
		{"unknown ticket", model.Actor{Admin: true}, "TICKET-ffffffff", errs.ErrTicketNotFound},
		{"unknown ticket as user", model.Actor{Email: "b@owner.com"}, "TICKET-ffffffff", errs.ErrForbidden},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tk, err := svc.Get(ctx, c.id, c.actor)
			if c.want == nil {
				if err != nil || tk == nil || tk.TicketID != c.id {
					t.Fatalf("Get: %v %v", tk, err)
				}
				return
			}
			if !errors.Is(err, c.want) {
				t.Fatalf("Get err = %v, want %v", err, c.want)
			}
		})
	}
}

func TestCloseTicketIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seedTicket(t, "TICKET-0000000c", "c@d.com", model.TicketStatusOpen, f.clock.Now())
	svc := NewTicketService(f.deps)
	ctx := context.Background()
	admin := model.Actor{Admin: true}

	if _, err := svc.Close(ctx, "TICKET-0000000c", model.Actor{Email: "c@d.com"}); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("owner close: %v", err)
	}

	f.clock.Advance(time.Hour)
	firstClose := f.clock.Now()
	closed, err := svc.Close(ctx, "TICKET-0000000c", admin)
	if err != nil || !closed {
		t.Fatalf("first Close = %v, %v", closed, err)
	}

	f.clock.Advance(time.Hour)
	closed, err = svc.Close(ctx, "TICKET-0000000c", admin)
	if err != nil || closed {
		t.Fatalf("second Close = %v, %v; want false, nil", closed, err)
	}
	f.settle()

	var got model.Ticket
	f.db.Where("ticket_id = ?", "TICKET-0000000c").Take(&got)
	if got.Status != model.TicketStatusClosed || got.ClosedAt == nil || !got.ClosedAt.Equal(firstClose) {
		t.Fatalf("after close: status=%s closed_at=%v want %v", got.Status, got.ClosedAt, firstClose)
	}
	if len(f.notifier.closed) != 1 {
		t.Fatalf("closure emails = %d, want 1", len(f.notifier.closed))
	}
	if _, err := svc.Close(ctx, "TICKET-ffffffff", admin); !errors.Is(err, errs.ErrTicketNotFound) {
		t.Fatalf("close unknown: %v", err)
	}
}

func TestDeleteTicketRemovesThread(t *testing.T) {
	f := newFixture(t)
	f.seedTicket(t, "TICKET-0000000d", "d@e.com", model.TicketStatusOpen, f.clock.Now())
	f.seedTicket(t, "TICKET-0000000e", "d@e.com", model.TicketStatusOpen, f.clock.Now())
	f.db.Create(&model.Message{TicketID: "TICKET-0000000d", SenderType: model.SenderUser, Content: "x", CreatedAt: f.clock.Now()})
	f.db.Create(&model.Message{TicketID: "TICKET-0000000e", SenderType: model.SenderUser, Content: "y", CreatedAt: f.clock.Now()})
	svc := NewTicketService(f.deps)
	ctx := context.Background()

	if err := svc.Delete(ctx, "TICKET-0000000d", model.Actor{Email: "d@e.com"}); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("owner delete: %v", err)
	}
	if err := svc.Delete(ctx, "TICKET-0000000d", model.Actor{Admin: true}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	var tickets, msgs int64
	f.db.Model(&model.Ticket{}).Count(&tickets)
	f.db.Model(&model.Message{}).Where("ticket_id = ?", "TICKET-0000000d").Count(&msgs)
	if tickets != 1 || msgs != 0 {
		t.Fatalf("after delete: tickets=%d orphan messages=%d", tickets, msgs)
	}
	if err := svc.Delete(ctx, "TICKET-0000000d", model.Actor{Admin: true}); !errors.Is(err, errs.ErrTicketNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}
