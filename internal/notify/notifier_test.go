package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/psds-microservice/support-desk/internal/errs"
	"github.com/psds-microservice/support-desk/internal/model"
)

type recordSender struct {
	to, subject, body string
	err               error
}

func (r *recordSender) Send(_ context.Context, to, subject, body string) error {
	r.to, r.subject, r.body = to, subject, body
	return r.err
}

func TestNotifierMessages(t *testing.T) {
	rs := &recordSender{}
	n := NewNotifier(rs, "https://help.example.com", "admin@example.com")
	tk := &model.Ticket{TicketID: "TICKET-ab12cd34", Fullname: "Ada", Email: "ada@example.com"}
	ctx := context.Background()

	if err := n.NewTicket(ctx, tk); err != nil {
		t.Fatalf("NewTicket: %v", err)
	}
	if rs.to != "admin@example.com" || rs.subject != "New Ticket Submitted: TICKET-ab12cd34" ||
		!strings.Contains(rs.body, "https://help.example.com/ticket/TICKET-ab12cd34") {
		t.Fatalf("new ticket mail: %+v", rs)
	}

	if err := n.LoginCode(ctx, "ada+x@example.com", "012345", 10); err != nil {
		t.Fatalf("LoginCode: %v", err)
	}
	if !strings.Contains(rs.body, "012345") || !strings.Contains(rs.body, "/auth/verify?email=ada%2Bx%40example.com") {
		t.Fatalf("login code body: %q", rs.body)
	}

	if err := n.Reply(ctx, tk, "hello"); err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if rs.to != "ada@example.com" || !strings.Contains(rs.body, "hello") || !strings.Contains(rs.body, "/track/TICKET-ab12cd34") {
		t.Fatalf("reply mail: %+v", rs)
	}

	if err := n.Closed(ctx, tk); err != nil {
		t.Fatalf("Closed: %v", err)
	}
	if rs.body != "Hello Ada, your ticket TICKET-ab12cd34 has been closed." {
		t.Fatalf("closed body: %q", rs.body)
	}
}

func TestNotifierWrapsFailures(t *testing.T) {
	boom := errors.New("smtp down")
	n := NewNotifier(&recordSender{err: boom}, "http://x", "")
	tk := &model.Ticket{TicketID: "TICKET-1", Email: "u@example.com"}

	err := n.Closed(context.Background(), tk)
	var ne *errs.NotificationError
	if !errors.As(err, &ne) || ne.Kind != KindClosed || !errors.Is(err, boom) {
		t.Fatalf("Closed error = %v", err)
	}
	if err := n.NewTicket(context.Background(), tk); !errors.As(err, &ne) {
		t.Fatalf("missing admin address should be a NotificationError, got %v", err)
	}
}
