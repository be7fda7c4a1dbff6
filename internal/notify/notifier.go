package notify

import (
	"context"
	"fmt"
	"net/url"

	"github.com/psds-microservice/support-desk/internal/errs"
	"github.com/psds-microservice/support-desk/internal/model"
)

const (
	KindNewTicket = "new_ticket"
	KindLoginCode = "login_code"
	KindReply     = "reply"
	KindClosed    = "closed"
)

// Notifier formats the transactional emails. Every method returns a *errs.NotificationError
// or nil; callers log and discard it.
type Notifier struct {
	sender  Sender
	baseURL string
	admin   string
}

func NewNotifier(sender Sender, baseURL, adminAddress string) *Notifier {
	return &Notifier{sender: sender, baseURL: baseURL, admin: adminAddress}
}

func (n *Notifier) send(ctx context.Context, kind, to, subject, body string) error {
	if to == "" {
		return &errs.NotificationError{Kind: kind, To: to, Err: fmt.Errorf("no recipient")}
	}
	if err := n.sender.Send(ctx, to, subject, body); err != nil {
		return &errs.NotificationError{Kind: kind, To: to, Err: err}
	}
	return nil
}

func (n *Notifier) NewTicket(ctx context.Context, t *model.Ticket) error {
	body := fmt.Sprintf("Hello Admin,\n\nNew ticket %s from %s.\nView details: %s/ticket/%s\n",
		t.TicketID, t.Fullname, n.baseURL, url.PathEscape(t.TicketID))
	return n.send(ctx, KindNewTicket, n.admin, "New Ticket Submitted: "+t.TicketID, body)
}

func (n *Notifier) LoginCode(ctx context.Context, email, code string, validMinutes int) error {
	link := fmt.Sprintf("%s/auth/verify?email=%s", n.baseURL, url.QueryEscape(email))
	body := fmt.Sprintf("Your login code is %s\n\nIt is valid for %d minutes.\nEnter it here: %s\n\nIf you did not request this code you can ignore this email.\n",
		code, validMinutes, link)
	return n.send(ctx, KindLoginCode, email, "Your support login code", body)
}

func (n *Notifier) Reply(ctx context.Context, t *model.Ticket, content string) error {
	body := fmt.Sprintf("Hello %s,\n\nSupport replied to your ticket %s:\n\n%s\n\nTrack your ticket: %s/track/%s\n",
		t.Fullname, t.TicketID, content, n.baseURL, url.PathEscape(t.TicketID))
	return n.send(ctx, KindReply, t.Email, "New reply on ticket "+t.TicketID, body)
}

func (n *Notifier) Closed(ctx context.Context, t *model.Ticket) error {
	body := fmt.Sprintf("Hello %s, your ticket %s has been closed.", t.Fullname, t.TicketID)
	return n.send(ctx, KindClosed, t.Email, "Ticket Closed", body)
}
