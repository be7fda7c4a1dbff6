package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/support-desk/internal/errs"
	"github.com/psds-microservice/support-desk/internal/middleware"
	"github.com/psds-microservice/support-desk/internal/model"
	"github.com/psds-microservice/support-desk/internal/session"
)

const genericFailure = "Something went wrong. Please try again."

// render writes a view document. Queued flashes are drained into it.
func render(c *gin.Context, status int, view string, data gin.H) {
	body := gin.H{
		"view":       view,
		"flashes":    session.Flashes(c),
		"csrf_token": middleware.CSRFToken(c.Request),
	}
	for k, v := range data {
		body[k] = v
	}
	c.JSON(status, body)
}

func flash(c *gin.Context, msg string) {
	if err := session.Flash(c, msg); err != nil {
		slog.Error("session: save flash", "error", err)
	}
}

func redirect(c *gin.Context, location string) {
	c.Redirect(http.StatusFound, location)
}

// ticketView exposes the account number as the zero-padded string it was submitted as.
type ticketView struct {
	*model.Ticket
	AccountNumber string `json:"account_number"`
}

func newTicketView(t *model.Ticket) ticketView {
	return ticketView{Ticket: t, AccountNumber: t.Account()}
}

func newTicketViews(items []model.Ticket) []ticketView {
	out := make([]ticketView, 0, len(items))
	for i := range items {
		out = append(out, newTicketView(&items[i]))
	}
	return out
}

// statusFor сопоставляет ошибке сервиса HTTP-статус и сообщение, которое можно показать.
func statusFor(err error) (int, string) {
	if verr, ok := errs.IsValidation(err); ok {
		return http.StatusBadRequest, verr.Error()
	}
	switch {
	case errors.Is(err, errs.ErrTicketNotFound):
		return http.StatusNotFound, "Ticket not found."
	case errors.Is(err, errs.ErrUnauthenticated), errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden, "Unauthorized"
	case errors.Is(err, errs.ErrInvalidCode):
		return http.StatusBadRequest, "Invalid or expired code."
	case errors.Is(err, errs.ErrInvalidAdminPassword):
		return http.StatusUnauthorized, "Incorrect admin password."
	default:
		return http.StatusInternalServerError, genericFailure
	}
}

// abortJSON writes err as {"error": ...}; store failures are logged and not echoed.
func abortJSON(c *gin.Context, err error) {
	status, msg := statusFor(err)
	body := gin.H{"error": msg}
	if verr, ok := errs.IsValidation(err); ok {
		body["error"] = "Invalid request."
		body["fields"] = verr.Fields
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, body)
}
