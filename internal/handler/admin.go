package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/support-desk/internal/errs"
	"github.com/psds-microservice/support-desk/internal/service"
	"github.com/psds-microservice/support-desk/internal/session"
)

// AdminHandler — консоль администратора за общим паролем. Всё, кроме списка и карточки,
// заканчивается редиректом на /tickets с flash-сообщением.
type AdminHandler struct {
	auth     service.AuthServicer
	tickets  service.TicketServicer
	messages service.MessageServicer
}

func NewAdminHandler(auth service.AuthServicer, tickets service.TicketServicer, messages service.MessageServicer) *AdminHandler {
	return &AdminHandler{auth: auth, tickets: tickets, messages: messages}
}

// Tickets показывает форму пароля, пока в сессии нет флага администратора, затем весь список.
func (h *AdminHandler) Tickets(c *gin.Context) {
	st := session.Load(c)
	if !st.AdminAuthenticated {
		render(c, http.StatusOK, "admin_login", nil)
		return
	}
	items, err := h.tickets.List(c.Request.Context(), st.Actor())
	if err != nil {
		slog.Error("admin: list tickets", "error", err)
		flash(c, genericFailure)
		render(c, http.StatusInternalServerError, "admin_tickets", gin.H{"tickets": []ticketView{}})
		return
	}
	render(c, http.StatusOK, "admin_tickets", gin.H{"tickets": newTicketViews(items)})
}

func (h *AdminHandler) Login(c *gin.Context) {
	st := session.Load(c)
	if st.AdminAuthenticated {
		redirect(c, "/tickets")
		return
	}
	if err := h.auth.AdminLogin(c.PostForm("password")); err != nil {
		slog.Warn("admin: failed login", "ip", c.ClientIP())
		flash(c, "Incorrect admin password.")
		redirect(c, "/tickets")
		return
	}
	st.AdminAuthenticated = true
	if err := session.Save(c, st); err != nil {
		slog.Error("session: save", "error", err)
		flash(c, genericFailure)
	}
	redirect(c, "/tickets")
}

func (h *AdminHandler) Logout(c *gin.Context) {
	st := session.Load(c)
	st.AdminAuthenticated = false
	if err := session.Save(c, st); err != nil {
		slog.Error("session: save", "error", err)
	}
	redirect(c, "/tickets")
}

func (h *AdminHandler) Detail(c *gin.Context) {
	actor := session.Load(c).Actor()
	t, err := h.tickets.Get(c.Request.Context(), c.Param("ticket_id"), actor)
	if err != nil {
		h.fail(c, "get ticket", err)
		return
	}
	msgs, err := h.messages.List(c.Request.Context(), t.TicketID, actor)
	if err != nil {
		h.fail(c, "list messages", err)
		return
	}
	render(c, http.StatusOK, "admin_ticket", gin.H{"ticket": newTicketView(t), "messages": msgs})
}

func (h *AdminHandler) Close(c *gin.Context) {
	id := c.Param("ticket_id")
	closed, err := h.tickets.Close(c.Request.Context(), id, session.Load(c).Actor())
	switch {
	case err != nil:
		h.fail(c, "close ticket", err)
		return
	case closed:
		flash(c, fmt.Sprintf("Ticket %s closed.", id))
	default:
		flash(c, fmt.Sprintf("Ticket %s is already closed.", id))
	}
	redirect(c, "/tickets")
}

func (h *AdminHandler) Delete(c *gin.Context) {
	id := c.Param("ticket_id")
	if err := h.tickets.Delete(c.Request.Context(), id, session.Load(c).Actor()); err != nil {
		h.fail(c, "delete ticket", err)
		return
	}
	flash(c, fmt.Sprintf("Ticket %s deleted.", id))
	redirect(c, "/tickets")
}

func (h *AdminHandler) fail(c *gin.Context, op string, err error) {
	if errors.Is(err, errs.ErrTicketNotFound) {
		flash(c, "Ticket not found.")
	} else {
		slog.Error("admin: "+op, "error", err)
		flash(c, genericFailure)
	}
	redirect(c, "/tickets")
}
