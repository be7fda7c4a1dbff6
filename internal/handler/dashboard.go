package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/support-desk/internal/service"
	"github.com/psds-microservice/support-desk/internal/session"
)

// DashboardHandler — страницы владельца тикетов после входа по коду.
type DashboardHandler struct {
	tickets  service.TicketServicer
	messages service.MessageServicer
}

func NewDashboardHandler(tickets service.TicketServicer, messages service.MessageServicer) *DashboardHandler {
	return &DashboardHandler{tickets: tickets, messages: messages}
}

func (h *DashboardHandler) MyTickets(c *gin.Context) {
	st := session.Load(c)
	items, err := h.tickets.ListForUser(c.Request.Context(), st.Actor())
	if err != nil {
		slog.Error("dashboard: list tickets", "error", err)
		flash(c, genericFailure)
		render(c, http.StatusInternalServerError, "my_tickets", gin.H{"email": st.UserEmail, "tickets": []ticketView{}})
		return
	}
	render(c, http.StatusOK, "my_tickets", gin.H{"email": st.UserEmail, "tickets": newTicketViews(items)})
}

func (h *DashboardHandler) Track(c *gin.Context) {
	actor := session.Load(c).Actor()
	if !actor.Admin && actor.Email == "" {
		redirect(c, "/auth/login")
		return
	}
	t, err := h.tickets.Get(c.Request.Context(), c.Param("ticket_id"), actor)
	if err != nil {
		status, msg := statusFor(err)
		if status == http.StatusInternalServerError {
			slog.Error("dashboard: get ticket", "error", err)
		}
		render(c, status, "track", gin.H{"error": msg})
		return
	}
	msgs, err := h.messages.List(c.Request.Context(), t.TicketID, actor)
	if err != nil {
		slog.Error("dashboard: list messages", "ticket_id", t.TicketID, "error", err)
		render(c, http.StatusInternalServerError, "track", gin.H{"error": genericFailure})
		return
	}
	render(c, http.StatusOK, "track", gin.H{"ticket": newTicketView(t), "messages": msgs})
}
