package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/support-desk/internal/errs"
	"github.com/psds-microservice/support-desk/internal/model"
	"github.com/psds-microservice/support-desk/internal/service"
	"github.com/psds-microservice/support-desk/internal/session"
)

// APIHandler — JSON-чат, общий для консоли администратора и страницы отслеживания.
type APIHandler struct {
	messages service.MessageServicer
}

func NewAPIHandler(messages service.MessageServicer) *APIHandler {
	return &APIHandler{messages: messages}
}

type replyRequest struct {
	TicketID   string `json:"ticket_id" binding:"required"`
	SenderType string `json:"sender_type" binding:"required"`
	Message    string `json:"message"`
}

// requireSession отклоняет запросы без обеих ролей.
func requireSession(c *gin.Context) (model.Actor, bool) {
	actor := session.Load(c).Actor()
	if !actor.Admin && actor.Email == "" {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Unauthorized"})
		return actor, false
	}
	return actor, true
}

func (h *APIHandler) Reply(c *gin.Context) {
	actor, ok := requireSession(c)
	if !ok {
		return
	}
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortJSON(c, errs.NewValidationError("body", "ticket_id and sender_type are required."))
		return
	}
	m, err := h.messages.Post(c.Request.Context(), req.TicketID, model.SenderType(req.SenderType), req.Message, actor)
	if err != nil {
		abortJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": m})
}

func (h *APIHandler) Messages(c *gin.Context) {
	actor, ok := requireSession(c)
	if !ok {
		return
	}
	id := c.Param("ticket_id")
	msgs, err := h.messages.List(c.Request.Context(), id, actor)
	if err != nil {
		abortJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket_id": id, "messages": msgs})
}
